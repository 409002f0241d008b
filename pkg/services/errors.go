// Package services provides standardized error types for service layer
// operations.
package services

import (
	"errors"
	"fmt"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest = errors.New("invalid request")
	ErrEmptyOwnerID   = errors.New("owner ID cannot be empty")
	ErrInvalidParams  = errors.New("params do not match the template schema")
	ErrUnknownTrigger = errors.New("unknown trigger event")

	// Business Logic Conflicts (409 Conflict).
	ErrWorkflowAlreadyActive = errors.New("workflow is already active")
	ErrNotWorkflowOwner      = errors.New("workflow belongs to another user")

	// ErrNotDealOwner is rendered as not-found so deal IDs leak nothing
	// about other users' pipelines.
	ErrNotDealOwner = errors.New("deal belongs to another user")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsValidationError checks if an error is a validation error that should
// return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrEmptyOwnerID) ||
		errors.Is(err, ErrInvalidParams) ||
		errors.Is(err, ErrUnknownTrigger)
}

// IsConflictError checks if an error is a business logic conflict that
// should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrWorkflowAlreadyActive) ||
		errors.Is(err, ErrNotWorkflowOwner)
}

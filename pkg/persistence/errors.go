// Package persistence provides standardized error types for persistence
// operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrDealNotFound indicates a deal was not found by the given identifier.
	ErrDealNotFound = errors.New("deal not found")

	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrCatalogEntryNotFound indicates a catalog entry was not found by the given identifier.
	ErrCatalogEntryNotFound = errors.New("catalog entry not found")

	// ErrInvalidSortField indicates an unsupported sort field was requested.
	ErrInvalidSortField = errors.New("invalid sort field")
)

// DealError wraps deal-related errors with operation context.
type DealError struct {
	Op     string // Operation being performed (e.g., "GetByID", "AppendTriggerRecords")
	DealID string
	Err    error
}

func (e *DealError) Error() string {
	return fmt.Sprintf("%s operation failed for deal %s: %v", e.Op, e.DealID, e.Err)
}

func (e *DealError) Unwrap() error {
	return e.Err
}

func (e *DealError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewDealError creates a new deal error with context.
func NewDealError(op, dealID string, err error) *DealError {
	return &DealError{Op: op, DealID: dealID, Err: err}
}

// WorkflowError wraps workflow-registry errors with operation context.
type WorkflowError struct {
	Op         string
	WorkflowID string
	Err        error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{Op: op, WorkflowID: workflowID, Err: err}
}

// IsDealNotFound checks if an error indicates a missing deal.
func IsDealNotFound(err error) bool {
	return errors.Is(err, ErrDealNotFound)
}

// IsWorkflowNotFound checks if an error indicates a missing workflow.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsCatalogEntryNotFound checks if an error indicates a missing catalog entry.
func IsCatalogEntryNotFound(err error) bool {
	return errors.Is(err, ErrCatalogEntryNotFound)
}

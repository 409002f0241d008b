// Package web provides HTTP request and response types for the automation
// API.
package web

import (
	"time"

	"github.com/dealrelay/dealrelay/pkg/models"
)

// CreateDealRequest represents the request body for creating a new deal.
type CreateDealRequest struct {
	Title             string     `json:"title"               validate:"required,min=1"`
	ContactID         string     `json:"contact_id,omitempty"`
	Value             float64    `json:"value"               validate:"min=0"`
	Currency          string     `json:"currency,omitempty"`
	Stage             *string    `json:"stage,omitempty"`
	Probability       *int       `json:"probability,omitempty" validate:"omitempty,min=0,max=100"`
	ExpectedCloseDate *time.Time `json:"expected_close_date,omitempty"`
}

// UpdateDealRequest represents the request body for patching a deal. All
// fields are optional to support partial updates.
type UpdateDealRequest struct {
	Title             *string    `json:"title,omitempty"       validate:"omitempty,min=1"`
	ContactID         *string    `json:"contact_id,omitempty"`
	Value             *float64   `json:"value,omitempty"       validate:"omitempty,min=0"`
	Currency          *string    `json:"currency,omitempty"`
	Stage             *string    `json:"stage,omitempty"`
	Probability       *int       `json:"probability,omitempty" validate:"omitempty,min=0,max=100"`
	ExpectedCloseDate *time.Time `json:"expected_close_date,omitempty"`
}

// DealResponse augments a deal with its derived weighted value.
type DealResponse struct {
	*models.Deal

	WeightedValue float64 `json:"weighted_value"`
}

// TransformDealResponse shapes a deal for API responses.
func TransformDealResponse(deal *models.Deal) DealResponse {
	return DealResponse{
		Deal:          deal,
		WeightedValue: deal.WeightedValue(),
	}
}

// RegisterWorkflowRequest represents the request body for registering a
// workflow directly, outside the catalog.
type RegisterWorkflowRequest struct {
	Name        string         `json:"name"        validate:"required,min=3"`
	Description string         `json:"description"`
	Category    string         `json:"category"`
	Trigger     string         `json:"trigger"     validate:"required"`
	WebhookID   string         `json:"webhook_id"  validate:"required"`
	Params      map[string]any `json:"params,omitempty"`
}

// ImportWorkflowRequest represents the request body for importing a catalog
// template.
type ImportWorkflowRequest struct {
	CatalogID string         `json:"catalog_id" validate:"required"`
	Params    map[string]any `json:"params,omitempty"`
}

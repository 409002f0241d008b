package models

import "time"

// Workflow is a user's registry entry subscribing an external automation
// webhook to a named trigger event. A workflow only fires while IsActive is
// true and only for events owned by its owner.
type Workflow struct {
	ID          string         `json:"id"`
	OwnerID     string         `json:"owner_id"    validate:"required"`
	Name        string         `json:"name"        validate:"required,min=3"`
	Description string         `json:"description"`
	Category    string         `json:"category"`
	Trigger     string         `json:"trigger"     validate:"required"`
	IsActive    bool           `json:"is_active"`
	WebhookID   string         `json:"webhook_id"  validate:"required"`
	CatalogID   string         `json:"catalog_id,omitempty"` // Template this was imported from, if any
	Params      map[string]any `json:"params,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Matches reports whether the workflow should fire for the given owner and
// event name.
func (w *Workflow) Matches(ownerID, event string) bool {
	return w.IsActive && w.OwnerID == ownerID && w.Trigger == event
}

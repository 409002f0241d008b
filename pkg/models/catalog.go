package models

import "time"

// CatalogEntry is an immutable marketplace template. Importing one creates a
// new Workflow row owned by the importing user; the entry itself never
// changes.
type CatalogEntry struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"          validate:"required,min=3"`
	Description  string         `json:"description"`
	Category     string         `json:"category"      validate:"required"`
	RequiredTier Tier           `json:"required_tier" validate:"required"`
	Trigger      string         `json:"trigger"       validate:"required"`
	WebhookID    string         `json:"webhook_id"    validate:"required"`
	Popularity   int            `json:"popularity"`
	ParamsSchema map[string]any `json:"params_schema,omitempty"` // JSON Schema for per-import params
	CreatedAt    time.Time      `json:"created_at"`
}

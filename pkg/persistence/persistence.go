// Package persistence provides the data storage abstraction for deals,
// workflow registrations and catalog templates.
package persistence

import (
	"context"

	"github.com/dealrelay/dealrelay/pkg/models"
)

type Persistence interface {
	DealRepository() DealRepository
	WorkflowRepository() WorkflowRepository
	CatalogRepository() CatalogRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// DealRepository stores deal records and their append-only automation audit
// logs.
type DealRepository interface {
	GetByID(ctx context.Context, id string) (*models.Deal, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Deal, error)
	Save(ctx context.Context, deal *models.Deal) error
	Delete(ctx context.Context, id string) error

	// AppendTriggerRecords adds records to the deal's audit log as an
	// additive operation: concurrent appenders never overwrite each other
	// from a stale snapshot of the whole log.
	AppendTriggerRecords(ctx context.Context, dealID string, records []models.TriggerRecord) error
}

// WorkflowRepository stores per-user workflow registrations. Registry reads
// during dispatch are a single snapshot query; dispatch never writes here.
type WorkflowRepository interface {
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
	Delete(ctx context.Context, id string) error

	// FindActive returns the workflows that should fire for the given
	// owner and event name, retrieved once per call.
	FindActive(ctx context.Context, ownerID, event string) ([]*models.Workflow, error)

	// CountActive returns the owner's number of currently active workflows.
	CountActive(ctx context.Context, ownerID string) (int, error)
}

// ListCatalogOptions filters, sorts and pages a catalog listing.
type ListCatalogOptions struct {
	Category string
	Search   string
	SortBy   string // popular, newest, name
	Offset   int
	Limit    int
}

// CatalogListResult is one page of catalog entries plus paging metadata.
type CatalogListResult struct {
	Entries     []*models.CatalogEntry
	TotalCount  int
	HasNextPage bool
}

// CatalogRepository stores immutable marketplace templates.
type CatalogRepository interface {
	GetByID(ctx context.Context, id string) (*models.CatalogEntry, error)
	List(ctx context.Context, opts ListCatalogOptions) (*CatalogListResult, error)
	Seed(ctx context.Context, entries []*models.CatalogEntry) error
}

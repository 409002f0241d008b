// Package catalog provides the marketplace browse surface: paginated,
// filterable template listings annotated with importability for the
// requesting user's tier. No gating decision is made here; gating happens
// at import and activation time.
package catalog

import (
	"context"
	"fmt"

	"github.com/dealrelay/dealrelay/pkg/models"
	"github.com/dealrelay/dealrelay/pkg/persistence"
	"github.com/dealrelay/dealrelay/pkg/subscription"
)

// SortBy values accepted by Browse.
const (
	SortPopular = "popular"
	SortNewest  = "newest"
	SortName    = "name"
)

// BrowseRequest filters and pages a catalog listing for one requester.
type BrowseRequest struct {
	UserID   string
	Category string
	Search   string
	SortBy   string `validate:"omitempty,oneof=popular newest name"`
	Page     int    `validate:"min=0"`
	PageSize int    `validate:"min=0,max=100"`
}

// Item is one browsable template plus whether the requester's plan could
// import it. Entries above the requester's tier stay visible so the UI can
// show an upgrade prompt.
type Item struct {
	Entry      *models.CatalogEntry `json:"entry"`
	Importable bool                 `json:"importable"`
}

// BrowseResult is one page of catalog items plus paging metadata.
type BrowseResult struct {
	Items       []Item `json:"items"`
	TotalCount  int    `json:"total_count"`
	HasNextPage bool   `json:"has_next_page"`
	Page        int    `json:"page"`
	PageSize    int    `json:"page_size"`
}

// Browser reads the catalog store and annotates entries with the
// requester's importability.
type Browser struct {
	catalog persistence.CatalogRepository
	plans   subscription.Resolver
}

// NewBrowser creates a catalog browser.
func NewBrowser(catalog persistence.CatalogRepository, plans subscription.Resolver) *Browser {
	return &Browser{catalog: catalog, plans: plans}
}

// Browse returns one page of templates. Pure read.
func (b *Browser) Browse(ctx context.Context, req BrowseRequest) (*BrowseResult, error) {
	if req.PageSize <= 0 {
		req.PageSize = 20
	}

	if req.Page < 1 {
		req.Page = 1
	}

	if req.SortBy == "" {
		req.SortBy = SortPopular
	}

	plan, err := b.plans.GetPlan(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve plan for user %s: %w", req.UserID, err)
	}

	result, err := b.catalog.List(ctx, persistence.ListCatalogOptions{
		Category: req.Category,
		Search:   req.Search,
		SortBy:   req.SortBy,
		Offset:   (req.Page - 1) * req.PageSize,
		Limit:    req.PageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog: %w", err)
	}

	items := make([]Item, 0, len(result.Entries))

	for _, entry := range result.Entries {
		items = append(items, Item{
			Entry:      entry,
			Importable: plan.Name.Allows(entry.RequiredTier),
		})
	}

	return &BrowseResult{
		Items:       items,
		TotalCount:  result.TotalCount,
		HasNextPage: result.HasNextPage,
		Page:        req.Page,
		PageSize:    req.PageSize,
	}, nil
}

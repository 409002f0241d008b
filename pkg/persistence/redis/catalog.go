package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dealrelay/dealrelay/pkg/models"
	"github.com/dealrelay/dealrelay/pkg/persistence"
)

// CatalogRepository stores marketplace templates. Filtering and sorting run
// in memory over the seeded set; catalogs are small and immutable.
type CatalogRepository struct {
	client *goredis.Client
}

// NewCatalogRepository creates a new Redis catalog repository.
func NewCatalogRepository(client *goredis.Client) *CatalogRepository {
	return &CatalogRepository{client: client}
}

func catalogKey(entryID string) string {
	return fmt.Sprintf("%s:catalog:%s", keyPrefix, entryID)
}

func catalogIndexKey() string {
	return keyPrefix + ":catalog:ids"
}

// GetByID retrieves a catalog entry by its ID.
func (cr *CatalogRepository) GetByID(ctx context.Context, entryID string) (*models.CatalogEntry, error) {
	body, err := cr.client.Get(ctx, catalogKey(entryID)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("catalog entry %s: %w", entryID, persistence.ErrCatalogEntryNotFound)
		}

		return nil, fmt.Errorf("failed to fetch catalog entry %s: %w", entryID, err)
	}

	var entry models.CatalogEntry

	err = json.Unmarshal([]byte(body), &entry)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalog entry %s: %w", entryID, err)
	}

	return &entry, nil
}

// List returns a filtered, sorted, paginated page of catalog entries.
func (cr *CatalogRepository) List(ctx context.Context, opts persistence.ListCatalogOptions) (*persistence.CatalogListResult, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}

	if opts.SortBy == "" {
		opts.SortBy = "popular"
	}

	allowedSorts := map[string]bool{
		"popular": true,
		"newest":  true,
		"name":    true,
	}
	if !allowedSorts[opts.SortBy] {
		return nil, fmt.Errorf("%w: %s", persistence.ErrInvalidSortField, opts.SortBy)
	}

	ids, err := cr.client.SMembers(ctx, catalogIndexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog entries: %w", err)
	}

	filtered := make([]*models.CatalogEntry, 0, len(ids))

	for _, id := range ids {
		entry, err := cr.GetByID(ctx, id)
		if err != nil {
			if persistence.IsCatalogEntryNotFound(err) {
				continue
			}

			return nil, err
		}

		if opts.Category != "" && entry.Category != opts.Category {
			continue
		}

		if opts.Search != "" && !entryMatchesSearch(entry, opts.Search) {
			continue
		}

		filtered = append(filtered, entry)
	}

	sortCatalogEntries(filtered, opts.SortBy)

	totalCount := len(filtered)
	startIdx := opts.Offset
	endIdx := opts.Offset + opts.Limit

	if startIdx >= totalCount {
		return &persistence.CatalogListResult{
			Entries:     make([]*models.CatalogEntry, 0),
			TotalCount:  totalCount,
			HasNextPage: false,
		}, nil
	}

	if endIdx > totalCount {
		endIdx = totalCount
	}

	return &persistence.CatalogListResult{
		Entries:     filtered[startIdx:endIdx],
		TotalCount:  totalCount,
		HasNextPage: endIdx < totalCount,
	}, nil
}

// Seed writes template entries, overwriting existing ones.
func (cr *CatalogRepository) Seed(ctx context.Context, entries []*models.CatalogEntry) error {
	pipe := cr.client.TxPipeline()

	for _, entry := range entries {
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal catalog entry %s: %w", entry.ID, err)
		}

		pipe.Set(ctx, catalogKey(entry.ID), data, 0)
		pipe.SAdd(ctx, catalogIndexKey(), entry.ID)
	}

	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed catalog: %w", err)
	}

	return nil
}

func entryMatchesSearch(entry *models.CatalogEntry, search string) bool {
	needle := strings.ToLower(search)

	return strings.Contains(strings.ToLower(entry.Name), needle) ||
		strings.Contains(strings.ToLower(entry.Description), needle)
}

func sortCatalogEntries(entries []*models.CatalogEntry, sortBy string) {
	sort.Slice(entries, func(i, j int) bool {
		switch sortBy {
		case "newest":
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		case "name":
			return entries[i].Name < entries[j].Name
		default: // popular
			return entries[i].Popularity > entries[j].Popularity
		}
	})
}

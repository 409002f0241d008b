package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dealrelay/dealrelay/pkg/models"
	"github.com/dealrelay/dealrelay/pkg/persistence"
)

// CatalogRepository handles marketplace-template file operations. Entries
// are immutable; Seed is the only write path.
type CatalogRepository struct {
	root string
}

// NewCatalogRepository creates a new catalog repository.
func NewCatalogRepository(root string) *CatalogRepository {
	return &CatalogRepository{root: root}
}

func (cr *CatalogRepository) entryPath(entryID string) string {
	return filepath.Clean(path.Join(cr.root, "catalog", entryID+".json"))
}

// GetByID retrieves a catalog entry by its ID from the file system.
func (cr *CatalogRepository) GetByID(_ context.Context, entryID string) (*models.CatalogEntry, error) {
	body, err := os.ReadFile(cr.entryPath(entryID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("catalog entry %s: %w", entryID, persistence.ErrCatalogEntryNotFound)
		}

		return nil, fmt.Errorf("failed to fetch catalog entry %s: %w", entryID, err)
	}

	var entry models.CatalogEntry

	err = json.Unmarshal(body, &entry)
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

	root := os.DirFS(path.Join(cr.root, "catalog"))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog files: %w", err)
	}

	filtered := make([]*models.CatalogEntry, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		entryID := file[:len(file)-5] // Remove .json extension

		entry, err := cr.GetByID(ctx, entryID)
		if err != nil {
			return nil, err
		}

		if opts.Category != "" && entry.Category != opts.Category {
			continue
		}

		if opts.Search != "" && !matchesSearch(entry, opts.Search) {
			continue
		}

		filtered = append(filtered, entry)
	}

	sortEntries(filtered, opts.SortBy)

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

// Seed writes template entries to disk, overwriting existing ones.
func (cr *CatalogRepository) Seed(_ context.Context, entries []*models.CatalogEntry) error {
	err := os.MkdirAll(path.Join(cr.root, "catalog"), 0750)
	if err != nil {
		return fmt.Errorf("failed to create catalog directory: %w", err)
	}

	for _, entry := range entries {
		data, err := json.MarshalIndent(entry, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal catalog entry %s: %w", entry.ID, err)
		}

		if err := os.WriteFile(cr.entryPath(entry.ID), data, 0600); err != nil {
			return fmt.Errorf("failed to write catalog entry %s: %w", entry.ID, err)
		}
	}

	return nil
}

func matchesSearch(entry *models.CatalogEntry, search string) bool {
	needle := strings.ToLower(search)

	return strings.Contains(strings.ToLower(entry.Name), needle) ||
		strings.Contains(strings.ToLower(entry.Description), needle)
}

func sortEntries(entries []*models.CatalogEntry, sortBy string) {
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

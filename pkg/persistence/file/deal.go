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
	"sync"

	"github.com/dealrelay/dealrelay/pkg/models"
	"github.com/dealrelay/dealrelay/pkg/persistence"
)

// DealRepository handles deal-related file operations. Audit-log appends are
// serialized per repository so concurrent dispatches never lose records to a
// stale read-modify-write of the same file.
type DealRepository struct {
	root string
	mu   sync.Mutex
}

// NewDealRepository creates a new deal repository.
func NewDealRepository(root string) *DealRepository {
	return &DealRepository{root: root}
}

func (dr *DealRepository) dealPath(dealID string) string {
	return filepath.Clean(path.Join(dr.root, "deals", dealID+".json"))
}

// GetByID retrieves a deal by its ID from the file system.
func (dr *DealRepository) GetByID(_ context.Context, dealID string) (*models.Deal, error) {
	body, err := os.ReadFile(dr.dealPath(dealID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewDealError("GetByID", dealID, persistence.ErrDealNotFound)
		}

		return nil, fmt.Errorf("failed to fetch deal %s: %w", dealID, err)
	}

	var deal models.Deal

	err = json.Unmarshal(body, &deal)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal deal %s: %w", dealID, err)
	}

	return &deal, nil
}

// ListByOwner returns the owner's deals, newest first.
func (dr *DealRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Deal, error) {
	root := os.DirFS(path.Join(dr.root, "deals"))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list deal files: %w", err)
	}

	deals := make([]*models.Deal, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		dealID := file[:len(file)-5] // Remove .json extension

		deal, err := dr.GetByID(ctx, dealID)
		if err != nil {
			return nil, err
		}

		if deal.OwnerID == ownerID {
			deals = append(deals, deal)
		}
	}

	sort.Slice(deals, func(i, j int) bool {
		return deals[i].CreatedAt.After(deals[j].CreatedAt)
	})

	return deals, nil
}

// Save writes the deal record to disk.
func (dr *DealRepository) Save(_ context.Context, deal *models.Deal) error {
	err := os.MkdirAll(path.Join(dr.root, "deals"), 0750)
	if err != nil {
		return fmt.Errorf("failed to create deals directory: %w", err)
	}

	data, err := json.MarshalIndent(deal, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal deal %s: %w", deal.ID, err)
	}

	return os.WriteFile(dr.dealPath(deal.ID), data, 0600)
}

// Delete removes the deal record from disk.
func (dr *DealRepository) Delete(_ context.Context, dealID string) error {
	err := os.Remove(dr.dealPath(dealID))
	if err != nil {
		if os.IsNotExist(err) {
			return persistence.NewDealError("Delete", dealID, persistence.ErrDealNotFound)
		}

		return fmt.Errorf("failed to delete deal %s: %w", dealID, err)
	}

	return nil
}

// AppendTriggerRecords appends dispatch outcomes to the deal's audit log.
// The whole read-append-write runs under the repository lock, which makes
// the append additive with respect to concurrent dispatchers.
func (dr *DealRepository) AppendTriggerRecords(ctx context.Context, dealID string, records []models.TriggerRecord) error {
	if len(records) == 0 {
		return nil
	}

	dr.mu.Lock()
	defer dr.mu.Unlock()

	deal, err := dr.GetByID(ctx, dealID)
	if err != nil {
		return persistence.NewDealError("AppendTriggerRecords", dealID, err)
	}

	deal.TriggeredWorkflows = append(deal.TriggeredWorkflows, records...)

	return dr.Save(ctx, deal)
}

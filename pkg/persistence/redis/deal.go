package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dealrelay/dealrelay/pkg/models"
	"github.com/dealrelay/dealrelay/pkg/persistence"
)

// DealRepository stores deal records as JSON strings and their audit logs
// as Redis lists.
type DealRepository struct {
	client *goredis.Client
}

// NewDealRepository creates a new Redis deal repository.
func NewDealRepository(client *goredis.Client) *DealRepository {
	return &DealRepository{client: client}
}

func dealKey(dealID string) string {
	return fmt.Sprintf("%s:deal:%s", keyPrefix, dealID)
}

func dealOwnerKey(ownerID string) string {
	return fmt.Sprintf("%s:deal:owner:%s", keyPrefix, ownerID)
}

func dealTriggersKey(dealID string) string {
	return fmt.Sprintf("%s:deal:%s:triggered", keyPrefix, dealID)
}

// GetByID retrieves a deal and merges in its audit log list.
func (dr *DealRepository) GetByID(ctx context.Context, dealID string) (*models.Deal, error) {
	body, err := dr.client.Get(ctx, dealKey(dealID)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, persistence.NewDealError("GetByID", dealID, persistence.ErrDealNotFound)
		}

		return nil, fmt.Errorf("failed to fetch deal %s: %w", dealID, err)
	}

	var deal models.Deal

	err = json.Unmarshal([]byte(body), &deal)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal deal %s: %w", dealID, err)
	}

	records, err := dr.loadTriggerRecords(ctx, dealID)
	if err != nil {
		return nil, err
	}

	deal.TriggeredWorkflows = records

	return &deal, nil
}

func (dr *DealRepository) loadTriggerRecords(ctx context.Context, dealID string) ([]models.TriggerRecord, error) {
	items, err := dr.client.LRange(ctx, dealTriggersKey(dealID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trigger records for deal %s: %w", dealID, err)
	}

	if len(items) == 0 {
		return nil, nil
	}

	records := make([]models.TriggerRecord, 0, len(items))

	for _, item := range items {
		var record models.TriggerRecord

		if err := json.Unmarshal([]byte(item), &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger record for deal %s: %w", dealID, err)
		}

		records = append(records, record)
	}

	return records, nil
}

// ListByOwner returns the owner's deals, newest first.
func (dr *DealRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Deal, error) {
	ids, err := dr.client.SMembers(ctx, dealOwnerKey(ownerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list deals for owner %s: %w", ownerID, err)
	}

	deals := make([]*models.Deal, 0, len(ids))

	for _, id := range ids {
		deal, err := dr.GetByID(ctx, id)
		if err != nil {
			if persistence.IsDealNotFound(err) {
				continue // Index entry outlived the record
			}

			return nil, err
		}

		deals = append(deals, deal)
	}

	sort.Slice(deals, func(i, j int) bool {
		return deals[i].CreatedAt.After(deals[j].CreatedAt)
	})

	return deals, nil
}

// Save writes the deal record. The audit log lives in its own list and is
// not part of the saved JSON, so a save cannot clobber concurrent appends.
func (dr *DealRepository) Save(ctx context.Context, deal *models.Deal) error {
	stored := deal.Clone()
	stored.TriggeredWorkflows = nil

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal deal %s: %w", deal.ID, err)
	}

	pipe := dr.client.TxPipeline()
	pipe.Set(ctx, dealKey(deal.ID), data, 0)
	pipe.SAdd(ctx, dealOwnerKey(deal.OwnerID), deal.ID)

	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save deal %s: %w", deal.ID, err)
	}

	return nil
}

// Delete removes the deal record, its audit log and its owner-index entry.
func (dr *DealRepository) Delete(ctx context.Context, dealID string) error {
	deal, err := dr.GetByID(ctx, dealID)
	if err != nil {
		return err
	}

	pipe := dr.client.TxPipeline()
	pipe.Del(ctx, dealKey(dealID))
	pipe.Del(ctx, dealTriggersKey(dealID))
	pipe.SRem(ctx, dealOwnerKey(deal.OwnerID), dealID)

	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete deal %s: %w", dealID, err)
	}

	return nil
}

// AppendTriggerRecords pushes dispatch outcomes onto the deal's audit list
// in one RPUSH. Purely additive; concurrent appenders interleave but never
// drop entries.
func (dr *DealRepository) AppendTriggerRecords(ctx context.Context, dealID string, records []models.TriggerRecord) error {
	if len(records) == 0 {
		return nil
	}

	values := make([]any, 0, len(records))

	for _, record := range records {
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal trigger record for deal %s: %w", dealID, err)
		}

		values = append(values, data)
	}

	err := dr.client.RPush(ctx, dealTriggersKey(dealID), values...).Err()
	if err != nil {
		return persistence.NewDealError("AppendTriggerRecords", dealID, err)
	}

	return nil
}

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

// WorkflowRepository stores workflow registrations as JSON strings with a
// per-owner index set.
type WorkflowRepository struct {
	client *goredis.Client
}

// NewWorkflowRepository creates a new Redis workflow repository.
func NewWorkflowRepository(client *goredis.Client) *WorkflowRepository {
	return &WorkflowRepository{client: client}
}

func workflowKey(workflowID string) string {
	return fmt.Sprintf("%s:workflow:%s", keyPrefix, workflowID)
}

func workflowOwnerKey(ownerID string) string {
	return fmt.Sprintf("%s:workflow:owner:%s", keyPrefix, ownerID)
}

// GetByID retrieves a workflow by its ID.
func (wr *WorkflowRepository) GetByID(ctx context.Context, workflowID string) (*models.Workflow, error) {
	body, err := wr.client.Get(ctx, workflowKey(workflowID)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, persistence.NewWorkflowError("GetByID", workflowID, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to fetch workflow %s: %w", workflowID, err)
	}

	var workflow models.Workflow

	err = json.Unmarshal([]byte(body), &workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow %s: %w", workflowID, err)
	}

	return &workflow, nil
}

// ListByOwner returns the owner's workflows sorted by creation time.
func (wr *WorkflowRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Workflow, error) {
	ids, err := wr.client.SMembers(ctx, workflowOwnerKey(ownerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows for owner %s: %w", ownerID, err)
	}

	workflows := make([]*models.Workflow, 0, len(ids))

	for _, id := range ids {
		workflow, err := wr.GetByID(ctx, id)
		if err != nil {
			if persistence.IsWorkflowNotFound(err) {
				continue // Index entry outlived the record
			}

			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.Before(workflows[j].CreatedAt)
	})

	return workflows, nil
}

// FindActive returns the single snapshot of workflows matching the owner
// and event for one dispatch call.
func (wr *WorkflowRepository) FindActive(ctx context.Context, ownerID, event string) ([]*models.Workflow, error) {
	all, err := wr.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	matches := make([]*models.Workflow, 0)

	for _, workflow := range all {
		if workflow.Matches(ownerID, event) {
			matches = append(matches, workflow)
		}
	}

	return matches, nil
}

// CountActive returns the owner's number of active workflows.
func (wr *WorkflowRepository) CountActive(ctx context.Context, ownerID string) (int, error) {
	all, err := wr.ListByOwner(ctx, ownerID)
	if err != nil {
		return 0, err
	}

	count := 0

	for _, workflow := range all {
		if workflow.IsActive {
			count++
		}
	}

	return count, nil
}

// Save writes the workflow record and its owner-index entry.
func (wr *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	data, err := json.Marshal(workflow)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %s: %w", workflow.ID, err)
	}

	pipe := wr.client.TxPipeline()
	pipe.Set(ctx, workflowKey(workflow.ID), data, 0)
	pipe.SAdd(ctx, workflowOwnerKey(workflow.OwnerID), workflow.ID)

	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save workflow %s: %w", workflow.ID, err)
	}

	return nil
}

// Delete removes the workflow record and its owner-index entry.
func (wr *WorkflowRepository) Delete(ctx context.Context, workflowID string) error {
	workflow, err := wr.GetByID(ctx, workflowID)
	if err != nil {
		return err
	}

	pipe := wr.client.TxPipeline()
	pipe.Del(ctx, workflowKey(workflowID))
	pipe.SRem(ctx, workflowOwnerKey(workflow.OwnerID), workflowID)

	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete workflow %s: %w", workflowID, err)
	}

	return nil
}

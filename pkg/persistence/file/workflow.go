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

	"github.com/dealrelay/dealrelay/pkg/models"
	"github.com/dealrelay/dealrelay/pkg/persistence"
)

// WorkflowRepository handles workflow-registry file operations.
type WorkflowRepository struct {
	root string
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{root: root}
}

func (wr *WorkflowRepository) workflowPath(workflowID string) string {
	return filepath.Clean(path.Join(wr.root, "workflows", workflowID+".json"))
}

// GetByID retrieves a workflow by its ID from the file system.
func (wr *WorkflowRepository) GetByID(_ context.Context, workflowID string) (*models.Workflow, error) {
	body, err := os.ReadFile(wr.workflowPath(workflowID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewWorkflowError("GetByID", workflowID, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to fetch workflow %s: %w", workflowID, err)
	}

	var workflow models.Workflow

	err = json.Unmarshal(body, &workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow %s: %w", workflowID, err)
	}

	return &workflow, nil
}

func (wr *WorkflowRepository) loadAll(ctx context.Context) ([]*models.Workflow, error) {
	root := os.DirFS(path.Join(wr.root, "workflows"))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}

	workflows := make([]*models.Workflow, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		workflowID := file[:len(file)-5] // Remove .json extension

		workflow, err := wr.GetByID(ctx, workflowID)
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	return workflows, nil
}

// ListByOwner returns the owner's workflows sorted by creation time.
func (wr *WorkflowRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Workflow, error) {
	all, err := wr.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	workflows := make([]*models.Workflow, 0)

	for _, workflow := range all {
		if workflow.OwnerID == ownerID {
			workflows = append(workflows, workflow)
		}
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.Before(workflows[j].CreatedAt)
	})

	return workflows, nil
}

// FindActive returns the single snapshot of workflows matching the owner and
// event, used for one dispatch call.
func (wr *WorkflowRepository) FindActive(ctx context.Context, ownerID, event string) ([]*models.Workflow, error) {
	all, err := wr.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	matches := make([]*models.Workflow, 0)

	for _, workflow := range all {
		if workflow.Matches(ownerID, event) {
			matches = append(matches, workflow)
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.Before(matches[j].CreatedAt)
	})

	return matches, nil
}

// CountActive returns the owner's number of active workflows.
func (wr *WorkflowRepository) CountActive(ctx context.Context, ownerID string) (int, error) {
	all, err := wr.loadAll(ctx)
	if err != nil {
		return 0, err
	}

	count := 0

	for _, workflow := range all {
		if workflow.OwnerID == ownerID && workflow.IsActive {
			count++
		}
	}

	return count, nil
}

// Save writes the workflow record to disk.
func (wr *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	err := os.MkdirAll(path.Join(wr.root, "workflows"), 0750)
	if err != nil {
		return fmt.Errorf("failed to create workflows directory: %w", err)
	}

	data, err := json.MarshalIndent(workflow, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %s: %w", workflow.ID, err)
	}

	return os.WriteFile(wr.workflowPath(workflow.ID), data, 0600)
}

// Delete removes the workflow record from disk.
func (wr *WorkflowRepository) Delete(_ context.Context, workflowID string) error {
	err := os.Remove(wr.workflowPath(workflowID))
	if err != nil {
		if os.IsNotExist(err) {
			return persistence.NewWorkflowError("Delete", workflowID, persistence.ErrWorkflowNotFound)
		}

		return fmt.Errorf("failed to delete workflow %s: %w", workflowID, err)
	}

	return nil
}

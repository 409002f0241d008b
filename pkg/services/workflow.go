package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"github.com/dealrelay/dealrelay/pkg/events"
	"github.com/dealrelay/dealrelay/pkg/gate"
	"github.com/dealrelay/dealrelay/pkg/models"
	"github.com/dealrelay/dealrelay/pkg/persistence"
)

// Workflow manages a user's registry of installed automations: importing
// catalog templates, toggling activation under the plan's limits, and
// listing. Gate denials come back as decision values so callers can render
// upgrade prompts; they are never errors.
type Workflow struct {
	workflows persistence.WorkflowRepository
	catalog   persistence.CatalogRepository
	gate      *gate.Gate
	logger    *slog.Logger
}

// NewWorkflow creates the workflow service.
func NewWorkflow(store persistence.Persistence, accessGate *gate.Gate, logger *slog.Logger) *Workflow {
	return &Workflow{
		workflows: store.WorkflowRepository(),
		catalog:   store.CatalogRepository(),
		gate:      accessGate,
		logger:    logger.With("module", "workflow_service"),
	}
}

// ImportFromCatalog installs a catalog template as a new, inactive workflow
// owned by the user. The gate checks the tier requirement; params are
// validated against the template's JSON schema before anything is created.
func (s *Workflow) ImportFromCatalog(ctx context.Context, userID, catalogID string, params map[string]any) (*models.Workflow, gate.Decision, error) {
	if userID == "" {
		return nil, gate.Decision{}, NewValidationError("ImportFromCatalog", "EMPTY_OWNER_ID", "owner ID is required", ErrEmptyOwnerID)
	}

	entry, err := s.catalog.GetByID(ctx, catalogID)
	if err != nil {
		return nil, gate.Decision{}, err
	}

	decision, err := s.gate.CanImport(ctx, userID, entry)
	if err != nil {
		return nil, gate.Decision{}, err
	}

	if !decision.Allowed {
		s.logger.Info("Catalog import denied",
			"user_id", userID,
			"catalog_id", catalogID,
			"reason", decision.Reason)

		return nil, decision, nil
	}

	if err := validateParams(entry, params); err != nil {
		return nil, gate.Decision{}, err
	}

	now := time.Now()

	workflow := &models.Workflow{
		ID:          uuid.New().String(),
		OwnerID:     userID,
		Name:        entry.Name,
		Description: entry.Description,
		Category:    entry.Category,
		Trigger:     entry.Trigger,
		IsActive:    false, // Activation is a separate, gated step
		WebhookID:   entry.WebhookID,
		CatalogID:   entry.ID,
		Params:      params,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.workflows.Save(ctx, workflow); err != nil {
		return nil, gate.Decision{}, fmt.Errorf("failed to save imported workflow: %w", err)
	}

	s.logger.Info("Imported catalog workflow",
		"user_id", userID,
		"catalog_id", catalogID,
		"workflow_id", workflow.ID)

	return workflow, decision, nil
}

// Register creates a workflow directly, outside the catalog. The trigger
// must belong to the dispatchable event vocabulary.
func (s *Workflow) Register(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	if workflow.OwnerID == "" {
		return nil, NewValidationError("Register", "EMPTY_OWNER_ID", "owner ID is required", ErrEmptyOwnerID)
	}

	if !events.Known(events.EventType(workflow.Trigger)) {
		return nil, NewValidationError("Register", "UNKNOWN_TRIGGER",
			fmt.Sprintf("unknown trigger event %q", workflow.Trigger), ErrUnknownTrigger)
	}

	if workflow.ID == "" {
		workflow.ID = uuid.New().String()
	}

	workflow.IsActive = false

	now := time.Now()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	if err := s.workflows.Save(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	return workflow, nil
}

// Activate turns a workflow on, re-checking the plan's active-workflow
// limit at this moment rather than trusting the import-time state.
func (s *Workflow) Activate(ctx context.Context, userID, workflowID string) (*models.Workflow, gate.Decision, error) {
	workflow, err := s.ownedWorkflow(ctx, userID, workflowID)
	if err != nil {
		return nil, gate.Decision{}, err
	}

	if workflow.IsActive {
		return nil, gate.Decision{}, fmt.Errorf("workflow %s: %w", workflowID, ErrWorkflowAlreadyActive)
	}

	currentActive, err := s.workflows.CountActive(ctx, userID)
	if err != nil {
		return nil, gate.Decision{}, err
	}

	decision, err := s.gate.CanActivate(ctx, userID, currentActive)
	if err != nil {
		return nil, gate.Decision{}, err
	}

	if !decision.Allowed {
		s.logger.Info("Workflow activation denied",
			"user_id", userID,
			"workflow_id", workflowID,
			"reason", decision.Reason)

		return nil, decision, nil
	}

	workflow.IsActive = true
	workflow.UpdatedAt = time.Now()

	if err := s.workflows.Save(ctx, workflow); err != nil {
		return nil, gate.Decision{}, fmt.Errorf("failed to activate workflow %s: %w", workflowID, err)
	}

	return workflow, decision, nil
}

// Deactivate turns a workflow off. Never gated.
func (s *Workflow) Deactivate(ctx context.Context, userID, workflowID string) (*models.Workflow, error) {
	workflow, err := s.ownedWorkflow(ctx, userID, workflowID)
	if err != nil {
		return nil, err
	}

	if workflow.IsActive {
		workflow.IsActive = false
		workflow.UpdatedAt = time.Now()

		if err := s.workflows.Save(ctx, workflow); err != nil {
			return nil, fmt.Errorf("failed to deactivate workflow %s: %w", workflowID, err)
		}
	}

	return workflow, nil
}

// Delete removes a workflow registration. Audit entries referencing it stay
// on their deals.
func (s *Workflow) Delete(ctx context.Context, userID, workflowID string) error {
	if _, err := s.ownedWorkflow(ctx, userID, workflowID); err != nil {
		return err
	}

	return s.workflows.Delete(ctx, workflowID)
}

// List returns the user's workflow registrations.
func (s *Workflow) List(ctx context.Context, userID string) ([]*models.Workflow, error) {
	if userID == "" {
		return nil, NewValidationError("List", "EMPTY_OWNER_ID", "owner ID is required", ErrEmptyOwnerID)
	}

	return s.workflows.ListByOwner(ctx, userID)
}

func (s *Workflow) ownedWorkflow(ctx context.Context, userID, workflowID string) (*models.Workflow, error) {
	workflow, err := s.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if workflow.OwnerID != userID {
		return nil, fmt.Errorf("workflow %s: %w", workflowID, ErrNotWorkflowOwner)
	}

	return workflow, nil
}

// validateParams checks the import params against the template's JSON
// schema, if it declares one.
func validateParams(entry *models.CatalogEntry, params map[string]any) error {
	if len(entry.ParamsSchema) == 0 {
		return nil
	}

	if params == nil {
		params = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(entry.ParamsSchema),
		gojsonschema.NewGoLoader(params),
	)
	if err != nil {
		return fmt.Errorf("failed to validate params for catalog entry %s: %w", entry.ID, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return NewValidationError("ImportFromCatalog", "INVALID_PARAMS",
			strings.Join(details, "; "), ErrInvalidParams)
	}

	return nil
}

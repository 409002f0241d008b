package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealrelay/dealrelay/pkg/events"
	"github.com/dealrelay/dealrelay/pkg/gate"
	"github.com/dealrelay/dealrelay/pkg/log"
	"github.com/dealrelay/dealrelay/pkg/models"
	"github.com/dealrelay/dealrelay/pkg/persistence"
	"github.com/dealrelay/dealrelay/pkg/persistence/file"
	"github.com/dealrelay/dealrelay/pkg/services"
	"github.com/dealrelay/dealrelay/pkg/subscription"
)

func setupWorkflowService(t *testing.T, plan models.PlanName) (*services.Workflow, *file.Persistence) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())

	require.NoError(t, store.CatalogRepository().Seed(context.Background(), []*models.CatalogEntry{
		{
			ID:           "cat-followup",
			Name:         "Lead follow-up email",
			Category:     "email",
			RequiredTier: models.TierStarter,
			Trigger:      string(events.DealCreated),
			WebhookID:    "hook-followup",
		},
		{
			ID:           "cat-slack",
			Name:         "Slack deal alerts",
			Category:     "notifications",
			RequiredTier: models.TierProfessional,
			Trigger:      string(events.DealWon),
			WebhookID:    "hook-slack",
			ParamsSchema: map[string]any{
				"type":     "object",
				"required": []any{"channel"},
				"properties": map[string]any{
					"channel": map[string]any{"type": "string", "minLength": 1},
				},
			},
		},
	}))

	resolver := subscription.NewStaticResolver(nil, subscription.PlanFor(plan, subscription.DefaultLimits()))
	service := services.NewWorkflow(store, gate.New(resolver, nil), log.WithModule("test"))

	return service, store
}

func TestImportFromCatalog_Allowed(t *testing.T) {
	t.Parallel()

	service, store := setupWorkflowService(t, models.PlanProfessional)

	workflow, decision, err := service.ImportFromCatalog(context.Background(), "user-1", "cat-slack",
		map[string]any{"channel": "#sales"})
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.NotNil(t, workflow)

	assert.Equal(t, "user-1", workflow.OwnerID)
	assert.Equal(t, "cat-slack", workflow.CatalogID)
	assert.Equal(t, "hook-slack", workflow.WebhookID)
	assert.Equal(t, string(events.DealWon), workflow.Trigger)
	assert.False(t, workflow.IsActive, "imports land inactive")

	stored, err := store.WorkflowRepository().GetByID(context.Background(), workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, "#sales", stored.Params["channel"])
}

func TestImportFromCatalog_TierDenialIsAValueNotAnError(t *testing.T) {
	t.Parallel()

	service, store := setupWorkflowService(t, models.PlanStarter)

	workflow, decision, err := service.ImportFromCatalog(context.Background(), "user-1", "cat-slack",
		map[string]any{"channel": "#sales"})
	require.NoError(t, err)
	assert.Nil(t, workflow)
	assert.False(t, decision.Allowed)
	assert.Equal(t, gate.ReasonTierTooLow, decision.Reason)

	// Nothing was created.
	registrations, err := store.WorkflowRepository().ListByOwner(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, registrations)
}

func TestImportFromCatalog_InvalidParamsRejected(t *testing.T) {
	t.Parallel()

	service, _ := setupWorkflowService(t, models.PlanProfessional)

	_, _, err := service.ImportFromCatalog(context.Background(), "user-1", "cat-slack",
		map[string]any{"channel": 42})
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))
	assert.ErrorIs(t, err, services.ErrInvalidParams)

	_, _, err = service.ImportFromCatalog(context.Background(), "user-1", "cat-slack", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrInvalidParams)
}

func TestImportFromCatalog_UnknownEntry(t *testing.T) {
	t.Parallel()

	service, _ := setupWorkflowService(t, models.PlanProfessional)

	_, _, err := service.ImportFromCatalog(context.Background(), "user-1", "cat-missing", nil)
	require.Error(t, err)
	assert.True(t, persistence.IsCatalogEntryNotFound(err))
}

func TestRegister_ValidatesTrigger(t *testing.T) {
	t.Parallel()

	service, _ := setupWorkflowService(t, models.PlanProfessional)

	_, err := service.Register(context.Background(), &models.Workflow{
		OwnerID:   "user-1",
		Name:      "Custom",
		Trigger:   "deal_exploded",
		WebhookID: "hook-x",
	})
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))
	assert.ErrorIs(t, err, services.ErrUnknownTrigger)

	workflow, err := service.Register(context.Background(), &models.Workflow{
		OwnerID:   "user-1",
		Name:      "Custom",
		Trigger:   string(events.CallCompleted),
		WebhookID: "hook-x",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, workflow.ID)
	assert.False(t, workflow.IsActive)
}

func TestActivate_EnforcesPlanLimit(t *testing.T) {
	t.Parallel()

	service, _ := setupWorkflowService(t, models.PlanTrial)

	first, err := service.Register(context.Background(), &models.Workflow{
		OwnerID: "user-1", Name: "one", Trigger: string(events.DealCreated), WebhookID: "h1",
	})
	require.NoError(t, err)

	second, err := service.Register(context.Background(), &models.Workflow{
		OwnerID: "user-1", Name: "two", Trigger: string(events.DealWon), WebhookID: "h2",
	})
	require.NoError(t, err)

	activated, decision, err := service.Activate(context.Background(), "user-1", first.ID)
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	assert.True(t, activated.IsActive)

	// The trial plan allows one active workflow.
	denied, decision, err := service.Activate(context.Background(), "user-1", second.ID)
	require.NoError(t, err)
	assert.Nil(t, denied)
	assert.False(t, decision.Allowed)
	assert.Equal(t, gate.ReasonLimitReached, decision.Reason)

	// Deactivating the first frees the slot.
	_, err = service.Deactivate(context.Background(), "user-1", first.ID)
	require.NoError(t, err)

	activated, decision, err = service.Activate(context.Background(), "user-1", second.ID)
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	assert.True(t, activated.IsActive)
}

func TestActivate_AlreadyActiveIsConflict(t *testing.T) {
	t.Parallel()

	service, _ := setupWorkflowService(t, models.PlanProfessional)

	workflow, err := service.Register(context.Background(), &models.Workflow{
		OwnerID: "user-1", Name: "one", Trigger: string(events.DealCreated), WebhookID: "h1",
	})
	require.NoError(t, err)

	_, _, err = service.Activate(context.Background(), "user-1", workflow.ID)
	require.NoError(t, err)

	_, _, err = service.Activate(context.Background(), "user-1", workflow.ID)
	require.ErrorIs(t, err, services.ErrWorkflowAlreadyActive)
}

func TestWorkflowOwnership(t *testing.T) {
	t.Parallel()

	service, _ := setupWorkflowService(t, models.PlanProfessional)

	workflow, err := service.Register(context.Background(), &models.Workflow{
		OwnerID: "user-1", Name: "one", Trigger: string(events.DealCreated), WebhookID: "h1",
	})
	require.NoError(t, err)

	_, _, err = service.Activate(context.Background(), "user-2", workflow.ID)
	require.ErrorIs(t, err, services.ErrNotWorkflowOwner)

	err = service.Delete(context.Background(), "user-2", workflow.ID)
	require.ErrorIs(t, err, services.ErrNotWorkflowOwner)

	require.NoError(t, service.Delete(context.Background(), "user-1", workflow.ID))

	_, err = service.List(context.Background(), "")
	assert.ErrorIs(t, err, services.ErrEmptyOwnerID)
}

package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealrelay/dealrelay/pkg/catalog"
	"github.com/dealrelay/dealrelay/pkg/deal"
	"github.com/dealrelay/dealrelay/pkg/events"
	"github.com/dealrelay/dealrelay/pkg/gate"
	"github.com/dealrelay/dealrelay/pkg/log"
	"github.com/dealrelay/dealrelay/pkg/models"
	"github.com/dealrelay/dealrelay/pkg/persistence/file"
	"github.com/dealrelay/dealrelay/pkg/services"
	"github.com/dealrelay/dealrelay/pkg/subscription"
	"github.com/dealrelay/dealrelay/pkg/web"
)

type testEnv struct {
	app   *fiber.App
	store *file.Persistence
}

func setupTestApp(t *testing.T, plan models.PlanName) *testEnv {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	logger := log.WithModule("test")

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
		},
	}))

	resolver := subscription.NewStaticResolver(nil, subscription.PlanFor(plan, subscription.DefaultLimits()))
	accessGate := gate.New(resolver, nil)

	dealService := services.NewDeal(store, deal.New(), nil, logger)
	workflowService := services.NewWorkflow(store, accessGate, logger)
	browser := catalog.NewBrowser(store.CatalogRepository(), resolver)

	handlers := web.NewAPIHandlers(dealService, workflowService, browser,
		func() (string, bool) { return "ok", true },
		validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()

	d := app.Group("/deals")
	d.Post("/", handlers.CreateDeal)
	d.Get("/", handlers.GetDeals)
	d.Get("/:id", handlers.GetDeal)
	d.Patch("/:id", handlers.UpdateDeal)
	d.Get("/:id/triggers", handlers.GetDealTriggers)

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.RegisterWorkflow)
	w.Post("/import", handlers.ImportWorkflow)
	w.Post("/:id/activate", handlers.ActivateWorkflow)
	w.Post("/:id/deactivate", handlers.DeactivateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)

	app.Get("/catalog", handlers.BrowseCatalog)
	app.Get("/health", handlers.HealthCheck)

	return &testEnv{app: app, store: store}
}

func (e *testEnv) request(t *testing.T, method, target, userID string, body any) *http.Response {
	t.Helper()

	var reader io.Reader

	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}

	resp, err := e.app.Test(req)
	require.NoError(t, err)

	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()

	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	return body
}

func TestCreateDeal(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t, models.PlanProfessional)

	resp := env.request(t, http.MethodPost, "/deals/", "user-1", map[string]any{
		"title": "Acme renewal",
		"value": 10000,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "lead", body["stage"])
	assert.InDelta(t, 10.0, body["probability"], 0.001)
	assert.InDelta(t, 1000.0, body["weighted_value"], 0.001)
	assert.NotEmpty(t, body["id"])
}

func TestCreateDeal_Validation(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t, models.PlanProfessional)

	resp := env.request(t, http.MethodPost, "/deals/", "", map[string]any{"title": "No user"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.request(t, http.MethodPost, "/deals/", "user-1", map[string]any{"value": 100})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdateDeal_StageTransition(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t, models.PlanProfessional)

	resp := env.request(t, http.MethodPost, "/deals/", "user-1", map[string]any{
		"title": "Acme renewal",
		"value": 10000,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody(t, resp)
	dealID := created["id"].(string)

	resp = env.request(t, http.MethodPatch, "/deals/"+dealID, "user-1", map[string]any{
		"stage": "won",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "won", body["stage"])
	assert.InDelta(t, 100.0, body["probability"], 0.001)
	assert.NotEmpty(t, body["actual_close_date"])
}

func TestUpdateDeal_InvalidStage(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t, models.PlanProfessional)

	resp := env.request(t, http.MethodPost, "/deals/", "user-1", map[string]any{
		"title": "Acme renewal",
		"value": 10000,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	dealID := decodeBody(t, resp)["id"].(string)

	resp = env.request(t, http.MethodPatch, "/deals/"+dealID, "user-1", map[string]any{
		"stage": "closed",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetDeal_NotFound(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t, models.PlanProfessional)

	resp := env.request(t, http.MethodGet, "/deals/missing", "user-1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "deal_not_found", body["type"])
}

func TestDealEndpoints_OtherUsersDealReadsAsNotFound(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t, models.PlanProfessional)

	resp := env.request(t, http.MethodPost, "/deals/", "user-1", map[string]any{
		"title": "Acme renewal",
		"value": 10000,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	dealID := decodeBody(t, resp)["id"].(string)

	resp = env.request(t, http.MethodGet, "/deals/"+dealID, "user-2", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.request(t, http.MethodGet, "/deals/"+dealID+"/triggers", "user-2", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.request(t, http.MethodPatch, "/deals/"+dealID, "user-2", map[string]any{
		"stage": "won",
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "deal_not_found", body["type"])

	// The owner still sees an untouched deal.
	resp = env.request(t, http.MethodGet, "/deals/"+dealID, "user-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "lead", decodeBody(t, resp)["stage"])
}

func TestGetDealTriggers_EmptyLog(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t, models.PlanProfessional)

	resp := env.request(t, http.MethodPost, "/deals/", "user-1", map[string]any{
		"title": "Acme renewal",
		"value": 10000,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	dealID := decodeBody(t, resp)["id"].(string)

	resp = env.request(t, http.MethodGet, "/deals/"+dealID+"/triggers", "user-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	records, ok := body["triggered_workflows"].([]any)
	require.True(t, ok)
	assert.Empty(t, records)
}

func TestImportWorkflow_DenialIs403WithReason(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t, models.PlanStarter)

	resp := env.request(t, http.MethodPost, "/workflows/import", "user-1", map[string]any{
		"catalog_id": "cat-slack",
	})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "tier_too_low", body["type"])
	assert.Contains(t, body["detail"], "Upgrade")
}

func TestImportWorkflow_Allowed(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t, models.PlanProfessional)

	resp := env.request(t, http.MethodPost, "/workflows/import", "user-1", map[string]any{
		"catalog_id": "cat-slack",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "cat-slack", body["catalog_id"])
	assert.Equal(t, false, body["is_active"])
}

func TestImportWorkflow_UnknownEntry(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t, models.PlanProfessional)

	resp := env.request(t, http.MethodPost, "/workflows/import", "user-1", map[string]any{
		"catalog_id": "cat-missing",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestActivateWorkflow_LimitDenialIs403(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t, models.PlanTrial)

	register := func(name string) string {
		resp := env.request(t, http.MethodPost, "/workflows/", "user-1", map[string]any{
			"name":       name,
			"trigger":    "deal_won",
			"webhook_id": "hook-1",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		return decodeBody(t, resp)["id"].(string)
	}

	first := register("First workflow")
	second := register("Second workflow")

	resp := env.request(t, http.MethodPost, "/workflows/"+first+"/activate", "user-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.request(t, http.MethodPost, "/workflows/"+second+"/activate", "user-1", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "limit_reached", body["type"])
}

func TestActivateWorkflow_ConflictWhenAlreadyActive(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t, models.PlanProfessional)

	resp := env.request(t, http.MethodPost, "/workflows/", "user-1", map[string]any{
		"name":       "First workflow",
		"trigger":    "deal_won",
		"webhook_id": "hook-1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := decodeBody(t, resp)["id"].(string)

	resp = env.request(t, http.MethodPost, "/workflows/"+id+"/activate", "user-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.request(t, http.MethodPost, "/workflows/"+id+"/activate", "user-1", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRegisterWorkflow_UnknownTriggerRejected(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t, models.PlanProfessional)

	resp := env.request(t, http.MethodPost, "/workflows/", "user-1", map[string]any{
		"name":       "Bad trigger",
		"trigger":    "deal_exploded",
		"webhook_id": "hook-1",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteWorkflow(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t, models.PlanProfessional)

	resp := env.request(t, http.MethodPost, "/workflows/", "user-1", map[string]any{
		"name":       "Short lived",
		"trigger":    "deal_won",
		"webhook_id": "hook-1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := decodeBody(t, resp)["id"].(string)

	resp = env.request(t, http.MethodDelete, "/workflows/"+id, "user-1", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.request(t, http.MethodDelete, "/workflows/"+id, "user-1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBrowseCatalog(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t, models.PlanStarter)

	resp := env.request(t, http.MethodGet, "/catalog?sort_by=name", "user-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	items, ok := body["items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 2)
	assert.InDelta(t, 2.0, body["total_count"], 0.001)

	first := items[0].(map[string]any)
	entry := first["entry"].(map[string]any)
	assert.Equal(t, "cat-followup", entry["id"])
	assert.Equal(t, true, first["importable"])

	second := items[1].(map[string]any)
	assert.Equal(t, false, second["importable"])
}

func TestBrowseCatalog_InvalidSort(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t, models.PlanStarter)

	resp := env.request(t, http.MethodGet, "/catalog?sort_by=price", "user-1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t, models.PlanProfessional)

	resp := env.request(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "healthy", body["status"])
}

// Package web provides the HTTP handlers for the automation API: deals,
// workflow registrations and the marketplace catalog. Authentication is an
// external collaborator; the owning user arrives in the X-User-ID header.
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/dealrelay/dealrelay/pkg/catalog"
	"github.com/dealrelay/dealrelay/pkg/deal"
	"github.com/dealrelay/dealrelay/pkg/models"
	"github.com/dealrelay/dealrelay/pkg/services"
)

const userIDHeader = "X-User-ID"

type APIHandlers struct {
	dealService     *services.Deal
	workflowService *services.Workflow
	browser         *catalog.Browser
	healthCheck     func() (string, bool)
	validator       *validator.Validate
}

func NewAPIHandlers(
	dealService *services.Deal,
	workflowService *services.Workflow,
	browser *catalog.Browser,
	healthCheck func() (string, bool),
	validate *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		dealService:     dealService,
		workflowService: workflowService,
		browser:         browser,
		healthCheck:     healthCheck,
		validator:       validate,
	}
}

func (h *APIHandlers) userID(c fiber.Ctx) string {
	return c.Get(userIDHeader)
}

// HealthCheck reports persistence health.
func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	message, ok := h.healthCheck()

	status := "unhealthy"
	httpStatus := http.StatusServiceUnavailable

	if ok {
		status = "healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}

// Deals

func (h *APIHandlers) CreateDeal(c fiber.Ctx) error {
	userID := h.userID(c)
	if userID == "" {
		return badRequest(c, "X-User-ID header is required")
	}

	var req CreateDealRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	createReq := services.CreateDealRequest{
		OwnerID:           userID,
		Title:             req.Title,
		ContactID:         req.ContactID,
		Value:             req.Value,
		Currency:          req.Currency,
		Probability:       req.Probability,
		ExpectedCloseDate: req.ExpectedCloseDate,
	}

	if req.Stage != nil {
		stage := models.Stage(*req.Stage)
		createReq.Stage = &stage
	}

	created, err := h.dealService.Create(c.Context(), createReq)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(TransformDealResponse(created))
}

func (h *APIHandlers) GetDeals(c fiber.Ctx) error {
	userID := h.userID(c)
	if userID == "" {
		return badRequest(c, "X-User-ID header is required")
	}

	deals, err := h.dealService.List(c.Context(), userID)
	if err != nil {
		return handleServiceError(c, err)
	}

	responses := make([]DealResponse, 0, len(deals))
	for _, d := range deals {
		responses = append(responses, TransformDealResponse(d))
	}

	return c.JSON(fiber.Map{"deals": responses})
}

func (h *APIHandlers) GetDeal(c fiber.Ctx) error {
	userID := h.userID(c)
	id := c.Params("id")

	if userID == "" || id == "" {
		return badRequest(c, "X-User-ID header and deal ID are required")
	}

	found, err := h.dealService.Get(c.Context(), userID, id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(TransformDealResponse(found))
}

// UpdateDeal patches a deal. Stage changes run through the state machine
// and may fan automations out asynchronously; the response never depends on
// whether those automations succeed.
func (h *APIHandlers) UpdateDeal(c fiber.Ctx) error {
	userID := h.userID(c)
	id := c.Params("id")

	if userID == "" || id == "" {
		return badRequest(c, "X-User-ID header and deal ID are required")
	}

	var req UpdateDealRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	patch := deal.Patch{
		Title:             req.Title,
		ContactID:         req.ContactID,
		Value:             req.Value,
		Currency:          req.Currency,
		Probability:       req.Probability,
		ExpectedCloseDate: req.ExpectedCloseDate,
	}

	if req.Stage != nil {
		stage := models.Stage(*req.Stage)
		patch.Stage = &stage
	}

	updated, err := h.dealService.Update(c.Context(), userID, id, patch)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(TransformDealResponse(updated))
}

// GetDealTriggers exposes the deal's automation audit log.
func (h *APIHandlers) GetDealTriggers(c fiber.Ctx) error {
	userID := h.userID(c)
	id := c.Params("id")

	if userID == "" || id == "" {
		return badRequest(c, "X-User-ID header and deal ID are required")
	}

	found, err := h.dealService.Get(c.Context(), userID, id)
	if err != nil {
		return handleServiceError(c, err)
	}

	records := found.TriggeredWorkflows
	if records == nil {
		records = []models.TriggerRecord{}
	}

	return c.JSON(fiber.Map{"triggered_workflows": records})
}

// Workflows

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	userID := h.userID(c)
	if userID == "" {
		return badRequest(c, "X-User-ID header is required")
	}

	workflows, err := h.workflowService.List(c.Context(), userID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"workflows": workflows})
}

func (h *APIHandlers) RegisterWorkflow(c fiber.Ctx) error {
	userID := h.userID(c)
	if userID == "" {
		return badRequest(c, "X-User-ID header is required")
	}

	var req RegisterWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	workflow := &models.Workflow{
		OwnerID:     userID,
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Trigger:     req.Trigger,
		WebhookID:   req.WebhookID,
		Params:      req.Params,
	}

	created, err := h.workflowService.Register(c.Context(), workflow)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) ImportWorkflow(c fiber.Ctx) error {
	userID := h.userID(c)
	if userID == "" {
		return badRequest(c, "X-User-ID header is required")
	}

	var req ImportWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	imported, decision, err := h.workflowService.ImportFromCatalog(c.Context(), userID, req.CatalogID, req.Params)
	if err != nil {
		return handleServiceError(c, err)
	}

	if !decision.Allowed {
		return denialResponse(c, decision)
	}

	return c.Status(fiber.StatusCreated).JSON(imported)
}

func (h *APIHandlers) ActivateWorkflow(c fiber.Ctx) error {
	userID := h.userID(c)
	id := c.Params("id")

	if userID == "" || id == "" {
		return badRequest(c, "X-User-ID header and workflow ID are required")
	}

	activated, decision, err := h.workflowService.Activate(c.Context(), userID, id)
	if err != nil {
		return handleServiceError(c, err)
	}

	if !decision.Allowed {
		return denialResponse(c, decision)
	}

	return c.JSON(activated)
}

func (h *APIHandlers) DeactivateWorkflow(c fiber.Ctx) error {
	userID := h.userID(c)
	id := c.Params("id")

	if userID == "" || id == "" {
		return badRequest(c, "X-User-ID header and workflow ID are required")
	}

	deactivated, err := h.workflowService.Deactivate(c.Context(), userID, id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(deactivated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	userID := h.userID(c)
	id := c.Params("id")

	if userID == "" || id == "" {
		return badRequest(c, "X-User-ID header and workflow ID are required")
	}

	if err := h.workflowService.Delete(c.Context(), userID, id); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Catalog

func (h *APIHandlers) BrowseCatalog(c fiber.Ctx) error {
	userID := h.userID(c)
	if userID == "" {
		return badRequest(c, "X-User-ID header is required")
	}

	req, err := h.parseBrowseRequest(c, userID)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	result, err := h.browser.Browse(c.Context(), *req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"items":         result.Items,
		"total_count":   result.TotalCount,
		"has_next_page": result.HasNextPage,
		"pagination": fiber.Map{
			"page":      result.Page,
			"page_size": result.PageSize,
		},
	})
}

func (h *APIHandlers) parseBrowseRequest(c fiber.Ctx, userID string) (*catalog.BrowseRequest, error) {
	req := &catalog.BrowseRequest{
		UserID:   userID,
		Category: c.Query("category"),
		Search:   c.Query("search"),
		SortBy:   c.Query("sort_by"),
	}

	if pageStr := c.Query("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil {
			return nil, err
		}

		req.Page = page
	}

	if pageSizeStr := c.Query("page_size"); pageSizeStr != "" {
		pageSize, err := strconv.Atoi(pageSizeStr)
		if err != nil {
			return nil, err
		}

		req.PageSize = pageSize
	}

	if err := h.validator.Struct(req); err != nil {
		return nil, err
	}

	return req, nil
}

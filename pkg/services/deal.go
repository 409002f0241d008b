package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dealrelay/dealrelay/pkg/deal"
	"github.com/dealrelay/dealrelay/pkg/eventbus"
	"github.com/dealrelay/dealrelay/pkg/events"
	"github.com/dealrelay/dealrelay/pkg/models"
	"github.com/dealrelay/dealrelay/pkg/persistence"
)

// Deal is the write path for deal records: it runs the state machine,
// persists the result, and hands any trigger events to the event bus for
// asynchronous dispatch. A deal save never fails because an automation
// failed; automation outcomes surface in the audit log only.
type Deal struct {
	deals     persistence.DealRepository
	machine   *deal.StateMachine
	publisher eventbus.EventPublisher
	logger    *slog.Logger
}

// NewDeal creates the deal service. publisher may be nil, which disables
// automation fan-out (useful in imports and backfills).
func NewDeal(store persistence.Persistence, machine *deal.StateMachine, publisher eventbus.EventPublisher, logger *slog.Logger) *Deal {
	return &Deal{
		deals:     store.DealRepository(),
		machine:   machine,
		publisher: publisher,
		logger:    logger.With("module", "deal_service"),
	}
}

// CreateDealRequest carries the fields for a new deal.
type CreateDealRequest struct {
	OwnerID           string  `validate:"required"`
	Title             string  `validate:"required,min=1"`
	ContactID         string
	Value             float64 `validate:"min=0"`
	Currency          string
	Stage             *models.Stage
	Probability       *int
	ExpectedCloseDate *time.Time
}

// Create builds a new deal through the state machine and persists it.
func (s *Deal) Create(ctx context.Context, req CreateDealRequest) (*models.Deal, error) {
	if req.OwnerID == "" {
		return nil, NewValidationError("Create", "EMPTY_OWNER_ID", "owner ID is required", ErrEmptyOwnerID)
	}

	patch := deal.Patch{
		OwnerID:           req.OwnerID,
		Title:             &req.Title,
		Value:             &req.Value,
		Stage:             req.Stage,
		Probability:       req.Probability,
		ExpectedCloseDate: req.ExpectedCloseDate,
	}

	if req.ContactID != "" {
		patch.ContactID = &req.ContactID
	}

	if req.Currency != "" {
		patch.Currency = &req.Currency
	}

	next, evts, err := s.machine.ApplyUpdate(nil, patch)
	if err != nil {
		return nil, err
	}

	if err := s.deals.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to save deal: %w", err)
	}

	s.publishEvents(ctx, evts)

	return next, nil
}

// Update applies a patch to the owner's deal. Stage transitions derive
// probability and close dates and may fan out trigger events.
func (s *Deal) Update(ctx context.Context, ownerID, dealID string, patch deal.Patch) (*models.Deal, error) {
	current, err := s.ownedDeal(ctx, ownerID, dealID)
	if err != nil {
		return nil, err
	}

	next, evts, err := s.machine.ApplyUpdate(current, patch)
	if err != nil {
		return nil, err
	}

	if err := s.deals.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to save deal %s: %w", dealID, err)
	}

	s.publishEvents(ctx, evts)

	return next, nil
}

// Get returns one of the owner's deals with its audit log.
func (s *Deal) Get(ctx context.Context, ownerID, dealID string) (*models.Deal, error) {
	return s.ownedDeal(ctx, ownerID, dealID)
}

// List returns the owner's deals.
func (s *Deal) List(ctx context.Context, ownerID string) ([]*models.Deal, error) {
	if ownerID == "" {
		return nil, NewValidationError("List", "EMPTY_OWNER_ID", "owner ID is required", ErrEmptyOwnerID)
	}

	return s.deals.ListByOwner(ctx, ownerID)
}

// Delete removes one of the owner's deal records.
func (s *Deal) Delete(ctx context.Context, ownerID, dealID string) error {
	if _, err := s.ownedDeal(ctx, ownerID, dealID); err != nil {
		return err
	}

	return s.deals.Delete(ctx, dealID)
}

func (s *Deal) ownedDeal(ctx context.Context, ownerID, dealID string) (*models.Deal, error) {
	found, err := s.deals.GetByID(ctx, dealID)
	if err != nil {
		return nil, err
	}

	if found.OwnerID != ownerID {
		return nil, fmt.Errorf("deal %s: %w", dealID, ErrNotDealOwner)
	}

	return found, nil
}

// publishEvents hands trigger events to the bus. Publish failures are
// logged and swallowed: the save already succeeded and must stay succeeded.
func (s *Deal) publishEvents(ctx context.Context, evts []events.DealEvent) {
	if s.publisher == nil || len(evts) == 0 {
		return
	}

	for _, evt := range evts {
		if err := s.publisher.Publish(ctx, evt.DealID, evt); err != nil {
			s.logger.Error("Failed to publish deal event",
				"event_type", evt.Type,
				"deal_id", evt.DealID,
				"error", err)
		}
	}
}

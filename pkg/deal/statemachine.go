// Package deal implements the deal state machine: pure stage-transition
// logic with derived-field maintenance and deterministic trigger events.
package deal

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dealrelay/dealrelay/pkg/events"
	"github.com/dealrelay/dealrelay/pkg/models"
)

var (
	// ErrInvalidStage is returned when a patch carries a stage outside the
	// legal funnel values. The deal is left untouched.
	ErrInvalidStage = errors.New("invalid deal stage")

	// ErrInvalidProbability is returned when a patch carries a probability
	// outside 0-100.
	ErrInvalidProbability = errors.New("probability must be between 0 and 100")
)

// Patch describes a partial deal update. Nil fields are untouched. OwnerID
// is only consulted when the patch creates a brand-new deal.
type Patch struct {
	OwnerID           string
	Title             *string
	ContactID         *string
	Value             *float64
	Currency          *string
	Stage             *models.Stage
	Probability       *int
	ExpectedCloseDate *time.Time
}

// StateMachine applies patches to deals. The clock is injectable so close
// timestamps and event times are testable.
type StateMachine struct {
	now func() time.Time
}

// New returns a state machine using the wall clock.
func New() *StateMachine {
	return &StateMachine{now: time.Now}
}

// NewWithClock returns a state machine using the given clock.
func NewWithClock(now func() time.Time) *StateMachine {
	return &StateMachine{now: now}
}

// ApplyUpdate applies patch to current and returns the next snapshot plus
// the trigger events the update produced. current is never mutated; a nil
// current means the patch creates a brand-new deal and yields a single
// deal_created event. Events are a deterministic function of (current,
// patch, clock) and are emitted all-or-nothing for one update.
func (sm *StateMachine) ApplyUpdate(current *models.Deal, patch Patch) (*models.Deal, []events.DealEvent, error) {
	if err := validatePatch(patch); err != nil {
		return nil, nil, err
	}

	if current == nil {
		return sm.create(patch)
	}

	next := current.Clone()
	applyFields(next, patch)

	now := sm.now()
	next.UpdatedAt = now

	// Same-stage patches are not transitions, whatever else changed.
	if patch.Stage == nil || *patch.Stage == current.Stage {
		if patch.Probability != nil {
			next.Probability = *patch.Probability
		}

		return next, nil, nil
	}

	oldStage := current.Stage
	newStage := *patch.Stage
	next.Stage = newStage

	if patch.Probability != nil {
		next.Probability = *patch.Probability
	} else {
		next.Probability = models.DefaultProbability(newStage)
	}

	// Close date is written exactly once, on the first terminal transition.
	if newStage.Terminal() && current.ActualCloseDate == nil {
		closeDate := now
		next.ActualCloseDate = &closeDate
	}

	evts := []events.DealEvent{
		events.NewDealEvent(events.DealStageChanged, next.OwnerID, next.ID, now, map[string]any{
			"old_stage": string(oldStage),
			"new_stage": string(newStage),
		}),
	}

	switch newStage {
	case models.StageWon:
		evts = append(evts, events.NewDealEvent(events.DealWon, next.OwnerID, next.ID, now, dealData(next)))
	case models.StageLost:
		evts = append(evts, events.NewDealEvent(events.DealLost, next.OwnerID, next.ID, now, dealData(next)))
	}

	return next, evts, nil
}

func (sm *StateMachine) create(patch Patch) (*models.Deal, []events.DealEvent, error) {
	now := sm.now()

	next := &models.Deal{
		ID:        uuid.New().String(),
		OwnerID:   patch.OwnerID,
		Stage:     models.StageLead,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyFields(next, patch)

	if patch.Stage != nil {
		next.Stage = *patch.Stage
	}

	if patch.Probability != nil {
		next.Probability = *patch.Probability
	} else {
		next.Probability = models.DefaultProbability(next.Stage)
	}

	if next.Stage.Terminal() {
		closeDate := now
		next.ActualCloseDate = &closeDate
	}

	evt := events.NewDealEvent(events.DealCreated, next.OwnerID, next.ID, now, dealData(next))

	return next, []events.DealEvent{evt}, nil
}

func validatePatch(patch Patch) error {
	if patch.Stage != nil && !patch.Stage.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStage, *patch.Stage)
	}

	if patch.Probability != nil && (*patch.Probability < 0 || *patch.Probability > 100) {
		return fmt.Errorf("%w: got %d", ErrInvalidProbability, *patch.Probability)
	}

	return nil
}

func applyFields(d *models.Deal, patch Patch) {
	if patch.Title != nil {
		d.Title = *patch.Title
	}

	if patch.ContactID != nil {
		d.ContactID = *patch.ContactID
	}

	if patch.Value != nil {
		d.Value = *patch.Value
	}

	if patch.Currency != nil {
		d.Currency = *patch.Currency
	}

	if patch.ExpectedCloseDate != nil {
		t := *patch.ExpectedCloseDate
		d.ExpectedCloseDate = &t
	}
}

// dealData is the event payload snapshot sent along with won/lost/created
// events.
func dealData(d *models.Deal) map[string]any {
	data := map[string]any{
		"stage":          string(d.Stage),
		"value":          d.Value,
		"currency":       d.Currency,
		"probability":    d.Probability,
		"weighted_value": d.WeightedValue(),
	}

	if d.ActualCloseDate != nil {
		data["actual_close_date"] = d.ActualCloseDate.Format(time.RFC3339)
	}

	return data
}

package dispatcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dealrelay/dealrelay/pkg/eventbus"
	"github.com/dealrelay/dealrelay/pkg/events"
)

// Worker consumes deal events from the bus and dispatches them. It is the
// asynchronous half of the write path: deal saves publish and return, the
// worker fans out.
type Worker struct {
	id         string
	bus        eventbus.EventBus
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// NewWorker creates a dispatch worker.
func NewWorker(id string, bus eventbus.EventBus, d *Dispatcher, logger *slog.Logger) *Worker {
	return &Worker{
		id:         id,
		bus:        bus,
		dispatcher: d,
		logger:     logger.With("module", "dispatch_worker", "worker_id", id),
	}
}

// Start registers handlers for every dispatchable event type and begins
// consuming. It returns once the subscription is established.
func (w *Worker) Start(ctx context.Context) error {
	for _, eventType := range []events.EventType{
		events.DealCreated,
		events.DealStageChanged,
		events.DealWon,
		events.DealLost,
		events.CallCompleted,
	} {
		if err := w.bus.Handle(eventType, w.handleEvent); err != nil {
			return fmt.Errorf("failed to register handler for %s: %w", eventType, err)
		}
	}

	if err := w.bus.Subscribe(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to deal events: %w", err)
	}

	w.logger.Info("Dispatch worker started")

	return nil
}

func (w *Worker) handleEvent(ctx context.Context, event any) error {
	dealEvent, ok := event.(*events.DealEvent)
	if !ok {
		w.logger.Warn("Dropping event of unexpected shape", "event", fmt.Sprintf("%T", event))

		return nil
	}

	report, err := w.dispatcher.Dispatch(ctx, dealEvent.OwnerID, dealEvent.DealID, dealEvent.Type, dealEvent.Data)
	if err != nil {
		// The webhooks already fired; redelivering the message would break
		// at-most-once. Outcomes not persisted are "unknown", not retried.
		w.logger.Error("Failed to record dispatch outcomes",
			"event_type", dealEvent.Type,
			"deal_id", dealEvent.DealID,
			"error", err)

		return nil
	}

	if len(report.Results) > 0 {
		w.logger.Info("Dispatched event",
			"event_type", dealEvent.Type,
			"deal_id", dealEvent.DealID,
			"attempts", len(report.Results))
	}

	return nil
}

// Package dispatcher fans CRM trigger events out to the user's registered
// automation webhooks: one bounded, isolated, at-most-once HTTP attempt per
// matching workflow, every outcome recorded on the originating deal's audit
// log.
package dispatcher

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dealrelay/dealrelay/pkg/events"
	"github.com/dealrelay/dealrelay/pkg/models"
	"github.com/dealrelay/dealrelay/pkg/otelhelper"
	"github.com/dealrelay/dealrelay/pkg/persistence"
)

const (
	DefaultPerCallTimeout = 5 * time.Second
	DefaultOverallTimeout = 10 * time.Second
)

// Config carries the automation-engine connection settings.
type Config struct {
	// BaseURL is the automation engine address; webhook URLs are
	// BaseURL/{webhookID}.
	BaseURL string

	// Credential is the static service credential sent as a bearer token.
	Credential string

	// PerCallTimeout bounds each individual webhook call.
	PerCallTimeout time.Duration

	// OverallTimeout bounds one whole Dispatch invocation; attempts still
	// unresolved when it fires are recorded as timeouts.
	OverallTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.PerCallTimeout <= 0 {
		c.PerCallTimeout = DefaultPerCallTimeout
	}

	if c.OverallTimeout <= 0 {
		c.OverallTimeout = DefaultOverallTimeout
	}

	return c
}

// Result is the outcome of one webhook attempt.
type Result struct {
	WorkflowID string               `json:"workflow_id"`
	Success    bool                 `json:"success"`
	Record     models.TriggerRecord `json:"record"`
}

// Report lists, per matched workflow, what was attempted and how it ended.
type Report struct {
	DealID  string           `json:"deal_id"`
	Event   events.EventType `json:"event"`
	Results []Result         `json:"results"`
}

// Dispatcher resolves matching workflows and calls their webhooks.
type Dispatcher struct {
	config    Config
	workflows persistence.WorkflowRepository
	deals     persistence.DealRepository
	client    *http.Client
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// New creates a dispatcher. The HTTP client carries no timeout of its own;
// each call is bounded by its per-call context.
func New(config Config, store persistence.Persistence, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		config:    config.withDefaults(),
		workflows: store.WorkflowRepository(),
		deals:     store.DealRepository(),
		client:    &http.Client{},
		logger:    logger.With("module", "dispatcher"),
		tracer:    otel.Tracer("dealrelay/dispatcher"),
		now:       time.Now,
	}
}

// Dispatch resolves the owner's active workflows for the event, attempts
// every webhook concurrently, appends all outcomes to the deal's audit log
// in one batch, and returns the per-workflow report.
//
// Zero matches is an empty report, not an error. A failing webhook never
// blocks the others, and the only error Dispatch returns is a failure to
// persist the audit records.
func (d *Dispatcher) Dispatch(ctx context.Context, ownerID, dealID string, event events.EventType, payload map[string]any) (*Report, error) {
	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "dispatch",
		attribute.String(otelhelper.OwnerIDKey, ownerID),
		attribute.String(otelhelper.DealIDKey, dealID),
		attribute.String(otelhelper.EventTypeKey, string(event)),
	)
	defer span.End()

	report := &Report{DealID: dealID, Event: event}

	// One snapshot read; toggling a workflow mid-dispatch cannot make it
	// fire twice or half-fire.
	workflows, err := d.workflows.FindActive(ctx, ownerID, string(event))
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if len(workflows) == 0 {
		d.logger.Debug("No active workflows for event", "owner_id", ownerID, "event", event)

		return report, nil
	}

	d.logger.Info("Dispatching event to workflows",
		"owner_id", ownerID,
		"deal_id", dealID,
		"event", event,
		"workflow_count", len(workflows))

	results := d.attemptAll(ctx, workflows, event, payload)

	records := make([]models.TriggerRecord, 0, len(workflows))

	for _, workflow := range workflows {
		result := results[workflow.ID]
		report.Results = append(report.Results, result)
		records = append(records, result.Record)
	}

	// The audit log is the durable record of what was attempted. Its
	// failure is the one error that escapes; webhook failures already
	// live inside the records. Like the calls themselves, the append is
	// detached from caller cancellation: attempts that already fired
	// must still be recorded.
	if err := d.deals.AppendTriggerRecords(context.WithoutCancel(ctx), dealID, records); err != nil {
		otelhelper.SetError(span, err)

		return report, err
	}

	return report, nil
}

// attemptAll runs one goroutine per workflow and collects outcomes until
// all resolve or the overall deadline fires, at which point unresolved
// attempts are recorded as timeouts.
func (d *Dispatcher) attemptAll(ctx context.Context, workflows []*models.Workflow, event events.EventType, payload map[string]any) map[string]Result {
	resultCh := make(chan Result, len(workflows))

	for _, workflow := range workflows {
		go func(workflow *models.Workflow) {
			resultCh <- d.attempt(ctx, workflow, event, payload)
		}(workflow)
	}

	overall := time.NewTimer(d.config.OverallTimeout)
	defer overall.Stop()

	results := make(map[string]Result, len(workflows))

collect:
	for len(results) < len(workflows) {
		select {
		case result := <-resultCh:
			results[result.WorkflowID] = result
		case <-overall.C:
			break collect
		}
	}

	for _, workflow := range workflows {
		if _, ok := results[workflow.ID]; ok {
			continue
		}

		d.logger.Warn("Webhook attempt unresolved at overall deadline",
			"workflow_id", workflow.ID, "event", event)

		results[workflow.ID] = Result{
			WorkflowID: workflow.ID,
			Success:    false,
			Record: models.TriggerRecord{
				WorkflowID:  workflow.ID,
				Event:       string(event),
				TriggeredAt: d.now(),
				Error:       "timeout",
			},
		}
	}

	return results
}

// attempt performs a single webhook call and shapes its audit record. Each
// attempt carries its own timeout, detached from caller cancellation: a
// webhook already issued has external side effects that cannot be un-sent,
// so it is allowed to complete and still gets recorded.
func (d *Dispatcher) attempt(ctx context.Context, workflow *models.Workflow, event events.EventType, payload map[string]any) Result {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.config.PerCallTimeout)
	defer cancel()

	callCtx, span := otelhelper.StartSpan(callCtx, d.tracer, "dispatch.webhook",
		attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
		attribute.String(otelhelper.WebhookIDKey, workflow.WebhookID),
		attribute.String(otelhelper.EventTypeKey, string(event)),
	)
	defer span.End()

	triggeredAt := d.now()

	record := models.TriggerRecord{
		WorkflowID:  workflow.ID,
		Event:       string(event),
		TriggeredAt: triggeredAt,
	}

	response, err := d.callWebhook(callCtx, workflow.WebhookID, event, payload, triggeredAt)
	if err != nil {
		otelhelper.SetError(span, err)
		d.logger.Warn("Webhook attempt failed",
			"workflow_id", workflow.ID,
			"webhook_id", workflow.WebhookID,
			"event", event,
			"error", err)

		record.Error = err.Error()

		return Result{WorkflowID: workflow.ID, Success: false, Record: record}
	}

	d.logger.Debug("Webhook attempt succeeded", "workflow_id", workflow.ID, "event", event)

	record.Response = response

	return Result{WorkflowID: workflow.ID, Success: true, Record: record}
}

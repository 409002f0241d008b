package dispatcher_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealrelay/dealrelay/pkg/channels/gochannel"
	"github.com/dealrelay/dealrelay/pkg/dispatcher"
	"github.com/dealrelay/dealrelay/pkg/eventbus"
	"github.com/dealrelay/dealrelay/pkg/events"
	"github.com/dealrelay/dealrelay/pkg/log"
)

func TestWorker_DispatchesPublishedEvents(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32

	engine := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer engine.Close()

	store := setupStore(t)
	deal := seedDeal(t, store)
	seedWorkflow(t, store, "wf-1", "hook-1", true)

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	d := dispatcher.New(dispatcher.Config{BaseURL: engine.URL}, store, log.WithModule("test"))
	worker := dispatcher.NewWorker("worker-test", bus, d, log.WithModule("test"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, worker.Start(ctx))

	event := events.NewDealEvent(events.DealWon, "user-1", deal.ID, time.Now(), map[string]any{"value": 10000})
	require.NoError(t, bus.Publish(ctx, deal.ID, event))

	// The test channel blocks Publish until the handler acks, so the
	// dispatch has completed by now.
	assert.Equal(t, int32(1), hits.Load())

	stored, err := store.DealRepository().GetByID(ctx, deal.ID)
	require.NoError(t, err)
	require.Len(t, stored.TriggeredWorkflows, 1)
	assert.Equal(t, "wf-1", stored.TriggeredWorkflows[0].WorkflowID)
	assert.Equal(t, string(events.DealWon), stored.TriggeredWorkflows[0].Event)
	assert.True(t, stored.TriggeredWorkflows[0].Succeeded())
}

func TestWorker_AuditFailureDoesNotRedeliver(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32

	engine := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer engine.Close()

	store := setupStore(t)
	seedWorkflow(t, store, "wf-1", "hook-1", true)

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	d := dispatcher.New(dispatcher.Config{BaseURL: engine.URL}, store, log.WithModule("test"))
	worker := dispatcher.NewWorker("worker-test", bus, d, log.WithModule("test"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, worker.Start(ctx))

	// The deal does not exist, so the audit append fails after the webhook
	// already fired. The message must still be acked: exactly one call.
	event := events.NewDealEvent(events.DealWon, "user-1", "deal-missing", time.Now(), nil)
	require.NoError(t, bus.Publish(ctx, "deal-missing", event))

	assert.Equal(t, int32(1), hits.Load())
}

// Package eventbus carries deal trigger events from the write path to the
// dispatch worker, decoupling webhook fan-out from the request that
// produced the event.
package eventbus

import (
	"context"

	"github.com/dealrelay/dealrelay/pkg/events"
)

type Event interface {
	GetType() events.EventType
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}

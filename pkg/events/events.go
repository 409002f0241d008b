// Package events defines the trigger-event vocabulary produced by CRM
// entity lifecycle changes and consumed by the dispatcher.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Bus topic and message metadata keys.
const Topic = "dealrelay.deal.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Deal lifecycle events, emitted by the deal state machine.
	DealCreated      EventType = "deal_created"
	DealStageChanged EventType = "deal_stage_changed"
	DealWon          EventType = "deal_won"
	DealLost         EventType = "deal_lost"

	// Voice-call collaborator vocabulary. Not produced here, but
	// dispatchable: users may register workflows against it.
	CallCompleted EventType = "call_completed"
)

var knownTypes = map[EventType]struct{}{
	DealCreated:      {},
	DealStageChanged: {},
	DealWon:          {},
	DealLost:         {},
	CallCompleted:    {},
}

// Known reports whether t is part of the dispatchable event catalog.
func Known(t EventType) bool {
	_, ok := knownTypes[t]

	return ok
}

// DealEvent is one domain occurrence on a deal, carried over the event bus
// from the write path to the dispatch worker.
type DealEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	OwnerID   string         `json:"owner_id"`
	DealID    string         `json:"deal_id"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

func (e DealEvent) GetType() EventType {
	return e.Type
}

// NewDealEvent builds an event with a fresh ID and the given occurrence time.
func NewDealEvent(eventType EventType, ownerID, dealID string, at time.Time, data map[string]any) DealEvent {
	return DealEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		OwnerID:   ownerID,
		DealID:    dealID,
		Timestamp: at,
		Data:      data,
	}
}

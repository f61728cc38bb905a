// Package audit fans consent change events out to external consumers. The
// durable ledger row is written synchronously inside the workflow; this
// package only handles the best-effort broadcast that downstream systems
// (compliance tooling, analytics) subscribe to.
package audit

import (
	"context"
	"encoding/json"
	"time"
)

// Event is one consent state transition, in broadcast form.
type Event struct {
	EntityType string         `json:"entityType"`
	EntityID   string         `json:"entityId"`
	ActionType string         `json:"actionType"`
	UserID     string         `json:"userId,omitempty"`
	Changes    map[string]any `json:"changes,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// Key partitions events so all changes to one resource stay ordered.
func (e Event) Key() []byte {
	return []byte(e.EntityType + "/" + e.EntityID)
}

// Encode renders the event for the wire.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers events to an external sink.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close()
}

// NoopPublisher discards all events, for deployments without a broker.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, event Event) error { return nil }

func (NoopPublisher) Close() {}

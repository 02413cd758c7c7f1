// Package eventbus fans audit events out to live consumers. Publishing is
// best-effort everywhere: the event row in Postgres is the durable record,
// and no publisher error may fail the write path.
package eventbus

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"caravel/internal/store"
)

// Publisher receives a copy of every appended audit event.
type Publisher interface {
	Publish(ctx context.Context, ev store.Event)
}

// Fanout forwards each event to every sink.
type Fanout struct {
	sinks []Publisher
}

// NewFanout constructs a fanout over the given sinks. Nil sinks are skipped.
func NewFanout(sinks ...Publisher) *Fanout {
	kept := make([]Publisher, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Fanout{sinks: kept}
}

// Publish forwards the event to all sinks.
func (f *Fanout) Publish(ctx context.Context, ev store.Event) {
	for _, s := range f.sinks {
		s.Publish(ctx, ev)
	}
}

// HubPublisher broadcasts events over a websocket hub's broadcast channel.
type HubPublisher struct {
	broadcast chan<- []byte
}

// NewHubPublisher constructs a publisher feeding the given broadcast channel
// (typically realtime.Hub.Broadcast).
func NewHubPublisher(broadcast chan<- []byte) *HubPublisher {
	return &HubPublisher{broadcast: broadcast}
}

// Publish serializes the event and broadcasts it.
func (p *HubPublisher) Publish(ctx context.Context, ev store.Event) {
	payload := struct {
		Type    string          `json:"type"`
		OrderID string          `json:"order_id"`
		Event   string          `json:"event"`
		Payload json.RawMessage `json:"payload"`
		TS      time.Time       `json:"ts"`
	}{
		Type:    "fulfillment_event",
		OrderID: ev.OrderID,
		Event:   ev.Type,
		Payload: ev.Payload,
		TS:      ev.TS,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("eventbus: marshal broadcast payload: %v", err)
		return
	}

	select {
	case p.broadcast <- data:
	case <-ctx.Done():
	}
}

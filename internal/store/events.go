package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Audit event types.
const (
	EventOrderReceived         = "ORDER_RECEIVED"
	EventOrderReceiveFailed    = "ORDER_RECEIVE_FAILED"
	EventOrderValidated        = "ORDER_VALIDATED"
	EventOrderValidationFailed = "ORDER_VALIDATION_FAILED"
	EventPaymentCharged        = "PAYMENT_CHARGED"
	EventPaymentAlreadyCharged = "PAYMENT_ALREADY_CHARGED"
	EventPaymentFailed         = "PAYMENT_FAILED"
	EventPackagePrepared       = "PACKAGE_PREPARED"
	EventPackagePrepareFailed  = "PACKAGE_PREPARE_FAILED"
	EventCarrierDispatched     = "CARRIER_DISPATCHED"
	EventCarrierDispatchFailed = "CARRIER_DISPATCH_FAILED"
	EventOrderShipped          = "ORDER_SHIPPED"
	EventOrderShipFailed       = "ORDER_SHIP_FAILED"
)

// Event is one append-only audit record for an order.
type Event struct {
	ID      int64           `json:"id"`
	OrderID string          `json:"order_id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	TS      time.Time       `json:"ts"`
}

// EventPublisher receives a copy of every appended event. Delivery is
// best-effort; a publisher error never fails the append.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event)
}

// EventLog appends audit events and reads them back newest-first. Rows are
// never updated or deleted; the sequence for an order is both the audit
// trail and the degraded-mode status source.
type EventLog struct {
	db        *sql.DB
	publisher EventPublisher
}

// NewEventLog constructs an EventLog. The publisher may be nil.
func NewEventLog(db *sql.DB, publisher EventPublisher) *EventLog {
	return &EventLog{db: db, publisher: publisher}
}

// Append inserts one event row. The payload is JSON-serialized; nil means an
// empty object.
func (l *EventLog) Append(ctx context.Context, orderID, eventType string, payload any) error {
	if orderID == "" {
		orderID = "unknown"
	}
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	if _, err := l.db.ExecContext(ctx, `
		INSERT INTO events (order_id, type, payload_json)
		VALUES ($1, $2, $3)`,
		orderID, eventType, string(data),
	); err != nil {
		return err
	}

	if l.publisher != nil {
		l.publisher.Publish(ctx, Event{
			OrderID: orderID,
			Type:    eventType,
			Payload: data,
			TS:      time.Now().UTC(),
		})
	}
	return nil
}

// Recent returns up to n events for an order, newest first.
func (l *EventLog) Recent(ctx context.Context, orderID string, n int) ([]Event, error) {
	if n <= 0 {
		n = 50
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, order_id, type, payload_json, ts
		FROM events
		WHERE order_id = $1
		ORDER BY ts DESC
		LIMIT $2`,
		orderID, n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var payload string
		if err := rows.Scan(&ev.ID, &ev.OrderID, &ev.Type, &payload, &ev.TS); err != nil {
			return nil, err
		}
		ev.Payload = json.RawMessage(payload)
		events = append(events, ev)
	}
	return events, rows.Err()
}

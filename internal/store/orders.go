package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Well-known order states persisted in the orders table.
const (
	OrderStateReceived        = "RECEIVED"
	OrderStateReceiveError    = "RECEIVE_ERROR"
	OrderStateValidated       = "VALIDATED"
	OrderStateInvalid         = "INVALID"
	OrderStateValidationError = "VALIDATION_ERROR"
	OrderStatePaid            = "PAID"
	OrderStatePaymentFailed   = "PAYMENT_FAILED"
	OrderStateShipped         = "SHIPPED"
	OrderStateShipError       = "SHIP_ERROR"
)

// OrderStore persists order rows in Postgres.
type OrderStore struct {
	db *sql.DB
}

// NewOrderStore constructs an OrderStore.
func NewOrderStore(db *sql.DB) *OrderStore {
	return &OrderStore{db: db}
}

// Upsert inserts the order row or updates its state. Safe to call any number
// of times for the same id; the row is never deleted.
func (s *OrderStore) Upsert(ctx context.Context, orderID, state string) error {
	if orderID == "" {
		return fmt.Errorf("order id required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (id, state, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			updated_at = NOW()`,
		orderID, state,
	)
	return err
}

// State returns the current persisted state for an order.
func (s *OrderStore) State(ctx context.Context, orderID string) (string, error) {
	var state string
	row := s.db.QueryRowContext(ctx, `SELECT state FROM orders WHERE id = $1`, orderID)
	if err := row.Scan(&state); err != nil {
		return "", err
	}
	return state, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PaymentStatus is the lifecycle state of a payment row.
type PaymentStatus string

const (
	PaymentStatusInit    PaymentStatus = "INIT"
	PaymentStatusCharged PaymentStatus = "CHARGED"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

// ErrPaymentNotFound signals the payment row does not exist.
var ErrPaymentNotFound = errors.New("payment not found")

// PaymentRecord is a stored payment row. PaymentID doubles as the
// idempotency key for charge attempts.
type PaymentRecord struct {
	PaymentID string
	OrderID   string
	Status    PaymentStatus
	Amount    float64
}

// PaymentStore persists payment rows keyed by payment id.
type PaymentStore struct {
	db *sql.DB
}

// NewPaymentStore constructs a PaymentStore.
func NewPaymentStore(db *sql.DB) *PaymentStore {
	return &PaymentStore{db: db}
}

// Reserve inserts an INIT row for the payment id if absent. The insert
// uniqueness of payment_id is the sole fence against duplicate charges, so
// this must be a no-op when the row already exists.
func (s *PaymentStore) Reserve(ctx context.Context, paymentID, orderID string) error {
	if paymentID == "" || orderID == "" {
		return fmt.Errorf("payment id and order id required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (payment_id, order_id, status, amount, created_at)
		VALUES ($1, $2, $3, 0, NOW())
		ON CONFLICT (payment_id) DO NOTHING`,
		paymentID, orderID, PaymentStatusInit,
	)
	return err
}

// Get fetches the payment row for an idempotency check.
func (s *PaymentStore) Get(ctx context.Context, paymentID string) (PaymentRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT payment_id, order_id, status, amount
		FROM payments
		WHERE payment_id = $1`,
		paymentID,
	)

	var rec PaymentRecord
	var status string
	if err := row.Scan(&rec.PaymentID, &rec.OrderID, &status, &rec.Amount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PaymentRecord{}, ErrPaymentNotFound
		}
		return PaymentRecord{}, err
	}
	rec.Status = PaymentStatus(status)
	return rec, nil
}

// MarkCharged sets the row to CHARGED with the settled amount. Rows already
// CHARGED are left untouched so a settled amount can never be overwritten.
func (s *PaymentStore) MarkCharged(ctx context.Context, paymentID string, amount float64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE payments SET status = $2, amount = $3
		WHERE payment_id = $1 AND status <> $2`,
		paymentID, PaymentStatusCharged, amount,
	)
	return err
}

// MarkFailed sets the row to FAILED unless it already settled.
func (s *PaymentStore) MarkFailed(ctx context.Context, paymentID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE payments SET status = $2
		WHERE payment_id = $1 AND status <> $3`,
		paymentID, PaymentStatusFailed, PaymentStatusCharged,
	)
	return err
}

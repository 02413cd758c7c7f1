// Package ledger implements the idempotent payment ledger. The payment id
// doubles as the idempotency key: the insert-uniqueness of the ledger row is
// the only fence against duplicate or concurrent charge attempts.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"

	"caravel/internal/gateway"
	"caravel/internal/saga"
	"caravel/internal/store"
)

// Ledger coordinates the charge step across the payment rows, the order row,
// the audit log and the external gateway.
type Ledger struct {
	payments *store.PaymentStore
	orders   *store.OrderStore
	events   *store.EventLog
	gateway  gateway.PaymentGateway
	logf     func(format string, args ...any)
}

// New constructs a Ledger.
func New(payments *store.PaymentStore, orders *store.OrderStore, events *store.EventLog, gw gateway.PaymentGateway, logf func(format string, args ...any)) *Ledger {
	if logf == nil {
		logf = log.Printf
	}
	return &Ledger{
		payments: payments,
		orders:   orders,
		events:   events,
		gateway:  gw,
		logf:     logf,
	}
}

// Charge performs an at-most-once charge for (order, paymentID).
//
// Every outcome is a structured result; an error return means the ledger
// itself could not be read or written and the invocation should be retried
// by the substrate. Business failures, including a declined gateway call,
// never surface as errors.
func (l *Ledger) Charge(ctx context.Context, order saga.Order, paymentID string) (saga.ChargeResult, error) {
	orderID := order.OrderID

	if paymentID == "" || orderID == "" {
		reason := fmt.Sprintf("missing identifiers (order_id=%q, payment_id=%q)", orderID, paymentID)
		if err := l.events.Append(ctx, orderID, store.EventPaymentFailed, map[string]any{
			"payment_id": paymentID,
			"error":      reason,
		}); err != nil {
			l.logf("event write failed for rejected charge: %v", err)
		}
		return saga.ChargeResult{Status: saga.ChargeStatusFailed, PaymentID: paymentID, Error: reason}, nil
	}

	// Reserve the row first; a retried or concurrent invocation lands on
	// the same row and observes whatever the winner wrote.
	if err := l.payments.Reserve(ctx, paymentID, orderID); err != nil {
		return saga.ChargeResult{}, fmt.Errorf("reserve payment %s: %w", paymentID, err)
	}

	rec, err := l.payments.Get(ctx, paymentID)
	if err != nil && !errors.Is(err, store.ErrPaymentNotFound) {
		return saga.ChargeResult{}, fmt.Errorf("read payment %s: %w", paymentID, err)
	}
	if rec.Status == store.PaymentStatusCharged {
		// Duplicate attempt: return the settled amount, never touch the
		// gateway again.
		if err := l.events.Append(ctx, orderID, store.EventPaymentAlreadyCharged, map[string]any{
			"payment_id": paymentID,
			"amount":     rec.Amount,
		}); err != nil {
			l.logf("event write failed for PAYMENT_ALREADY_CHARGED: %v", err)
		}
		return saga.ChargeResult{Status: saga.ChargeStatusAlreadyCharged, PaymentID: paymentID, Amount: rec.Amount}, nil
	}

	receipt, chargeErr := l.gateway.Charge(ctx, order, paymentID)
	if chargeErr != nil {
		if err := l.payments.MarkFailed(ctx, paymentID); err != nil {
			l.logf("payment FAILED update failed for %s: %v", paymentID, err)
		}
		if err := l.events.Append(ctx, orderID, store.EventPaymentFailed, map[string]any{
			"payment_id": paymentID,
			"error":      chargeErr.Error(),
		}); err != nil {
			l.logf("event write failed for PAYMENT_FAILED: %v", err)
		}
		if err := l.orders.Upsert(ctx, orderID, store.OrderStatePaymentFailed); err != nil {
			l.logf("order update failed after declined charge: %v", err)
		}
		return saga.ChargeResult{Status: saga.ChargeStatusFailed, PaymentID: paymentID, Error: chargeErr.Error()}, nil
	}

	if err := l.payments.MarkCharged(ctx, paymentID, receipt.Amount); err != nil {
		return saga.ChargeResult{}, fmt.Errorf("mark payment %s charged: %w", paymentID, err)
	}
	if err := l.events.Append(ctx, orderID, store.EventPaymentCharged, map[string]any{
		"payment_id":     paymentID,
		"amount":         receipt.Amount,
		"transaction_id": receipt.TransactionID,
	}); err != nil {
		l.logf("event write failed for PAYMENT_CHARGED: %v", err)
	}
	if err := l.orders.Upsert(ctx, orderID, store.OrderStatePaid); err != nil {
		l.logf("order PAID update failed: %v", err)
	}

	return saga.ChargeResult{Status: saga.ChargeStatusCharged, PaymentID: paymentID, Amount: receipt.Amount}, nil
}

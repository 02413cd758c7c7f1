package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPaymentReserve(t *testing.T) {
	_, payments, _, mock := newMockDB(t)

	mock.ExpectExec("INSERT INTO payments").
		WithArgs("pay-1", "order-1", string(PaymentStatusInit)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := payments.Reserve(context.Background(), "pay-1", "order-1"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPaymentReserveRequiresIdentifiers(t *testing.T) {
	_, payments, _, _ := newMockDB(t)

	if err := payments.Reserve(context.Background(), "", "order-1"); err == nil {
		t.Fatal("expected error for empty payment id")
	}
	if err := payments.Reserve(context.Background(), "pay-1", ""); err == nil {
		t.Fatal("expected error for empty order id")
	}
}

func TestPaymentGet(t *testing.T) {
	_, payments, _, mock := newMockDB(t)

	rows := sqlmock.NewRows([]string{"payment_id", "order_id", "status", "amount"}).
		AddRow("pay-1", "order-1", string(PaymentStatusCharged), 42.50)
	mock.ExpectQuery("SELECT payment_id, order_id, status, amount").
		WithArgs("pay-1").
		WillReturnRows(rows)

	rec, err := payments.Get(context.Background(), "pay-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Status != PaymentStatusCharged || rec.Amount != 42.50 {
		t.Fatalf("record = %+v", rec)
	}
}

func TestPaymentGetMissing(t *testing.T) {
	_, payments, _, mock := newMockDB(t)

	mock.ExpectQuery("SELECT payment_id, order_id, status, amount").
		WithArgs("pay-absent").
		WillReturnRows(sqlmock.NewRows([]string{"payment_id", "order_id", "status", "amount"}))

	_, err := payments.Get(context.Background(), "pay-absent")
	if !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("err = %v, want ErrPaymentNotFound", err)
	}
}

func TestPaymentMarkChargedGuardsSettledRows(t *testing.T) {
	_, payments, _, mock := newMockDB(t)

	// The WHERE clause excludes rows already CHARGED; a second settlement
	// attempt updates nothing.
	mock.ExpectExec("UPDATE payments SET status").
		WithArgs("pay-1", string(PaymentStatusCharged), 42.50).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := payments.MarkCharged(context.Background(), "pay-1", 42.50); err != nil {
		t.Fatalf("mark charged: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPaymentMarkFailedSkipsCharged(t *testing.T) {
	_, payments, _, mock := newMockDB(t)

	mock.ExpectExec("UPDATE payments SET status").
		WithArgs("pay-1", string(PaymentStatusFailed), string(PaymentStatusCharged)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := payments.MarkFailed(context.Background(), "pay-1"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

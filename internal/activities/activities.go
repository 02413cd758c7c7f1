// Package activities implements the retryable units of work driven by the
// fulfillment workflows. Business faults from external collaborators are
// absorbed into structured results; only persistence failures surface as
// errors so the substrate retries them.
package activities

import (
	"context"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"caravel/internal/gateway"
	"caravel/internal/ledger"
	"caravel/internal/saga"
	"caravel/internal/statuscache"
	"caravel/internal/store"
)

// Activities bundles the dependencies shared by all activity functions.
type Activities struct {
	Source    gateway.OrderSource
	Warehouse gateway.Warehouse
	Carrier   gateway.Carrier

	Orders *store.OrderStore
	Events *store.EventLog
	Ledger *ledger.Ledger

	// Cache is optional; a nil cache disables the degraded-mode status
	// write path.
	Cache *statuscache.Cache
}

func (a *Activities) cacheStep(ctx context.Context, orderID, state string) {
	if a.Cache == nil {
		return
	}
	if err := a.Cache.SetStep(ctx, orderID, state); err != nil {
		activity.GetLogger(ctx).Warn("status cache write failed", "order_id", orderID, "error", err)
	}
}

// ReceiveOrder fetches the order payload and records the intake. A failed
// fetch is absorbed into a structured receive-failed order so the workflow
// decides what to do with it.
func (a *Activities) ReceiveOrder(ctx context.Context, orderID string) (saga.Order, error) {
	logger := activity.GetLogger(ctx)
	if orderID == "" {
		return saga.Order{}, temporal.NewApplicationError("order id required", saga.ValidationErrorType)
	}

	order, fetchErr := a.Source.Fetch(ctx, orderID)
	if fetchErr != nil {
		logger.Error("order intake failed", "order_id", orderID, "error", fetchErr)
		if err := a.Orders.Upsert(ctx, orderID, store.OrderStateReceiveError); err != nil {
			return saga.Order{}, err
		}
		if err := a.Events.Append(ctx, orderID, store.EventOrderReceiveFailed, map[string]any{"error": fetchErr.Error()}); err != nil {
			return saga.Order{}, err
		}
		a.cacheStep(ctx, orderID, store.OrderStateReceiveError)
		return saga.Order{OrderID: orderID, Status: "receive_failed", Error: fetchErr.Error()}, nil
	}

	if err := a.Orders.Upsert(ctx, orderID, store.OrderStateReceived); err != nil {
		return saga.Order{}, err
	}
	if err := a.Events.Append(ctx, orderID, store.EventOrderReceived, order); err != nil {
		return saga.Order{}, err
	}
	a.cacheStep(ctx, orderID, store.OrderStateReceived)
	return order, nil
}

// ValidateOrder checks the order payload and records the verdict. Returns
// false rather than an error for any business-invalid order.
func (a *Activities) ValidateOrder(ctx context.Context, order saga.Order) (bool, error) {
	orderID := order.OrderID

	// An order that faulted at intake is a validation error, not merely a
	// business-invalid order.
	if order.Error != "" {
		if err := a.Orders.Upsert(ctx, orderID, store.OrderStateValidationError); err != nil {
			return false, err
		}
		if err := a.Events.Append(ctx, orderID, store.EventOrderValidationFailed, map[string]any{"error": order.Error}); err != nil {
			return false, err
		}
		a.cacheStep(ctx, orderID, store.OrderStateValidationError)
		return false, nil
	}

	valid := orderID != "" && len(order.Items) > 0
	if valid {
		for _, item := range order.Items {
			if item.SKU == "" || item.Qty <= 0 {
				valid = false
				break
			}
		}
	}

	state := store.OrderStateValidated
	if !valid {
		state = store.OrderStateInvalid
	}
	if err := a.Orders.Upsert(ctx, orderID, state); err != nil {
		return false, err
	}
	if err := a.Events.Append(ctx, orderID, store.EventOrderValidated, map[string]any{"valid": valid}); err != nil {
		return false, err
	}
	a.cacheStep(ctx, orderID, state)
	return valid, nil
}

// ChargePayment runs the idempotent charge through the payment ledger.
func (a *Activities) ChargePayment(ctx context.Context, payload saga.ChargePayload) (saga.ChargeResult, error) {
	result, err := a.Ledger.Charge(ctx, payload.Order, payload.PaymentID)
	if err != nil {
		return saga.ChargeResult{}, err
	}
	switch result.Status {
	case saga.ChargeStatusCharged, saga.ChargeStatusAlreadyCharged:
		a.cacheStep(ctx, payload.Order.OrderID, store.OrderStatePaid)
	case saga.ChargeStatusFailed:
		a.cacheStep(ctx, payload.Order.OrderID, store.OrderStatePaymentFailed)
	}
	return result, nil
}

// PreparePackage asks the warehouse to pack the order.
func (a *Activities) PreparePackage(ctx context.Context, order saga.Order) (saga.PrepareResult, error) {
	logger := activity.GetLogger(ctx)

	ref, prepErr := a.Warehouse.Prepare(ctx, order)
	if prepErr != nil {
		logger.Error("package prepare failed", "order_id", order.OrderID, "error", prepErr)
		if err := a.Events.Append(ctx, order.OrderID, store.EventPackagePrepareFailed, map[string]any{"error": prepErr.Error()}); err != nil {
			return saga.PrepareResult{}, err
		}
		return saga.PrepareResult{Status: saga.PrepareStatusFailed, Error: prepErr.Error()}, nil
	}

	if err := a.Events.Append(ctx, order.OrderID, store.EventPackagePrepared, map[string]any{"package_ref": ref}); err != nil {
		return saga.PrepareResult{}, err
	}
	return saga.PrepareResult{Status: saga.PrepareStatusPrepared, PackageRef: ref}, nil
}

// DispatchCarrier hands the package to the carrier. Success is what moves
// the order to SHIPPED.
func (a *Activities) DispatchCarrier(ctx context.Context, order saga.Order) (saga.DispatchResult, error) {
	logger := activity.GetLogger(ctx)

	tracking, dispatchErr := a.Carrier.Dispatch(ctx, order)
	if dispatchErr != nil {
		logger.Error("carrier dispatch failed", "order_id", order.OrderID, "error", dispatchErr)
		if err := a.Events.Append(ctx, order.OrderID, store.EventCarrierDispatchFailed, map[string]any{"error": dispatchErr.Error()}); err != nil {
			return saga.DispatchResult{}, err
		}
		if err := a.Events.Append(ctx, order.OrderID, store.EventOrderShipFailed, map[string]any{"error": dispatchErr.Error()}); err != nil {
			return saga.DispatchResult{}, err
		}
		if err := a.Orders.Upsert(ctx, order.OrderID, store.OrderStateShipError); err != nil {
			return saga.DispatchResult{}, err
		}
		a.cacheStep(ctx, order.OrderID, store.OrderStateShipError)
		return saga.DispatchResult{Status: saga.DispatchStatusFailed, Error: dispatchErr.Error()}, nil
	}

	if err := a.Events.Append(ctx, order.OrderID, store.EventCarrierDispatched, map[string]any{"tracking_id": tracking}); err != nil {
		return saga.DispatchResult{}, err
	}
	if err := a.Orders.Upsert(ctx, order.OrderID, store.OrderStateShipped); err != nil {
		return saga.DispatchResult{}, err
	}
	if err := a.Events.Append(ctx, order.OrderID, store.EventOrderShipped, map[string]any{"tracking_id": tracking}); err != nil {
		return saga.DispatchResult{}, err
	}
	a.cacheStep(ctx, order.OrderID, store.OrderStateShipped)
	return saga.DispatchResult{Status: saga.DispatchStatusDispatched, TrackingID: tracking}, nil
}

// Package saga contains the order-fulfillment workflows: the top-level
// order saga and its detached shipping child. The control flow here runs
// under deterministic replay; everything with a side effect goes through an
// activity.
package saga

import (
	"fmt"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/workflow"
)

// orderState is the per-instance mutable record behind signals and the
// status query. It is owned exclusively by one workflow run and mutated only
// on the workflow goroutines.
type orderState struct {
	orderID   string
	step      string
	approved  bool
	cancelled bool
	lastError string
	address   *Address
}

// OrderWorkflow drives one order through receive, validate, manual approval,
// charge and shipping hand-off. It returns a structured result for every
// business outcome; an error return means the saga's own control logic
// faulted.
func OrderWorkflow(ctx workflow.Context, orderID, paymentID string) (OrderResult, error) {
	logger := workflow.GetLogger(ctx)
	state := &orderState{orderID: orderID, step: StepInitialized}

	if err := workflow.SetQueryHandler(ctx, QueryStatus, func() (StatusSnapshot, error) {
		return StatusSnapshot{OrderID: state.orderID, Step: state.step, LastError: state.lastError}, nil
	}); err != nil {
		state.step = StepFailed
		state.lastError = err.Error()
		return OrderResult{}, err
	}

	cancelCh := drainSignals(ctx, state)

	actx := withActivityOptions(ctx)

	state.step = StepReceivingOrder
	var order Order
	if err := workflow.ExecuteActivity(actx, ReceiveOrderActivity, orderID).Get(ctx, &order); err != nil {
		state.lastError = stepError("RECEIVE", err)
		logger.Error("receive step failed", "order_id", orderID, "error", state.lastError)
		// Continue with an empty default payload; validation decides the
		// order's fate after the approval gate.
		order = Order{OrderID: orderID, Items: []OrderItem{}}
	}

	state.step = StepValidatingOrder
	var valid bool
	if err := workflow.ExecuteActivity(actx, ValidateOrderActivity, order).Get(ctx, &valid); err != nil {
		state.lastError = stepError("VALIDATION", err)
		logger.Error("validate step failed", "order_id", orderID, "error", state.lastError)
		valid = false
	}

	state.step = StepWaitingForApproval
	if _, err := workflow.AwaitWithTimeout(ctx, ManualReviewWindow, func() bool {
		return state.approved || state.cancelled
	}); err != nil {
		state.step = StepFailed
		state.lastError = err.Error()
		return OrderResult{}, err
	}

	// An approval wakes the gate before a cancel delivered in the same task
	// has been applied by its drain goroutine. Cancellation wins the race,
	// so drain the channel here before deciding.
	var lateCancel CancelRequest
	for cancelCh.ReceiveAsync(&lateCancel) {
		state.cancelled = true
	}
	if state.cancelled {
		state.step = StepCancelled
		return OrderResult{Status: ResultCancelled, OrderID: orderID}, nil
	}
	if !state.approved {
		if state.lastError == "" {
			state.lastError = "manual review timed out"
		}
		state.step = StepAwaitingApprovalTimeout
		return OrderResult{Status: ResultManualReviewTimeout, OrderID: orderID, Error: state.lastError}, nil
	}
	if !valid {
		if state.lastError == "" {
			state.lastError = "order validation failed"
		}
		state.step = StepValidationFailed
		return OrderResult{Status: ResultValidationFailed, OrderID: orderID, Error: state.lastError}, nil
	}

	state.step = StepChargingPayment
	var charge ChargeResult
	if err := workflow.ExecuteActivity(actx, ChargePaymentActivity, ChargePayload{Order: order, PaymentID: paymentID}).Get(ctx, &charge); err != nil {
		state.lastError = stepError("CHARGE", err)
		logger.Error("charge step failed", "order_id", orderID, "error", state.lastError)
		state.step = StepChargeFailed
		return OrderResult{Status: ResultPaymentFailed, OrderID: orderID, Error: state.lastError}, nil
	}
	if charge.Status == ChargeStatusFailed {
		// Business decline: the ledger already holds the FAILED row.
		state.lastError = charge.Error
		state.step = StepChargeFailed
		return OrderResult{Status: ResultPaymentFailed, OrderID: orderID, Error: charge.Error}, nil
	}

	state.step = StepStartingShipping
	parentID := workflow.GetInfo(ctx).WorkflowExecution.ID
	childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
		WorkflowID:               parentID + "-shipping",
		TaskQueue:                ShippingTaskQueue,
		WorkflowExecutionTimeout: shippingWorkflowTimeout,
		ParentClosePolicy:        enumspb.PARENT_CLOSE_POLICY_ABANDON,
	})
	child := workflow.ExecuteChildWorkflow(childCtx, ShippingWorkflowName, ShippingInput{
		Order:            order,
		ParentWorkflowID: parentID,
	})
	// Wait only for the child to be started; its outcome is its own.
	if err := child.GetChildWorkflowExecution().Get(ctx, nil); err != nil {
		state.lastError = fmt.Sprintf("failed to start shipping workflow: %v", err)
		logger.Error("shipping start failed", "order_id", orderID, "error", state.lastError)
		state.step = StepShippingStartFailed
		return OrderResult{Status: ResultShippingStartFailed, OrderID: orderID, Error: state.lastError}, nil
	}

	state.step = StepCompleted
	state.lastError = ""
	return OrderResult{Status: ResultSuccess, OrderID: orderID, Payment: &charge}, nil
}

// drainSignals applies incoming signals to the state record. Handlers run on
// workflow goroutines, so flags flip only at suspension points and never
// interleave with in-flight step logic. The cancel channel is returned so
// the approval gate can drain it directly.
func drainSignals(ctx workflow.Context, state *orderState) workflow.ReceiveChannel {
	approveCh := workflow.GetSignalChannel(ctx, SignalApprove)
	workflow.Go(ctx, func(ctx workflow.Context) {
		for {
			if more := approveCh.Receive(ctx, nil); !more {
				return
			}
			state.approved = true
		}
	})

	cancelCh := workflow.GetSignalChannel(ctx, SignalCancelOrder)
	workflow.Go(ctx, func(ctx workflow.Context) {
		for {
			var req CancelRequest
			if more := cancelCh.Receive(ctx, &req); !more {
				return
			}
			state.cancelled = true
		}
	})

	addressCh := workflow.GetSignalChannel(ctx, SignalUpdateAddress)
	workflow.Go(ctx, func(ctx workflow.Context) {
		for {
			var addr Address
			if more := addressCh.Receive(ctx, &addr); !more {
				return
			}
			state.address = &addr
		}
	})

	dispatchCh := workflow.GetSignalChannel(ctx, SignalDispatchFailed)
	workflow.Go(ctx, func(ctx workflow.Context) {
		for {
			var failure DispatchFailure
			if more := dispatchCh.Receive(ctx, &failure); !more {
				return
			}
			// The server drops signals to closed runs, so this only ever
			// lands while the saga is still live; once it settles, the
			// child failure is visible in the event log only.
			state.lastError = "DispatchFailed: " + failure.Reason
		}
	})

	return cancelCh
}

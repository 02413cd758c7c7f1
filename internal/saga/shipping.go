package saga

import (
	"errors"

	"go.temporal.io/sdk/workflow"
)

// ShippingWorkflow runs the detached shipping leg: prepare the package, then
// dispatch the carrier. On failure it signals the parent best-effort — the
// parent's lifecycle is decoupled and may already be closed — and then fails
// with its own error.
func ShippingWorkflow(ctx workflow.Context, input ShippingInput) (string, error) {
	ctx = withActivityOptions(ctx)

	var prep PrepareResult
	if err := workflow.ExecuteActivity(ctx, PreparePackageActivity, input.Order).Get(ctx, &prep); err != nil {
		return "", shippingFailed(ctx, input, stepError("PREPARE", err))
	}
	if prep.Status != PrepareStatusPrepared {
		return "", shippingFailed(ctx, input, "package prepare failed: "+prep.Error)
	}

	var dispatch DispatchResult
	if err := workflow.ExecuteActivity(ctx, DispatchCarrierActivity, input.Order).Get(ctx, &dispatch); err != nil {
		return "", shippingFailed(ctx, input, stepError("DISPATCH", err))
	}
	if dispatch.Status != DispatchStatusDispatched {
		return "", shippingFailed(ctx, input, "carrier dispatch failed: "+dispatch.Error)
	}

	return ShippingResultDispatched, nil
}

// shippingFailed notifies the parent, if any, and builds the child's own
// terminal error. Signal delivery failure is logged and otherwise ignored.
func shippingFailed(ctx workflow.Context, input ShippingInput, reason string) error {
	logger := workflow.GetLogger(ctx)
	logger.Error("shipping failed", "order_id", input.Order.OrderID, "error", reason)

	if input.ParentWorkflowID != "" {
		err := workflow.SignalExternalWorkflow(
			ctx, input.ParentWorkflowID, "", SignalDispatchFailed, DispatchFailure{Reason: reason},
		).Get(ctx, nil)
		if err != nil {
			logger.Error("could not signal parent about dispatch failure",
				"parent_workflow_id", input.ParentWorkflowID, "error", err)
		}
	}

	return errors.New(reason)
}

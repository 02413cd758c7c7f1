package saga

import (
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// Two-tier activity timeouts: the schedule-to-close budget bounds the whole
// invocation including retries, start-to-close bounds one attempt.
const (
	activityScheduleToCloseTimeout = 12 * time.Second
	activityStartToCloseTimeout    = 4 * time.Second

	// ManualReviewWindow bounds the approval gate. With no signal the
	// workflow resolves to AWAITING_APPROVAL_TIMEOUT exactly at expiry.
	ManualReviewWindow = 10 * time.Second

	shippingWorkflowTimeout = 12 * time.Second
)

// ValidationErrorType tags domain-validation faults. Activities raise it via
// temporal.NewApplicationError; the retry policy below fails such
// invocations immediately instead of retrying.
const ValidationErrorType = "ValidationError"

func defaultRetryPolicy() *temporal.RetryPolicy {
	return &temporal.RetryPolicy{
		InitialInterval:        250 * time.Millisecond,
		MaximumInterval:        2 * time.Second,
		BackoffCoefficient:     2.0,
		MaximumAttempts:        5,
		NonRetryableErrorTypes: []string{ValidationErrorType},
	}
}

func withActivityOptions(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		ScheduleToCloseTimeout: activityScheduleToCloseTimeout,
		StartToCloseTimeout:    activityStartToCloseTimeout,
		RetryPolicy:            defaultRetryPolicy(),
	})
}

// stepError renders an exhausted-retry fault for the status query. Timeouts
// are classified by type, not by message inspection.
func stepError(step string, err error) string {
	var timeoutErr *temporal.TimeoutError
	if errors.As(err, &timeoutErr) {
		return fmt.Sprintf("activity timed out during %s", step)
	}
	return fmt.Sprintf("%s error: %v", step, err)
}

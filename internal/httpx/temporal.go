package httpx

import (
	"context"

	"go.temporal.io/sdk/client"

	"caravel/internal/saga"
)

// TemporalClient adapts a Temporal SDK client to the WorkflowClient surface.
type TemporalClient struct {
	c client.Client
}

// NewTemporalClient constructs the adapter.
func NewTemporalClient(c client.Client) *TemporalClient {
	return &TemporalClient{c: c}
}

// StartOrder starts OrderWorkflow with the order id as workflow id, so one
// order has at most one running saga.
func (t *TemporalClient) StartOrder(ctx context.Context, orderID, paymentID string) (string, string, error) {
	run, err := t.c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        orderID,
		TaskQueue: saga.OrderTaskQueue,
	}, saga.OrderWorkflowName, orderID, paymentID)
	if err != nil {
		return "", "", err
	}
	return run.GetID(), run.GetRunID(), nil
}

// Signal delivers a named signal to the order's workflow.
func (t *TemporalClient) Signal(ctx context.Context, orderID, name string, payload any) error {
	return t.c.SignalWorkflow(ctx, orderID, "", name, payload)
}

// QueryStatus fetches the live status snapshot.
func (t *TemporalClient) QueryStatus(ctx context.Context, orderID string) (saga.StatusSnapshot, error) {
	val, err := t.c.QueryWorkflow(ctx, orderID, "", saga.QueryStatus)
	if err != nil {
		return saga.StatusSnapshot{}, err
	}
	var snapshot saga.StatusSnapshot
	if err := val.Get(&snapshot); err != nil {
		return saga.StatusSnapshot{}, err
	}
	return snapshot, nil
}

package gateway

import (
	"context"
	"errors"
	"sync"

	"caravel/internal/saga"
)

// ErrGatewayUnavailable is the transient fault injected by the flaky
// decorators. The execution substrate is expected to retry it.
var ErrGatewayUnavailable = errors.New("gateway temporarily unavailable")

// FlakyGateway wraps a PaymentGateway and fails the first failures calls for
// each payment id before letting calls through. Deterministic, so retry
// behavior is reproducible.
type FlakyGateway struct {
	base     PaymentGateway
	failures int

	mu   sync.Mutex
	seen map[string]int
}

// NewFlakyGateway constructs the decorator. failures <= 0 disables it.
func NewFlakyGateway(base PaymentGateway, failures int) *FlakyGateway {
	return &FlakyGateway{base: base, failures: failures, seen: make(map[string]int)}
}

func (f *FlakyGateway) Charge(ctx context.Context, order saga.Order, paymentID string) (Receipt, error) {
	f.mu.Lock()
	f.seen[paymentID]++
	n := f.seen[paymentID]
	f.mu.Unlock()

	if n <= f.failures {
		return Receipt{}, ErrGatewayUnavailable
	}
	return f.base.Charge(ctx, order, paymentID)
}

// FlakyCarrier wraps a Carrier the same way, keyed by order id.
type FlakyCarrier struct {
	base     Carrier
	failures int

	mu   sync.Mutex
	seen map[string]int
}

// NewFlakyCarrier constructs the decorator. failures <= 0 disables it.
func NewFlakyCarrier(base Carrier, failures int) *FlakyCarrier {
	return &FlakyCarrier{base: base, failures: failures, seen: make(map[string]int)}
}

func (f *FlakyCarrier) Dispatch(ctx context.Context, order saga.Order) (string, error) {
	f.mu.Lock()
	f.seen[order.OrderID]++
	n := f.seen[order.OrderID]
	f.mu.Unlock()

	if n <= f.failures {
		return "", ErrGatewayUnavailable
	}
	return f.base.Dispatch(ctx, order)
}

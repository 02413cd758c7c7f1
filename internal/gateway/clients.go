package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"caravel/internal/saga"
)

// Receipt is the settlement returned by a payment gateway charge.
type Receipt struct {
	TransactionID string
	Amount        float64
}

// OrderSource fetches the raw order payload for an order id.
type OrderSource interface {
	Fetch(ctx context.Context, orderID string) (saga.Order, error)
}

// PaymentGateway charges a payment instrument for an order.
type PaymentGateway interface {
	Charge(ctx context.Context, order saga.Order, paymentID string) (Receipt, error)
}

// Warehouse prepares a package for dispatch and returns a package reference.
type Warehouse interface {
	Prepare(ctx context.Context, order saga.Order) (string, error)
}

// Carrier hands a package to the shipping carrier and returns a tracking id.
type Carrier interface {
	Dispatch(ctx context.Context, order saga.Order) (string, error)
}

// DefaultAmount is what the stub gateway settles per order when no explicit
// amount is configured.
const DefaultAmount = 42.50

// NewStaticOrderSource constructs an OrderSource returning a fixed one-item
// order per id.
func NewStaticOrderSource() *StaticOrderSource {
	return &StaticOrderSource{}
}

// StaticOrderSource is a stub order intake.
type StaticOrderSource struct{}

func (s *StaticOrderSource) Fetch(ctx context.Context, orderID string) (saga.Order, error) {
	if err := ctx.Err(); err != nil {
		return saga.Order{}, err
	}
	return saga.Order{
		OrderID: orderID,
		Items:   []saga.OrderItem{{SKU: "SKU-DEFAULT", Qty: 1}},
	}, nil
}

// NewInMemoryGateway constructs a gateway that settles every charge at the
// given amount (DefaultAmount when amount <= 0) and counts invocations per
// payment id.
func NewInMemoryGateway(amount float64) *InMemoryGateway {
	if amount <= 0 {
		amount = DefaultAmount
	}
	return &InMemoryGateway{
		amount:  amount,
		charges: make(map[string]int),
	}
}

// InMemoryGateway is a deterministic stub PaymentGateway.
type InMemoryGateway struct {
	mu      sync.Mutex
	amount  float64
	charges map[string]int
}

func (g *InMemoryGateway) Charge(ctx context.Context, order saga.Order, paymentID string) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.charges[paymentID]++
	return Receipt{
		TransactionID: uuid.NewString(),
		Amount:        g.amount,
	}, nil
}

// ChargeCount reports how many times the gateway was invoked for a payment
// id (for testing/inspection).
func (g *InMemoryGateway) ChargeCount(paymentID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.charges[paymentID]
}

// NewInMemoryShipper constructs a stub Warehouse/Carrier.
func NewInMemoryShipper() *InMemoryShipper {
	return &InMemoryShipper{dispatched: make(map[string]string)}
}

// InMemoryShipper is a stub warehouse and carrier in one.
type InMemoryShipper struct {
	mu         sync.Mutex
	dispatched map[string]string
}

func (s *InMemoryShipper) Prepare(ctx context.Context, order saga.Order) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(order.Items) == 0 {
		return "", errors.New("nothing to pack")
	}
	return fmt.Sprintf("pkg-%s", order.OrderID), nil
}

func (s *InMemoryShipper) Dispatch(ctx context.Context, order saga.Order) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	tracking := "trk-" + uuid.NewString()
	s.mu.Lock()
	s.dispatched[order.OrderID] = tracking
	s.mu.Unlock()
	return tracking, nil
}

// Tracking returns the tracking id recorded for an order, if any.
func (s *InMemoryShipper) Tracking(orderID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trk, ok := s.dispatched[orderID]
	return trk, ok
}

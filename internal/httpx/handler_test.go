package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"caravel/internal/saga"
	"caravel/internal/statuscache"
	"caravel/internal/store"
)

type fakeWorkflowClient struct {
	startErr error
	queryErr error
	snapshot saga.StatusSnapshot

	startedOrder   string
	startedPayment string
	signalName     string
	signalPayload  any
	signalErr      error
}

func (f *fakeWorkflowClient) StartOrder(ctx context.Context, orderID, paymentID string) (string, string, error) {
	if f.startErr != nil {
		return "", "", f.startErr
	}
	f.startedOrder = orderID
	f.startedPayment = paymentID
	return orderID, "run-1", nil
}

func (f *fakeWorkflowClient) Signal(ctx context.Context, orderID, name string, payload any) error {
	if f.signalErr != nil {
		return f.signalErr
	}
	f.signalName = name
	f.signalPayload = payload
	return nil
}

func (f *fakeWorkflowClient) QueryStatus(ctx context.Context, orderID string) (saga.StatusSnapshot, error) {
	if f.queryErr != nil {
		return saga.StatusSnapshot{}, f.queryErr
	}
	return f.snapshot, nil
}

func newTestServer(t *testing.T, h *Handler) *httptest.Server {
	t.Helper()
	if h.Logf == nil {
		h.Logf = t.Logf
	}
	router := NewRouter()
	h.Register(router)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func TestStartOrder(t *testing.T) {
	client := &fakeWorkflowClient{}
	srv := newTestServer(t, &Handler{Client: client})

	resp, err := http.Post(srv.URL+"/orders/order-1/start", "application/json",
		strings.NewReader(`{"payment_id":"pay-1"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		WorkflowID string `json:"workflow_id"`
		RunID      string `json:"run_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.WorkflowID != "order-1" || body.RunID != "run-1" {
		t.Fatalf("body = %+v", body)
	}
	if client.startedOrder != "order-1" || client.startedPayment != "pay-1" {
		t.Fatalf("client saw %q/%q", client.startedOrder, client.startedPayment)
	}
}

func TestStartOrderRequiresPaymentID(t *testing.T) {
	srv := newTestServer(t, &Handler{Client: &fakeWorkflowClient{}})

	resp, err := http.Post(srv.URL+"/orders/order-1/start", "application/json",
		strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestApproveSignal(t *testing.T) {
	client := &fakeWorkflowClient{}
	srv := newTestServer(t, &Handler{Client: client})

	resp, err := http.Post(srv.URL+"/orders/order-1/signals/approve", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if client.signalName != saga.SignalApprove {
		t.Fatalf("signal = %q, want %q", client.signalName, saga.SignalApprove)
	}
}

func TestCancelSignalCarriesReason(t *testing.T) {
	client := &fakeWorkflowClient{}
	srv := newTestServer(t, &Handler{Client: client})

	resp, err := http.Post(srv.URL+"/orders/order-1/signals/cancel", "application/json",
		strings.NewReader(`{"reason":"customer changed mind"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	req, ok := client.signalPayload.(saga.CancelRequest)
	if !ok || req.Reason != "customer changed mind" {
		t.Fatalf("payload = %#v", client.signalPayload)
	}
}

func TestUpdateAddressRejectsBadJSON(t *testing.T) {
	srv := newTestServer(t, &Handler{Client: &fakeWorkflowClient{}})

	resp, err := http.Post(srv.URL+"/orders/order-1/signals/update-address", "application/json",
		strings.NewReader(`{not json`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestStatusServesLiveQuery(t *testing.T) {
	client := &fakeWorkflowClient{snapshot: saga.StatusSnapshot{
		OrderID: "order-1",
		Step:    saga.StepWaitingForApproval,
	}}
	srv := newTestServer(t, &Handler{Client: client})

	resp, err := http.Get(srv.URL + "/orders/order-1/status")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var snapshot saga.StatusSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snapshot.Step != saga.StepWaitingForApproval {
		t.Fatalf("step = %q", snapshot.Step)
	}
}

func TestStatusDegradedFallback(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	cache := statuscache.New(rdb, time.Minute)
	if err := cache.SetStep(context.Background(), "order-1", store.OrderStatePaid); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	mock.ExpectQuery("SELECT id, order_id, type, payload_json, ts").
		WithArgs("order-1", 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "type", "payload_json", "ts"}).
			AddRow(int64(1), "order-1", store.EventPaymentCharged, `{"amount":42.5}`, time.Now()))

	client := &fakeWorkflowClient{queryErr: errors.New("workflow not found")}
	srv := newTestServer(t, &Handler{
		Client: client,
		Cache:  cache,
		Events: store.NewEventLog(db, nil),
	})

	resp, err := http.Get(srv.URL + "/orders/order-1/status")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		OrderID            string        `json:"order_id"`
		Step               string        `json:"step"`
		WorkflowQueryError string        `json:"workflow_query_error"`
		RecentEvents       []store.Event `json:"recent_events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Step != store.OrderStatePaid {
		t.Fatalf("step = %q, want the cached state", body.Step)
	}
	if body.WorkflowQueryError == "" {
		t.Fatal("degraded response must carry the query error")
	}
	if len(body.RecentEvents) != 1 || body.RecentEvents[0].Type != store.EventPaymentCharged {
		t.Fatalf("recent events = %+v", body.RecentEvents)
	}
}

func TestStatusUnavailableWhenEventLogDown(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	mock.ExpectQuery("SELECT id, order_id, type, payload_json, ts").
		WillReturnError(errors.New("connection refused"))

	client := &fakeWorkflowClient{queryErr: errors.New("workflow not found")}
	srv := newTestServer(t, &Handler{
		Client: client,
		Events: store.NewEventLog(db, nil),
	})

	resp, err := http.Get(srv.URL + "/orders/order-1/status")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

// Package httpx exposes the start/signal/query boundary over HTTP. The
// handlers are thin: they translate requests into workflow client calls and
// fall back to the status cache and the persisted event log when the live
// saga cannot be queried.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"caravel/internal/saga"
	"caravel/internal/statuscache"
	"caravel/internal/store"
)

const (
	requestTimeout   = 10 * time.Second
	recentEventLimit = 50
)

// WorkflowClient is the slice of the workflow client the handlers need.
type WorkflowClient interface {
	StartOrder(ctx context.Context, orderID, paymentID string) (workflowID, runID string, err error)
	Signal(ctx context.Context, orderID, name string, payload any) error
	QueryStatus(ctx context.Context, orderID string) (saga.StatusSnapshot, error)
}

// Handler serves the fulfillment HTTP API.
type Handler struct {
	Client WorkflowClient
	Cache  *statuscache.Cache
	Events *store.EventLog
	Logf   func(format string, args ...any)
}

// NewRouter builds the chi router with the standard middleware stack.
func NewRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// Register mounts the order routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/orders/{id}/start", h.startOrder)
	r.Post("/orders/{id}/signals/approve", h.approve)
	r.Post("/orders/{id}/signals/cancel", h.cancel)
	r.Post("/orders/{id}/signals/update-address", h.updateAddress)
	r.Get("/orders/{id}/status", h.status)
}

func (h *Handler) logf(format string, args ...any) {
	if h.Logf != nil {
		h.Logf(format, args...)
		return
	}
	log.Printf(format, args...)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type startOrderReq struct {
	PaymentID string `json:"payment_id"`
}

type startOrderResp struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
}

func (h *Handler) startOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	var req startOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.PaymentID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "payment_id required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	workflowID, runID, err := h.Client.StartOrder(ctx, orderID, req.PaymentID)
	if err != nil {
		h.logf("start workflow %s: %v", orderID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, startOrderResp{WorkflowID: workflowID, RunID: runID})
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.signal(w, r, saga.SignalApprove, nil)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	var req saga.CancelRequest
	// An empty body is an unexplained cancellation.
	_ = json.NewDecoder(r.Body).Decode(&req)
	h.signal(w, r, saga.SignalCancelOrder, req)
}

func (h *Handler) updateAddress(w http.ResponseWriter, r *http.Request) {
	var addr saga.Address
	if err := json.NewDecoder(r.Body).Decode(&addr); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	h.signal(w, r, saga.SignalUpdateAddress, addr)
}

func (h *Handler) signal(w http.ResponseWriter, r *http.Request, name string, payload any) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := h.Client.Signal(ctx, orderID, name, payload); err != nil {
		h.logf("signal %s -> %s: %v", name, orderID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "signalled", "signal": name})
}

type degradedStatusResp struct {
	OrderID            string        `json:"order_id"`
	Step               string        `json:"step,omitempty"`
	WorkflowQueryError string        `json:"workflow_query_error"`
	RecentEvents       []store.Event `json:"recent_events"`
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	snapshot, err := h.Client.QueryStatus(ctx, orderID)
	if err == nil {
		writeJSON(w, http.StatusOK, snapshot)
		return
	}
	h.logf("workflow query failed for %s, serving degraded status: %v", orderID, err)

	resp := degradedStatusResp{OrderID: orderID, WorkflowQueryError: err.Error()}

	if entry, cacheErr := h.Cache.Step(ctx, orderID); cacheErr == nil {
		resp.Step = entry.Step
	} else if !errors.Is(cacheErr, statuscache.ErrMiss) {
		h.logf("status cache read failed for %s: %v", orderID, cacheErr)
	}

	events, eventsErr := h.Events.Recent(ctx, orderID, recentEventLimit)
	if eventsErr != nil {
		h.logf("event log read failed for %s: %v", orderID, eventsErr)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "status unavailable"})
		return
	}
	resp.RecentEvents = events
	writeJSON(w, http.StatusOK, resp)
}

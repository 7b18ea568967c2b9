package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/jatango/liveshop/internal/checkout"
	"github.com/jatango/liveshop/internal/orders"
	"github.com/jatango/liveshop/internal/redisx"
)

type CheckoutHandler struct {
	Orchestrator *checkout.Orchestrator
	Orders       *orders.Repo
	Redis        *redis.Client
}

func (h *CheckoutHandler) Register(r *chi.Mux) {
	r.Post("/checkout/intent", h.createIntent)
	r.Post("/checkout/confirm", h.confirm)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getOrderStatus)
}

func (h *CheckoutHandler) createIntent(w http.ResponseWriter, r *http.Request) {
	var req checkout.IntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	res, err := h.Orchestrator.CreateIntent(ctx, req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *CheckoutHandler) confirm(w http.ResponseWriter, r *http.Request) {
	var req checkout.ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	res, err := h.Orchestrator.Confirm(ctx, req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *CheckoutHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Orders.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// getOrderStatus is the hot poll path during a show, served from the status
// cache with a DB read-through on miss.
func (h *CheckoutHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	o, err := h.Orders.Get(ctx, orderID)
	if err != nil {
		writeErr(w, err)
		return
	}
	body := fmt.Sprintf(`{"status":%q}`, o.Status)
	if h.Redis != nil {
		_ = h.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
	}
	writeJSON(w, http.StatusOK, json.RawMessage(body))
}

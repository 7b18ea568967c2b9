package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/jatango/liveshop/internal/kafka"
	"github.com/jatango/liveshop/internal/live"
	"github.com/jatango/liveshop/internal/reservation"
)

type HoldReq struct {
	BuyerID   string `json:"buyer_id"`
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	ShowID    string `json:"show_id"`
	Qty       int    `json:"qty"`
}

type ReservationHandler struct {
	Store    *reservation.Store
	Ledger   *reservation.Ledger
	Producer *kafka.Producer
	Service  string
	TTL      time.Duration
}

func (h *ReservationHandler) Register(r *chi.Mux) {
	r.Post("/reservations", h.hold)
	r.Delete("/reservations/{id}", h.release)
	r.Post("/reservations/{id}/refresh", h.refresh)
	r.Get("/buyers/{id}/reservations", h.listForBuyer)
	r.Get("/products/{id}/availability", h.availability)
}

func (h *ReservationHandler) hold(w http.ResponseWriter, r *http.Request) {
	var req HoldReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.BuyerID == "" || req.ProductID == "" || req.ShowID == "" || req.Qty <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Store.Hold(ctx, req.BuyerID, req.ProductID, req.VariantID, req.ShowID, req.Qty, h.TTL)
	if err != nil {
		writeErr(w, err)
		return
	}

	h.notifyCart(ctx, res)
	writeJSON(w, http.StatusCreated, res)
}

// notifyCart tells the buyer's open channels their cart changed, with the
// availability remaining for everyone else.
func (h *ReservationHandler) notifyCart(ctx context.Context, res reservation.Reservation) {
	if h.Producer == nil {
		return
	}
	available, err := h.Ledger.Available(ctx, res.ProductID, res.VariantID)
	if err != nil {
		available = 0
	}
	ev := live.Envelope{
		EventID:       uuid.NewString(),
		EventType:     live.EventCartUpdated,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		CorrelationID: res.ID,
		UserID:        res.BuyerID,
		Payload: kafka.MustMarshal(live.CartUpdatedPayload{
			ProductID: res.ProductID,
			VariantID: res.VariantID,
			Qty:       res.Qty,
			Available: available,
		}),
	}
	h.Producer.Publish(live.PartitionKey(res.BuyerID), kafka.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(live.EventCartUpdated)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (h *ReservationHandler) release(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// Idempotent: releasing a missing or expired hold is fine.
	if err := h.Store.Release(ctx, chi.URLParam(r, "id")); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ReservationHandler) refresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Store.Refresh(ctx, chi.URLParam(r, "id"), h.TTL)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *ReservationHandler) listForBuyer(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Store.ListForBuyer(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *ReservationHandler) availability(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	n, err := h.Ledger.Available(ctx, chi.URLParam(r, "id"), r.URL.Query().Get("variant_id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"available": n})
}

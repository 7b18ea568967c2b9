package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jatango/liveshop/internal/catalog"
	"github.com/jatango/liveshop/internal/checkout"
	"github.com/jatango/liveshop/internal/orders"
	"github.com/jatango/liveshop/internal/reservation"
	"github.com/jatango/liveshop/internal/shipping"
)

func NewRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	// No blanket timeout middleware: handlers bound their own contexts, and
	// the event stream must be allowed to outlive any fixed deadline.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps engine errors onto status classes. Payload is always
// {"error": "..."}; callers match on the message or the status class.
func writeErr(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, checkout.ErrMissingFields),
		errors.Is(err, checkout.ErrBelowMinimum),
		errors.Is(err, reservation.ErrInvalidQty),
		errors.Is(err, shipping.ErrUnknownPreset):
		code = http.StatusBadRequest
	case errors.Is(err, reservation.ErrOutOfStock):
		code = http.StatusConflict
	case errors.Is(err, checkout.ErrPaymentNotSucceeded),
		errors.Is(err, shipping.ErrAlreadyLabeled),
		errors.Is(err, shipping.ErrItemLocked),
		errors.Is(err, shipping.ErrNoItems),
		errors.Is(err, shipping.ErrNoPackage),
		errors.Is(err, shipping.ErrMissingAddress),
		errors.Is(err, orders.ErrBadTransition):
		code = http.StatusConflict
	case errors.Is(err, reservation.ErrNotFound),
		errors.Is(err, reservation.ErrNotFoundProduct),
		errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, orders.ErrNotFound),
		errors.Is(err, shipping.ErrParcelNotFound),
		errors.Is(err, shipping.ErrPackageNotFound):
		code = http.StatusNotFound
	case errors.Is(err, checkout.ErrProvider),
		errors.Is(err, shipping.ErrCarrier):
		code = http.StatusBadGateway
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

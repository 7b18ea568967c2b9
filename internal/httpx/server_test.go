package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jatango/liveshop/internal/checkout"
	"github.com/jatango/liveshop/internal/orders"
	"github.com/jatango/liveshop/internal/reservation"
	"github.com/jatango/liveshop/internal/shipping"
)

func TestWriteErr_StatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{checkout.ErrMissingFields, http.StatusBadRequest},
		{checkout.ErrBelowMinimum, http.StatusBadRequest},
		{reservation.ErrInvalidQty, http.StatusBadRequest},
		{shipping.ErrUnknownPreset, http.StatusBadRequest},
		{reservation.ErrOutOfStock, http.StatusConflict},
		{checkout.ErrPaymentNotSucceeded, http.StatusConflict},
		{shipping.ErrAlreadyLabeled, http.StatusConflict},
		{shipping.ErrItemLocked, http.StatusConflict},
		{orders.ErrBadTransition, http.StatusConflict},
		{reservation.ErrNotFound, http.StatusNotFound},
		{reservation.ErrNotFoundProduct, http.StatusNotFound},
		{orders.ErrNotFound, http.StatusNotFound},
		{shipping.ErrParcelNotFound, http.StatusNotFound},
		{checkout.ErrProvider, http.StatusBadGateway},
		{shipping.ErrCarrier, http.StatusBadGateway},
		{errors.New("anything else"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		writeErr(rec, c.err)
		assert.Equal(t, c.code, rec.Code, "error: %v", c.err)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, c.err.Error(), body["error"])
	}
}

func TestWriteErr_WrappedErrorsStillMap(t *testing.T) {
	rec := httptest.NewRecorder()
	writeErr(rec, errors.Join(errors.New("requested 3, available 1"), reservation.ErrOutOfStock))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHealthz(t *testing.T) {
	router := NewRouter()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

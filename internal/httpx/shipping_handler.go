package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jatango/liveshop/internal/orders"
	"github.com/jatango/liveshop/internal/shipping"
)

type ShippingHandler struct {
	Planner *shipping.Planner
	Parcels *shipping.Repo
	Orders  *orders.Repo
}

func (h *ShippingHandler) Register(r *chi.Mux) {
	r.Post("/orders/{id}/parcels", h.createParcel)
	r.Get("/orders/{id}/parcels", h.listParcels)
	r.Post("/orders/{id}/status", h.updateOrderStatus)

	r.Post("/parcels/{id}/items", h.assignItems)
	r.Post("/parcels/{id}/package", h.selectPackage)
	r.Post("/parcels/{id}/rates", h.fetchRates)
	r.Post("/parcels/{id}/label", h.purchaseLabel)
	r.Get("/parcels/{id}/tracking", h.track)

	r.Get("/sellers/{id}/packages", h.listSavedPackages)
	r.Post("/sellers/{id}/packages", h.createSavedPackage)
	r.Delete("/sellers/{id}/packages/{pkg}", h.deleteSavedPackage)
}

func (h *ShippingHandler) createParcel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemIDs []string `json:"item_ids"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.Planner.CreateParcel(ctx, chi.URLParam(r, "id"), req.ItemIDs)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *ShippingHandler) listParcels(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	parcels, err := h.Parcels.ListByOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, parcels)
}

func (h *ShippingHandler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	to, err := orders.ParseStatus(req.Status)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	orderID := chi.URLParam(r, "id")
	if err := h.Orders.UpdateStatus(ctx, orderID, to); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": orderID, "status": string(to)})
}

func (h *ShippingHandler) assignItems(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemIDs []string `json:"item_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if len(req.ItemIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "item_ids required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	parcelID := chi.URLParam(r, "id")
	if err := h.Planner.AssignItems(ctx, parcelID, req.ItemIDs); err != nil {
		writeErr(w, err)
		return
	}
	p, err := h.Parcels.GetParcel(ctx, parcelID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ShippingHandler) selectPackage(w http.ResponseWriter, r *http.Request) {
	var sel shipping.PackageSelection
	if err := json.NewDecoder(r.Body).Decode(&sel); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.Planner.SelectPackage(ctx, chi.URLParam(r, "id"), sel)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ShippingHandler) fetchRates(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SellerID string `json:"seller_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	rates, err := h.Planner.FetchRates(ctx, req.SellerID, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rates)
}

func (h *ShippingHandler) purchaseLabel(w http.ResponseWriter, r *http.Request) {
	var rate shipping.Rate
	if err := json.NewDecoder(r.Body).Decode(&rate); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if rate.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "rate id required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()

	p, err := h.Planner.PurchaseLabel(ctx, chi.URLParam(r, "id"), rate)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ShippingHandler) track(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	status, history, err := h.Planner.Track(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": status, "history": history})
}

func (h *ShippingHandler) listSavedPackages(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	out, err := h.Parcels.ListSavedPackages(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ShippingHandler) createSavedPackage(w http.ResponseWriter, r *http.Request) {
	var sp shipping.SavedPackage
	if err := json.NewDecoder(r.Body).Decode(&sp); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	sp.SellerID = chi.URLParam(r, "id")
	if sp.Name == "" || sp.Length <= 0 || sp.Width <= 0 || sp.Height <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	created, err := h.Parcels.CreateSavedPackage(ctx, sp)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *ShippingHandler) deleteSavedPackage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Parcels.DeleteSavedPackage(ctx, chi.URLParam(r, "id"), chi.URLParam(r, "pkg")); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jatango/liveshop/internal/catalog"
	"github.com/jatango/liveshop/internal/reservation"
)

type CatalogHandler struct {
	Catalog *catalog.Repo
	Ledger  *reservation.Ledger
}

func (h *CatalogHandler) Register(r *chi.Mux) {
	r.Get("/products", h.list)
	r.Post("/products", h.create)
}

type productView struct {
	catalog.Product
	Available int `json:"available"`
}

func (h *CatalogHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	products, err := h.Catalog.ListProducts(ctx)
	if err != nil {
		writeErr(w, err)
		return
	}

	out := make([]productView, 0, len(products))
	for _, p := range products {
		avail, err := h.Ledger.Available(ctx, p.ID, "")
		if err != nil {
			writeErr(w, err)
			return
		}
		out = append(out, productView{Product: p, Available: avail})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *CatalogHandler) create(w http.ResponseWriter, r *http.Request) {
	var p catalog.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if p.SellerID == "" || p.Name == "" || p.PriceCents <= 0 || p.Stock < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	created, err := h.Catalog.CreateProduct(ctx, p)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

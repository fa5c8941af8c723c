package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/go-batch-orders/internal/inventory"
	"github.com/go-chi/chi/v5"
)

type InventoryHandler struct {
	Service *inventory.Service
}

func (h *InventoryHandler) Register(r *chi.Mux) {
	// /products harus terdaftar sebelum /{productCode}
	r.Get("/inventory/products", h.listProducts)
	r.Get("/inventory/{productCode}", h.getBatches)
	r.Post("/inventory/update", h.update)
}

func (h *InventoryHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Service.Products(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *InventoryHandler) getBatches(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "productCode")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	bs, err := h.Service.Batches(ctx, code)
	if err != nil {
		writeError(w, err)
		return
	}
	if bs == nil {
		bs = []inventory.Batch{}
	}
	writeJSON(w, http.StatusOK, bs)
}

func (h *InventoryHandler) update(w http.ResponseWriter, r *http.Request) {
	var req inventory.DeductRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rc, err := h.Service.Deduct(ctx, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rc)
}

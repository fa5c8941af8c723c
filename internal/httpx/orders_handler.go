package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/go-batch-orders/internal/orders"
	"github.com/ariefcatur/go-batch-orders/internal/redisx"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type OrdersHandler struct {
	Saga  *orders.Coordinator
	Cache *redisx.OrderCache // optional
	Log   *zap.Logger
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/order", h.createOrder)
	r.Get("/order/{orderNumber}", h.getOrder)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req orders.PlaceOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	// deduksi remote butuh waktu lebih lama dari read biasa
	ctx, cancel := context.WithTimeout(r.Context(), 12*time.Second)
	defer cancel()

	rc, err := h.Saga.PlaceOrder(ctx, req)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cache(ctx, &rc.Order)
	writeJSON(w, http.StatusCreated, rc)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "orderNumber")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) coba cache
	if h.Cache != nil {
		o, err := h.Cache.Get(ctx, number)
		if err != nil {
			h.logger().Warn("order cache get", zap.String("order_number", number), zap.Error(err))
		} else if o != nil {
			writeJSON(w, http.StatusOK, o)
			return
		}
	}

	// 2) fallback DB
	o, err := h.Saga.GetOrder(ctx, number)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cache(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) cache(ctx context.Context, o *orders.Order) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Put(ctx, o); err != nil {
		h.logger().Warn("order cache put", zap.String("order_number", o.OrderNumber), zap.Error(err))
	}
}

func (h *OrdersHandler) logger() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/TworzymyMarzenia3d/front-crm/internal/fulfillment"
	"github.com/TworzymyMarzenia3d/front-crm/internal/inventory"
	"github.com/TworzymyMarzenia3d/front-crm/internal/orders"
	"github.com/TworzymyMarzenia3d/front-crm/internal/redisx"
	"github.com/go-chi/chi/v5"
)

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var in fulfillment.CreateOrderInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()

	// Fast path: a repeated Idempotency-Key returns the order it created.
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key != "" && h.Idempotency != nil {
		if id, ok, err := h.Idempotency.Lookup(ctx, key); err == nil && ok {
			if o, err := h.Orders.GetOrder(ctx, id); err == nil {
				w.Header().Set("Idempotent-Replayed", "true")
				writeJSON(w, http.StatusOK, o)
				return
			}
		} else if err != nil {
			logger(h.Log).Warn("idempotency lookup failed", "err", err)
		}
	}

	o, err := h.Orders.CreateOrder(ctx, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if key != "" && h.Idempotency != nil {
		if err := h.Idempotency.Remember(ctx, key, o.ID); err != nil {
			logger(h.Log).Warn("idempotency store failed", "order_id", o.ID, "err", err)
		}
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusCreated, o)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	list, err := h.Orders.ListOrders(ctx, orders.Status(r.URL.Query().Get("status")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	o, err := h.Orders.GetOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	var in fulfillment.CreateOrderInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()

	o, err := h.Orders.UpdateOrder(ctx, chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := h.ctx(r)
	defer cancel()

	if err := h.Orders.DeleteOrder(ctx, id); err != nil {
		h.fail(w, r, err)
		return
	}
	if h.Status != nil {
		if err := h.Status.Forget(ctx, id); err != nil {
			logger(h.Log).Warn("status cache delete failed", "order_id", id, "err", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

type statusResp struct {
	OrderID string `json:"order_id"`
	redisx.CachedStatus
	Cached bool `json:"cached"`
}

// getOrderStatus reads the cache first and falls back to the store.
func (h *Handler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := h.ctx(r)
	defer cancel()

	if h.Status != nil {
		if cs, ok, err := h.Status.Get(ctx, id); err == nil && ok {
			writeJSON(w, http.StatusOK, statusResp{OrderID: id, CachedStatus: cs, Cached: true})
			return
		}
	}
	o, err := h.Orders.GetOrder(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, statusResp{OrderID: o.ID, CachedStatus: redisx.CachedStatus{Status: o.Status, UpdatedAt: o.UpdatedAt}})
}

type transitionFunc func(ctx context.Context, orderID string) (*orders.Order, error)

func (h *Handler) transition(fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := h.ctx(r)
		defer cancel()

		o, err := fn(ctx, chi.URLParam(r, "id"))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.cacheStatus(ctx, o)
		writeJSON(w, http.StatusOK, o)
	}
}

func (h *Handler) cacheStatus(ctx context.Context, o *orders.Order) {
	if h.Status == nil {
		return
	}
	if err := h.Status.Set(ctx, o.ID, redisx.CachedStatus{Status: o.Status, UpdatedAt: o.UpdatedAt}); err != nil {
		logger(h.Log).Warn("status cache write failed", "order_id", o.ID, "err", err)
	}
}

func (h *Handler) logScrap(w http.ResponseWriter, r *http.Request) {
	var in inventory.ScrapInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	in.LineItemID = chi.URLParam(r, "id")
	ctx, cancel := h.ctx(r)
	defer cancel()

	e, err := h.Inventory.LogScrap(ctx, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *Handler) listScrap(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	es, err := h.Inventory.ListScrap(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(es))
}

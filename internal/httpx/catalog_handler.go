package httpx

import (
	"net/http"

	"github.com/TworzymyMarzenia3d/front-crm/internal/inventory"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var in inventory.ProductInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()

	p, err := h.Inventory.CreateProduct(ctx, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	ps, err := h.Inventory.ListProducts(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(ps))
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	p, err := h.Inventory.GetProduct(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// quote is the live cost preview. An uncovered quantity is a normal answer
// with sufficient=false, not an error.
func (h *Handler) quote(w http.ResponseWriter, r *http.Request) {
	qty, err := decimal.NewFromString(r.URL.Query().Get("quantity"))
	if err != nil {
		h.fail(w, r, invalidParam("quantity", err))
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()

	q, err := h.Inventory.Quote(ctx, chi.URLParam(r, "id"), qty)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) recordPurchase(w http.ResponseWriter, r *http.Request) {
	var in inventory.PurchaseInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()

	b, err := h.Inventory.RecordPurchase(ctx, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *Handler) listBatches(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	bs, err := h.Inventory.ListBatches(ctx, r.URL.Query().Get("product_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(bs))
}

// nonNil keeps empty lists as [] rather than null on the wire.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

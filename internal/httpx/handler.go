package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/TworzymyMarzenia3d/front-crm/internal/clients"
	"github.com/TworzymyMarzenia3d/front-crm/internal/fulfillment"
	"github.com/TworzymyMarzenia3d/front-crm/internal/inventory"
	"github.com/TworzymyMarzenia3d/front-crm/internal/redisx"
	"github.com/TworzymyMarzenia3d/front-crm/internal/schedule"
	"github.com/go-chi/chi/v5"
)

// StatusCache is the order status cache; redisx.StatusCache in production.
type StatusCache interface {
	Get(ctx context.Context, orderID string) (redisx.CachedStatus, bool, error)
	Set(ctx context.Context, orderID string, cs redisx.CachedStatus) error
	Forget(ctx context.Context, orderID string) error
}

// IdempotencyStore remembers which order an Idempotency-Key produced.
type IdempotencyStore interface {
	Lookup(ctx context.Context, key string) (string, bool, error)
	Remember(ctx context.Context, key, orderID string) error
}

type Handler struct {
	Clients   *clients.Service
	Inventory *inventory.Service
	Orders    *fulfillment.Service
	Schedule  *schedule.Service

	// Optional; nil disables caching and idempotency keys.
	Status      StatusCache
	Idempotency IdempotencyStore

	Log     *slog.Logger
	Timeout time.Duration
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/clients", func(r chi.Router) {
		r.Post("/", h.createClient)
		r.Get("/", h.listClients)
		r.Get("/{id}", h.getClient)
		r.Put("/{id}", h.updateClient)
	})
	r.Route("/products", func(r chi.Router) {
		r.Post("/", h.createProduct)
		r.Get("/", h.listProducts)
		r.Get("/{id}", h.getProduct)
		r.Get("/{id}/quote", h.quote)
	})
	r.Post("/purchases", h.recordPurchase)
	r.Get("/batches", h.listBatches)

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.createOrder)
		r.Get("/", h.listOrders)
		r.Get("/{id}", h.getOrder)
		r.Put("/{id}", h.updateOrder)
		r.Delete("/{id}", h.deleteOrder)
		r.Get("/{id}/status", h.getOrderStatus)
		r.Post("/{id}/reserve", h.transition(h.Orders.ReserveMaterials))
		r.Post("/{id}/complete", h.transition(h.Orders.Complete))
		r.Post("/{id}/cancel", h.transition(h.Orders.Cancel))
		r.Get("/{id}/scrap", h.listScrap)
	})
	r.Post("/order-items/{id}/scrap", h.logScrap)

	r.Route("/printers", func(r chi.Router) {
		r.Post("/", h.createPrinter)
		r.Get("/", h.listPrinters)
		r.Get("/{id}", h.getPrinter)
		r.Put("/{id}", h.updatePrinter)
		r.Delete("/{id}", h.deletePrinter)
	})
	r.Route("/print-jobs", func(r chi.Router) {
		r.Post("/", h.scheduleJob)
		r.Get("/", h.listJobs)
		r.Get("/{id}", h.getJob)
		r.Put("/{id}", h.rescheduleJob)
		r.Delete("/{id}", h.cancelJob)
	})
}

func (h *Handler) ctx(r *http.Request) (context.Context, context.CancelFunc) {
	d := h.Timeout
	if d <= 0 {
		d = 5 * time.Second
	}
	return context.WithTimeout(r.Context(), d)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, h.Log, err)
}

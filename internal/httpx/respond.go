package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/TworzymyMarzenia3d/front-crm/internal/orders"
	"github.com/go-chi/chi/v5/middleware"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error     string         `json:"error"`
	Code      string         `json:"code"`
	RequestID string         `json:"request_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return orders.Invalid("invalid json: %v", err)
	}
	return nil
}

// classify maps a domain error to status and code. ErrConsistency is checked
// first because it can wrap a transition error.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, orders.ErrConsistency):
		return http.StatusInternalServerError, "CONSISTENCY_FAULT"
	case errors.Is(err, orders.ErrValidation):
		return http.StatusBadRequest, "VALIDATION"
	case errors.Is(err, orders.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, orders.ErrInsufficientStock):
		return http.StatusConflict, "INSUFFICIENT_STOCK"
	case errors.Is(err, orders.ErrInvalidTransition):
		return http.StatusConflict, "INVALID_STATE"
	case errors.Is(err, orders.ErrOverlap):
		return http.StatusConflict, "OVERLAP"
	case errors.Is(err, orders.ErrBusy):
		return http.StatusConflict, "BUSY"
	case errors.Is(err, orders.ErrInUse):
		return http.StatusConflict, "IN_USE"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func details(err error) map[string]any {
	var (
		ise *orders.InsufficientStockError
		oe  *orders.OverlapError
		te  *orders.TransitionError
	)
	switch {
	case errors.As(err, &ise):
		return map[string]any{
			"product_id": ise.ProductID,
			"required":   ise.Required,
			"available":  ise.Available,
			"shortfall":  ise.Shortfall,
		}
	case errors.As(err, &oe):
		d := map[string]any{"printer_id": oe.PrinterID, "start": oe.Start, "end": oe.End}
		if oe.ConflictingJobID != "" {
			d["conflicting_job_id"] = oe.ConflictingJobID
		}
		return d
	case errors.As(err, &te):
		return map[string]any{"entity": te.Entity, "id": te.ID, "from": te.From, "to": te.To}
	}
	return nil
}

func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status, code := classify(err)
	body := ErrorBody{
		Error:     err.Error(),
		Code:      code,
		RequestID: middleware.GetReqID(r.Context()),
	}
	if status >= 500 {
		logger(log).Error("request failed", "method", r.Method, "path", r.URL.Path,
			"code", code, "request_id", body.RequestID, "err", err)
		if code == "INTERNAL" {
			body.Error = "internal error"
		}
	} else {
		body.Details = details(err)
	}
	writeJSON(w, status, body)
}

func invalidParam(name string, err error) error {
	return orders.Invalid("%s: %v", name, err)
}

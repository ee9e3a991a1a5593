package httpx

import (
	"net/http"
	"time"

	"github.com/TworzymyMarzenia3d/front-crm/internal/orders"
	"github.com/TworzymyMarzenia3d/front-crm/internal/schedule"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

func (h *Handler) createPrinter(w http.ResponseWriter, r *http.Request) {
	var in schedule.PrinterInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()

	p, err := h.Schedule.CreatePrinter(ctx, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) listPrinters(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	ps, err := h.Schedule.ListPrinters(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(ps))
}

func (h *Handler) getPrinter(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	p, err := h.Schedule.GetPrinter(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) updatePrinter(w http.ResponseWriter, r *http.Request) {
	var in schedule.PrinterInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()

	p, err := h.Schedule.UpdatePrinter(ctx, chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) deletePrinter(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	if err := h.Schedule.DeletePrinter(ctx, chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

var maxJobHours = decimal.NewFromInt(int64(schedule.MaxJobDuration / time.Hour))

type scheduleJobReq struct {
	PrinterID     string          `json:"printer_id"`
	LineItemID    string          `json:"line_item_id"`
	Start         time.Time       `json:"start"`
	DurationHours decimal.Decimal `json:"duration_hours"`
	Color         string          `json:"color"`
}

func (h *Handler) scheduleJob(w http.ResponseWriter, r *http.Request) {
	var req scheduleJobReq
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if !req.DurationHours.IsPositive() {
		h.fail(w, r, orders.Invalid("duration_hours must be positive"))
		return
	}
	// Checked before converting so the nanosecond count cannot overflow.
	if req.DurationHours.GreaterThan(maxJobHours) {
		h.fail(w, r, orders.Invalid("duration_hours must not exceed %s", maxJobHours))
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()

	j, err := h.Schedule.ScheduleJob(ctx, schedule.JobInput{
		PrinterID:  req.PrinterID,
		LineItemID: req.LineItemID,
		Start:      req.Start,
		Duration:   time.Duration(req.DurationHours.Mul(decimal.NewFromInt(int64(time.Hour))).IntPart()),
		Color:      req.Color,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, j)
}

// rescheduleJob serves both drag (move) and resize: the body is the new
// interval, optionally on another printer.
func (h *Handler) rescheduleJob(w http.ResponseWriter, r *http.Request) {
	var in schedule.RescheduleInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()

	j, err := h.Schedule.RescheduleJob(ctx, chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (h *Handler) getJob(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	j, err := h.Schedule.GetJob(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (h *Handler) cancelJob(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	j, err := h.Schedule.CancelJob(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (h *Handler) listJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := time.Parse(time.RFC3339, q.Get("start"))
	if err != nil {
		h.fail(w, r, invalidParam("start", err))
		return
	}
	end, err := time.Parse(time.RFC3339, q.Get("end"))
	if err != nil {
		h.fail(w, r, invalidParam("end", err))
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()

	js, err := h.Schedule.ListJobs(ctx, start, end, q.Get("printer_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(js))
}

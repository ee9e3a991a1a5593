// Package schedule keeps one timeline of non-overlapping print jobs per
// printer. Intervals are half-open: a job ending at 12:00 does not collide
// with one starting at 12:00.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/TworzymyMarzenia3d/front-crm/internal/metrics"
	"github.com/TworzymyMarzenia3d/front-crm/internal/orders"
	"github.com/google/uuid"
)

// DefaultColor is used for jobs scheduled without one.
const DefaultColor = "#3788d8"

// MaxJobDuration bounds a single booking. Longer prints are split into
// several jobs.
const MaxJobDuration = 31 * 24 * time.Hour

var colorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type Service struct {
	Store       orders.Store
	Publisher   orders.Publisher
	Log         *slog.Logger
	ServiceName string
	Now         func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

func (s *Service) publish(ctx context.Context, eventType string, job orders.PrintJob) {
	if s.Publisher == nil {
		return
	}
	env, err := orders.NewEnvelope(ctx, eventType, s.ServiceName, job.OrderID, orders.JobPayload{Job: job})
	if err == nil {
		err = s.Publisher.Publish(ctx, env)
	}
	if err != nil {
		s.log().Warn("publish failed", "event", eventType, "job_id", job.ID, "err", err)
	}
}

// ---- printers ----

type PrinterInput struct {
	Name               string              `json:"name"`
	Model              string              `json:"model"`
	BuildVolume        *orders.BuildVolume `json:"build_volume"`
	SupportedMaterials []string            `json:"supported_materials"`
	Notes              string              `json:"notes"`
}

// printer validates in and builds the stored record for id.
func (in PrinterInput) printer(id string) (*orders.Printer, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, orders.Invalid("printer name is required")
	}
	if bv := in.BuildVolume; bv != nil && (!bv.X.IsPositive() || !bv.Y.IsPositive() || !bv.Z.IsPositive()) {
		return nil, orders.Invalid("build volume dimensions must be positive")
	}
	mats := make([]string, 0, len(in.SupportedMaterials))
	for _, m := range in.SupportedMaterials {
		if m = strings.TrimSpace(m); m != "" {
			mats = append(mats, m)
		}
	}
	return &orders.Printer{
		ID:                 id,
		Name:               name,
		Model:              strings.TrimSpace(in.Model),
		BuildVolume:        in.BuildVolume,
		SupportedMaterials: mats,
		Notes:              in.Notes,
	}, nil
}

func (s *Service) CreatePrinter(ctx context.Context, in PrinterInput) (*orders.Printer, error) {
	p, err := in.printer(uuid.NewString())
	if err != nil {
		return nil, err
	}
	p.CreatedAt = s.now()
	err = s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		return tx.InsertPrinter(ctx, p)
	})
	if err != nil {
		return nil, fmt.Errorf("create printer: %w", err)
	}
	return p, nil
}

// UpdatePrinter replaces the printer's description. Its jobs stay where they are.
func (s *Service) UpdatePrinter(ctx context.Context, id string, in PrinterInput) (*orders.Printer, error) {
	p, err := in.printer(id)
	if err != nil {
		return nil, err
	}
	err = s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		return tx.UpdatePrinter(ctx, p)
	})
	if err != nil {
		return nil, fmt.Errorf("update printer: %w", err)
	}
	return p, nil
}

// DeletePrinter removes a printer with no scheduled jobs. Its cancelled jobs
// go with it.
func (s *Service) DeletePrinter(ctx context.Context, id string) error {
	err := s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		if err := tx.LockPrinter(ctx, id); err != nil {
			return fmt.Errorf("printer %s: %w", id, err)
		}
		live, err := tx.HasLiveJobs(ctx, id)
		if err != nil {
			return err
		}
		if live {
			return fmt.Errorf("%w: printer %s has scheduled jobs", orders.ErrInUse, id)
		}
		return tx.DeletePrinter(ctx, id)
	})
	if err != nil {
		return err
	}
	s.log().Info("printer deleted", "printer_id", id, "actor", orders.ActorFrom(ctx))
	return nil
}

func (s *Service) GetPrinter(ctx context.Context, id string) (*orders.Printer, error) {
	var p *orders.Printer
	err := s.Store.View(ctx, func(ctx context.Context, tx orders.Tx) error {
		var err error
		p, err = tx.GetPrinter(ctx, id)
		return err
	})
	return p, err
}

func (s *Service) ListPrinters(ctx context.Context) ([]orders.Printer, error) {
	var out []orders.Printer
	err := s.Store.View(ctx, func(ctx context.Context, tx orders.Tx) error {
		var err error
		out, err = tx.ListPrinters(ctx)
		return err
	})
	return out, err
}

// ---- jobs ----

type JobInput struct {
	PrinterID  string        `json:"printer_id"`
	LineItemID string        `json:"line_item_id"`
	Start      time.Time     `json:"start"`
	Duration   time.Duration `json:"-"`
	Color      string        `json:"color"`
}

// ScheduleJob books [start, start+duration) on a printer for a line item of
// an in-progress order.
func (s *Service) ScheduleJob(ctx context.Context, in JobInput) (*orders.PrintJob, error) {
	if in.Duration <= 0 {
		return nil, orders.Invalid("duration must be positive, got %s", in.Duration)
	}
	if in.Duration > MaxJobDuration {
		return nil, orders.Invalid("duration must not exceed %s, got %s", MaxJobDuration, in.Duration)
	}
	color, err := normalizeColor(in.Color)
	if err != nil {
		return nil, err
	}
	start := in.Start.UTC()
	if start.IsZero() {
		return nil, orders.Invalid("start is required")
	}
	now := s.now()
	job := &orders.PrintJob{
		ID:         uuid.NewString(),
		PrinterID:  in.PrinterID,
		LineItemID: in.LineItemID,
		Start:      start,
		End:        start.Add(in.Duration),
		Color:      color,
		Status:     orders.JobScheduled,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		item, err := tx.GetLineItem(ctx, in.LineItemID)
		if err != nil {
			return fmt.Errorf("line item %s: %w", in.LineItemID, err)
		}
		if err := requireInProgress(ctx, tx, item.OrderID); err != nil {
			return err
		}
		job.OrderID = item.OrderID
		if err := s.claim(ctx, tx, job.PrinterID, job.Start, job.End, ""); err != nil {
			return err
		}
		return tx.InsertJob(ctx, job)
	})
	if err != nil {
		s.countConflict(err)
		return nil, err
	}
	s.publish(ctx, orders.EventJobScheduled, *job)
	return job, nil
}

type RescheduleInput struct {
	PrinterID string    `json:"printer_id"` // empty keeps the current printer
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

// RescheduleJob moves and/or resizes a job as one new interval, possibly on
// another printer. On rejection the stored job is left as it was.
func (s *Service) RescheduleJob(ctx context.Context, jobID string, in RescheduleInput) (*orders.PrintJob, error) {
	start, end := in.Start.UTC(), in.End.UTC()
	if start.IsZero() || end.IsZero() {
		return nil, orders.Invalid("start and end are required")
	}
	if !start.Before(end) {
		return nil, orders.Invalid("start must be before end")
	}
	if end.Sub(start) > MaxJobDuration {
		return nil, orders.Invalid("job must not be longer than %s", MaxJobDuration)
	}

	var job *orders.PrintJob
	err := s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		j, err := tx.GetJob(ctx, jobID, orders.LockExclusive)
		if err != nil {
			return fmt.Errorf("job %s: %w", jobID, err)
		}
		if j.Status == orders.JobCancelled {
			return &orders.TransitionError{Entity: "job", ID: j.ID, From: string(j.Status), To: string(orders.JobScheduled)}
		}
		if err := requireInProgress(ctx, tx, j.OrderID); err != nil {
			return err
		}
		target := j.PrinterID
		if in.PrinterID != "" {
			target = in.PrinterID
		}
		if err := s.claim(ctx, tx, target, start, end, j.ID); err != nil {
			return err
		}
		j.PrinterID, j.Start, j.End, j.UpdatedAt = target, start, end, s.now()
		if err := tx.UpdateJob(ctx, j); err != nil {
			return err
		}
		job = j
		return nil
	})
	if err != nil {
		s.countConflict(err)
		return nil, err
	}
	s.publish(ctx, orders.EventJobRescheduled, *job)
	return job, nil
}

// CancelJob frees the job's interval. Cancelling twice is rejected.
func (s *Service) CancelJob(ctx context.Context, jobID string) (*orders.PrintJob, error) {
	var job *orders.PrintJob
	err := s.Store.InTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		j, err := tx.GetJob(ctx, jobID, orders.LockExclusive)
		if err != nil {
			return fmt.Errorf("job %s: %w", jobID, err)
		}
		if j.Status == orders.JobCancelled {
			return &orders.TransitionError{Entity: "job", ID: j.ID, From: string(j.Status), To: string(orders.JobCancelled)}
		}
		j.Status = orders.JobCancelled
		j.UpdatedAt = s.now()
		if err := tx.UpdateJob(ctx, j); err != nil {
			return err
		}
		job = j
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, orders.EventJobCancelled, *job)
	return job, nil
}

func (s *Service) GetJob(ctx context.Context, id string) (*orders.PrintJob, error) {
	var j *orders.PrintJob
	err := s.Store.View(ctx, func(ctx context.Context, tx orders.Tx) error {
		var err error
		j, err = tx.GetJob(ctx, id, orders.LockNone)
		return err
	})
	return j, err
}

// ListJobs returns live jobs intersecting [start, end), for one printer or all.
func (s *Service) ListJobs(ctx context.Context, start, end time.Time, printerID string) ([]orders.PrintJob, error) {
	if !start.Before(end) {
		return nil, orders.Invalid("range start must be before end")
	}
	var out []orders.PrintJob
	err := s.Store.View(ctx, func(ctx context.Context, tx orders.Tx) error {
		var err error
		out, err = tx.ListJobs(ctx, printerID, start.UTC(), end.UTC())
		return err
	})
	return out, err
}

// claim locks the printer's timeline for the rest of the unit of work and
// fails if [start, end) collides with a live job other than excludeID.
func (s *Service) claim(ctx context.Context, tx orders.Tx, printerID string, start, end time.Time, excludeID string) error {
	if err := tx.LockPrinter(ctx, printerID); err != nil {
		return fmt.Errorf("printer %s: %w", printerID, err)
	}
	clash, err := tx.OverlappingJobs(ctx, printerID, start, end, excludeID)
	if err != nil {
		return fmt.Errorf("overlap check: %w", err)
	}
	if len(clash) > 0 {
		return &orders.OverlapError{PrinterID: printerID, ConflictingJobID: clash[0].ID, Start: start, End: end}
	}
	return nil
}

func (s *Service) countConflict(err error) {
	if errors.Is(err, orders.ErrOverlap) {
		metrics.ScheduleConflicts.Inc()
	}
}

func requireInProgress(ctx context.Context, tx orders.Tx, orderID string) error {
	o, err := tx.GetOrder(ctx, orderID, orders.LockShare)
	if err != nil {
		return fmt.Errorf("order %s: %w", orderID, err)
	}
	if o.Status != orders.StatusInProgress {
		return fmt.Errorf("%w: jobs need an in-progress order, order %s is %s",
			orders.ErrInvalidTransition, o.ID, o.Status)
	}
	return nil
}

func normalizeColor(c string) (string, error) {
	c = strings.TrimSpace(c)
	if c == "" {
		return DefaultColor, nil
	}
	if !colorRe.MatchString(c) {
		return "", orders.Invalid("color must look like #rrggbb, got %q", c)
	}
	return strings.ToLower(c), nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/TworzymyMarzenia3d/front-crm/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

func (t *tx) InsertPrinter(ctx context.Context, p *orders.Printer) error {
	var x, y, z decimal.NullDecimal
	if bv := p.BuildVolume; bv != nil {
		x = decimal.NewNullDecimal(bv.X)
		y = decimal.NewNullDecimal(bv.Y)
		z = decimal.NewNullDecimal(bv.Z)
	}
	mats := p.SupportedMaterials
	if mats == nil {
		mats = []string{}
	}
	_, err := t.q.Exec(ctx, `
		INSERT INTO printers(id, name, model, build_x, build_y, build_z, supported_materials, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.Name, p.Model, x, y, z, mats, p.Notes, p.CreatedAt)
	return translate(err)
}

const printerCols = `id, name, model, build_x, build_y, build_z, supported_materials, notes, created_at`

func scanPrinter(row pgx.Row) (*orders.Printer, error) {
	var (
		p       orders.Printer
		x, y, z decimal.NullDecimal
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Model, &x, &y, &z, &p.SupportedMaterials, &p.Notes, &p.CreatedAt); err != nil {
		return nil, translate(err)
	}
	if x.Valid && y.Valid && z.Valid {
		p.BuildVolume = &orders.BuildVolume{X: x.Decimal, Y: y.Decimal, Z: z.Decimal}
	}
	return &p, nil
}

func (t *tx) GetPrinter(ctx context.Context, id string) (*orders.Printer, error) {
	return scanPrinter(t.q.QueryRow(ctx, `SELECT `+printerCols+` FROM printers WHERE id = $1`, id))
}

func (t *tx) ListPrinters(ctx context.Context) ([]orders.Printer, error) {
	rows, err := t.q.Query(ctx, `SELECT `+printerCols+` FROM printers ORDER BY name, id`)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []orders.Printer
	for rows.Next() {
		p, err := scanPrinter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, translate(rows.Err())
}

func (t *tx) UpdatePrinter(ctx context.Context, p *orders.Printer) error {
	var x, y, z decimal.NullDecimal
	if bv := p.BuildVolume; bv != nil {
		x = decimal.NewNullDecimal(bv.X)
		y = decimal.NewNullDecimal(bv.Y)
		z = decimal.NewNullDecimal(bv.Z)
	}
	mats := p.SupportedMaterials
	if mats == nil {
		mats = []string{}
	}
	err := t.q.QueryRow(ctx, `
		UPDATE printers
		SET name = $2, model = $3, build_x = $4, build_y = $5, build_z = $6, supported_materials = $7, notes = $8
		WHERE id = $1
		RETURNING created_at`,
		p.ID, p.Name, p.Model, x, y, z, mats, p.Notes).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("printer %s: %w", p.ID, translate(err))
	}
	return nil
}

func (t *tx) DeletePrinter(ctx context.Context, id string) error {
	if _, err := t.q.Exec(ctx, `DELETE FROM print_jobs WHERE printer_id = $1 AND status = 'cancelled'`, id); err != nil {
		return translate(err)
	}
	tag, err := t.q.Exec(ctx, `DELETE FROM printers WHERE id = $1`, id)
	if err != nil {
		// A live job still references the printer.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == codeForeignKey {
			return fmt.Errorf("%w: printer %s has scheduled jobs", orders.ErrInUse, id)
		}
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("printer %s: %w", id, orders.ErrNotFound)
	}
	return nil
}

func (t *tx) HasLiveJobs(ctx context.Context, printerID string) (bool, error) {
	var live bool
	err := t.q.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM print_jobs WHERE printer_id = $1 AND status <> 'cancelled')`,
		printerID).Scan(&live)
	return live, translate(err)
}

func (t *tx) LockPrinter(ctx context.Context, id string) error {
	var got string
	err := t.q.QueryRow(ctx, `SELECT id FROM printers WHERE id = $1 FOR UPDATE`, id).Scan(&got)
	return translate(err)
}

// overlap turns an exclusion-constraint hit into the same error the service
// raises on its own check; the constraint is the backstop for that check.
func overlap(err error, j *orders.PrintJob) error {
	err = translate(err)
	if errors.Is(err, orders.ErrOverlap) {
		return &orders.OverlapError{PrinterID: j.PrinterID, Start: j.Start, End: j.End}
	}
	return err
}

func (t *tx) InsertJob(ctx context.Context, j *orders.PrintJob) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO print_jobs(id, printer_id, line_item_id, order_id, start_at, end_at, color, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		j.ID, j.PrinterID, j.LineItemID, j.OrderID, j.Start, j.End, j.Color, string(j.Status), j.CreatedAt, j.UpdatedAt)
	return overlap(err, j)
}

const jobCols = `id, printer_id, line_item_id, order_id, start_at, end_at, color, status, created_at, updated_at`

func scanJob(row pgx.Row) (*orders.PrintJob, error) {
	var (
		j      orders.PrintJob
		status string
	)
	if err := row.Scan(&j.ID, &j.PrinterID, &j.LineItemID, &j.OrderID, &j.Start, &j.End,
		&j.Color, &status, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, translate(err)
	}
	j.Status = orders.JobStatus(status)
	j.Start, j.End = j.Start.UTC(), j.End.UTC()
	return &j, nil
}

func (t *tx) GetJob(ctx context.Context, id string, mode orders.LockMode) (*orders.PrintJob, error) {
	return scanJob(t.q.QueryRow(ctx, `SELECT `+jobCols+` FROM print_jobs WHERE id = $1`+lockClause(mode), id))
}

func (t *tx) UpdateJob(ctx context.Context, j *orders.PrintJob) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE print_jobs
		SET printer_id = $2, start_at = $3, end_at = $4, color = $5, status = $6, updated_at = $7
		WHERE id = $1`,
		j.ID, j.PrinterID, j.Start, j.End, j.Color, string(j.Status), j.UpdatedAt)
	if err != nil {
		return overlap(err, j)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", j.ID, orders.ErrNotFound)
	}
	return nil
}

func (t *tx) queryJobs(ctx context.Context, q string, args ...any) ([]orders.PrintJob, error) {
	rows, err := t.q.Query(ctx, q, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []orders.PrintJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}
	return out, translate(rows.Err())
}

func (t *tx) OverlappingJobs(ctx context.Context, printerID string, start, end time.Time, excludeID string) ([]orders.PrintJob, error) {
	q := `SELECT ` + jobCols + ` FROM print_jobs
		WHERE printer_id = $1 AND status <> 'cancelled'
		  AND start_at < $3 AND $2 < end_at`
	args := []any{printerID, start, end}
	if excludeID != "" {
		q += ` AND id <> $4`
		args = append(args, excludeID)
	}
	return t.queryJobs(ctx, q+` ORDER BY start_at, id`, args...)
}

func (t *tx) ListJobs(ctx context.Context, printerID string, start, end time.Time) ([]orders.PrintJob, error) {
	q := `SELECT ` + jobCols + ` FROM print_jobs
		WHERE status <> 'cancelled' AND start_at < $2 AND $1 < end_at`
	args := []any{start, end}
	if printerID != "" {
		q += ` AND printer_id = $3`
		args = append(args, printerID)
	}
	return t.queryJobs(ctx, q+` ORDER BY start_at, id`, args...)
}

func (t *tx) CancelJobsForOrder(ctx context.Context, orderID string, at time.Time) ([]string, error) {
	rows, err := t.q.Query(ctx, `
		UPDATE print_jobs SET status = 'cancelled', updated_at = $2
		WHERE order_id = $1 AND status <> 'cancelled'
		RETURNING id`, orderID, at)
	if err != nil {
		return nil, translate(err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, translate(err)
	}
	slices.Sort(ids)
	return ids, nil
}

package postgres

import (
	"context"
	"time"

	"github.com/TworzymyMarzenia3d/front-crm/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

func (t *tx) insertAllocations(ctx context.Context, table, ownerCol, ownerID string, as []orders.Allocation) error {
	if len(as) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i, a := range as {
		batch.Queue(`INSERT INTO `+table+`(`+ownerCol+`, position, batch_id, quantity, unit_cost)
			VALUES ($1, $2, $3, $4, $5)`, ownerID, i, a.BatchID, a.Quantity, a.UnitCost)
	}
	return translate(t.q.SendBatch(ctx, batch).Close())
}

func (t *tx) allocations(ctx context.Context, table, ownerCol, ownerID string) ([]orders.Allocation, error) {
	rows, err := t.q.Query(ctx,
		`SELECT batch_id, quantity, unit_cost FROM `+table+` WHERE `+ownerCol+` = $1 ORDER BY position`, ownerID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []orders.Allocation
	for rows.Next() {
		var a orders.Allocation
		if err := rows.Scan(&a.BatchID, &a.Quantity, &a.UnitCost); err != nil {
			return nil, translate(err)
		}
		out = append(out, a)
	}
	return out, translate(rows.Err())
}

func (t *tx) InsertReservation(ctx context.Context, r *orders.Reservation) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO reservations(id, line_item_id, product_id, quantity, total_cost, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, r.LineItemID, r.ProductID, r.Quantity, r.TotalCost, string(r.Status), r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return translate(err)
	}
	return t.insertAllocations(ctx, "reservation_allocations", "reservation_id", r.ID, r.Allocations)
}

func (t *tx) GetReservation(ctx context.Context, id string, mode orders.LockMode) (*orders.Reservation, error) {
	var (
		r      orders.Reservation
		status string
	)
	err := t.q.QueryRow(ctx, `
		SELECT id, line_item_id, product_id, quantity, total_cost, status, created_at, updated_at
		FROM reservations WHERE id = $1`+lockClause(mode), id,
	).Scan(&r.ID, &r.LineItemID, &r.ProductID, &r.Quantity, &r.TotalCost, &status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	r.Status = orders.ReservationStatus(status)
	if r.Allocations, err = t.allocations(ctx, "reservation_allocations", "reservation_id", r.ID); err != nil {
		return nil, err
	}
	return &r, nil
}

func (t *tx) HeldByBatch(ctx context.Context, productID string) (map[string]decimal.Decimal, error) {
	rows, err := t.q.Query(ctx, `
		SELECT a.batch_id, SUM(a.quantity)
		FROM reservation_allocations a
		JOIN reservations r ON r.id = a.reservation_id
		WHERE r.product_id = $1 AND r.status = 'held'
		GROUP BY a.batch_id`, productID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	held := map[string]decimal.Decimal{}
	for rows.Next() {
		var (
			batchID string
			qty     decimal.Decimal
		)
		if err := rows.Scan(&batchID, &qty); err != nil {
			return nil, translate(err)
		}
		held[batchID] = qty
	}
	return held, translate(rows.Err())
}

func (t *tx) SetReservationStatus(ctx context.Context, id string, from, to orders.ReservationStatus, at time.Time) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE reservations SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2`, id, string(from), string(to), at)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var cur string
	if err := t.q.QueryRow(ctx, `SELECT status FROM reservations WHERE id = $1`, id).Scan(&cur); err != nil {
		return translate(err)
	}
	return &orders.TransitionError{Entity: "reservation", ID: id, From: cur, To: string(to)}
}

func (t *tx) InsertScrap(ctx context.Context, e *orders.ScrapEntry) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO scrap_entries(id, line_item_id, product_id, quantity, reason, total_cost, logged_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.LineItemID, e.ProductID, e.Quantity, e.Reason, e.TotalCost, e.LoggedBy, e.CreatedAt)
	if err != nil {
		return translate(err)
	}
	return t.insertAllocations(ctx, "scrap_allocations", "scrap_id", e.ID, e.Allocations)
}

func (t *tx) ListScrapByOrder(ctx context.Context, orderID string) ([]orders.ScrapEntry, error) {
	rows, err := t.q.Query(ctx, `
		SELECT s.id, s.line_item_id, s.product_id, s.quantity, s.reason, s.total_cost, s.logged_by, s.created_at
		FROM scrap_entries s
		JOIN order_items i ON i.id = s.line_item_id
		WHERE i.order_id = $1
		ORDER BY s.created_at, s.id`, orderID)
	if err != nil {
		return nil, translate(err)
	}
	var out []orders.ScrapEntry
	for rows.Next() {
		var e orders.ScrapEntry
		if err := rows.Scan(&e.ID, &e.LineItemID, &e.ProductID, &e.Quantity, &e.Reason,
			&e.TotalCost, &e.LoggedBy, &e.CreatedAt); err != nil {
			rows.Close()
			return nil, translate(err)
		}
		out = append(out, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, translate(err)
	}
	// Allocations need the connection back, so they are read after the rows are closed.
	for i := range out {
		if out[i].Allocations, err = t.allocations(ctx, "scrap_allocations", "scrap_id", out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

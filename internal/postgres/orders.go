package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/TworzymyMarzenia3d/front-crm/internal/orders"
	"github.com/jackc/pgx/v5"
)

func (t *tx) InsertOrder(ctx context.Context, o *orders.Order) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO orders(id, client_id, order_date, status, total_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		o.ID, o.ClientID, o.OrderDate, string(o.Status), o.TotalAmount, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return translate(err)
	}

	return t.insertItems(ctx, o)
}

func (t *tx) insertItems(ctx context.Context, o *orders.Order) error {
	batch := &pgx.Batch{}
	for i, it := range o.Items {
		batch.Queue(`
			INSERT INTO order_items(id, order_id, position, product_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			it.ID, o.ID, i, it.ProductID, it.Quantity, it.UnitPrice)
	}
	return translate(t.q.SendBatch(ctx, batch).Close())
}

// notPending explains why a guarded write on a pending order touched no row.
func (t *tx) notPending(ctx context.Context, id string) error {
	var cur string
	if err := t.q.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, id).Scan(&cur); err != nil {
		return translate(err)
	}
	return fmt.Errorf("%w: order %s is %s, only pending orders can change", orders.ErrInvalidTransition, id, cur)
}

func (t *tx) UpdateOrder(ctx context.Context, o *orders.Order) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE orders SET client_id = $2, order_date = $3, total_amount = $4, updated_at = $5
		WHERE id = $1 AND status = 'pending'`,
		o.ID, o.ClientID, o.OrderDate, o.TotalAmount, o.UpdatedAt)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return t.notPending(ctx, o.ID)
	}
	if _, err := t.q.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, o.ID); err != nil {
		return translate(err)
	}
	return t.insertItems(ctx, o)
}

// DeleteOrder relies on ON DELETE CASCADE for the line items.
func (t *tx) DeleteOrder(ctx context.Context, id string) error {
	tag, err := t.q.Exec(ctx, `DELETE FROM orders WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return t.notPending(ctx, id)
	}
	return nil
}

const orderCols = `id, client_id, order_date, status, total_amount, created_at, updated_at`

func scanOrder(row pgx.Row) (*orders.Order, error) {
	var (
		o      orders.Order
		status string
	)
	if err := row.Scan(&o.ID, &o.ClientID, &o.OrderDate, &status, &o.TotalAmount, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, translate(err)
	}
	o.Status = orders.Status(status)
	return &o, nil
}

func (t *tx) GetOrder(ctx context.Context, id string, mode orders.LockMode) (*orders.Order, error) {
	o, err := scanOrder(t.q.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id = $1`+lockClause(mode), id))
	if err != nil {
		return nil, err
	}
	items, err := t.itemsOf(ctx, []string{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return o, nil
}

const itemCols = `id, order_id, product_id, quantity, unit_price, COALESCE(reservation_id::text, '')`

func scanItem(row pgx.Row) (*orders.LineItem, error) {
	var it orders.LineItem
	if err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.ReservationID); err != nil {
		return nil, translate(err)
	}
	return &it, nil
}

func (t *tx) itemsOf(ctx context.Context, orderIDs []string) (map[string][]orders.LineItem, error) {
	rows, err := t.q.Query(ctx, `
		SELECT `+itemCols+` FROM order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY order_id, position`, orderIDs)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	out := make(map[string][]orders.LineItem, len(orderIDs))
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out[it.OrderID] = append(out[it.OrderID], *it)
	}
	return out, translate(rows.Err())
}

func (t *tx) ListOrders(ctx context.Context, status orders.Status) ([]orders.Order, error) {
	q := `SELECT ` + orderCols + ` FROM orders`
	var args []any
	if status != "" {
		q += ` WHERE status = $1`
		args = append(args, string(status))
	}
	q += ` ORDER BY created_at DESC, id`

	rows, err := t.q.Query(ctx, q, args...)
	if err != nil {
		return nil, translate(err)
	}
	var (
		out []orders.Order
		ids []string
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, *o)
		ids = append(ids, o.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, translate(err)
	}
	if len(out) == 0 {
		return out, nil
	}

	items, err := t.itemsOf(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}
	return out, nil
}

func (t *tx) GetLineItem(ctx context.Context, id string) (*orders.LineItem, error) {
	return scanItem(t.q.QueryRow(ctx, `SELECT `+itemCols+` FROM order_items WHERE id = $1`, id))
}

func (t *tx) SetLineItemReservation(ctx context.Context, itemID, reservationID string) error {
	tag, err := t.q.Exec(ctx, `UPDATE order_items SET reservation_id = $2 WHERE id = $1`, itemID, reservationID)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return orders.ErrNotFound
	}
	return nil
}

func (t *tx) SetOrderStatus(ctx context.Context, id string, from, to orders.Status, at time.Time) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE orders SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2`, id, string(from), string(to), at)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var cur string
	if err := t.q.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, id).Scan(&cur); err != nil {
		return translate(err)
	}
	return &orders.TransitionError{Entity: "order", ID: id, From: cur, To: string(to)}
}

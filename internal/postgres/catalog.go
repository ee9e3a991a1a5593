package postgres

import (
	"context"
	"fmt"

	"github.com/TworzymyMarzenia3d/front-crm/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

func (t *tx) InsertProduct(ctx context.Context, p *orders.Product) error {
	attrs := p.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	_, err := t.q.Exec(ctx, `
		INSERT INTO products(id, name, unit, category, attributes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.Name, string(p.Unit), p.Category, attrs, p.CreatedAt)
	return translate(err)
}

const productCols = `id, name, unit, category, attributes, created_at`

func scanProduct(row pgx.Row) (*orders.Product, error) {
	var (
		p    orders.Product
		unit string
	)
	if err := row.Scan(&p.ID, &p.Name, &unit, &p.Category, &p.Attributes, &p.CreatedAt); err != nil {
		return nil, translate(err)
	}
	p.Unit = orders.Unit(unit)
	if len(p.Attributes) == 0 {
		p.Attributes = nil
	}
	return &p, nil
}

func (t *tx) GetProduct(ctx context.Context, id string) (*orders.Product, error) {
	return scanProduct(t.q.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id = $1`, id))
}

func (t *tx) ListProducts(ctx context.Context) ([]orders.Product, error) {
	rows, err := t.q.Query(ctx, `SELECT `+productCols+` FROM products ORDER BY name, id`)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []orders.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, translate(rows.Err())
}

func (t *tx) InsertBatch(ctx context.Context, b *orders.Batch) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO batches(id, product_id, vendor, purchased_at, price, currency,
		                    exchange_rate, original_quantity, remaining_quantity, unit_cost)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING seq`,
		b.ID, b.ProductID, b.Vendor, b.PurchasedAt, b.Price, b.Currency,
		b.ExchangeRate, b.Original, b.Remaining, b.UnitCost,
	).Scan(&b.Seq)
	return translate(err)
}

func (t *tx) ListBatches(ctx context.Context, productID string, onlyOpen bool) ([]orders.Batch, error) {
	q := `
		SELECT id, seq, product_id, vendor, purchased_at, price, currency, exchange_rate,
		       original_quantity, remaining_quantity, unit_cost
		FROM batches
		WHERE true`
	var args []any
	if productID != "" {
		args = append(args, productID)
		q += fmt.Sprintf(" AND product_id = $%d", len(args))
	}
	if onlyOpen {
		q += " AND remaining_quantity > 0"
	}
	q += " ORDER BY purchased_at, seq"

	rows, err := t.q.Query(ctx, q, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []orders.Batch
	for rows.Next() {
		var b orders.Batch
		if err := rows.Scan(&b.ID, &b.Seq, &b.ProductID, &b.Vendor, &b.PurchasedAt, &b.Price,
			&b.Currency, &b.ExchangeRate, &b.Original, &b.Remaining, &b.UnitCost); err != nil {
			return nil, translate(err)
		}
		out = append(out, b)
	}
	return out, translate(rows.Err())
}

func (t *tx) LockProduct(ctx context.Context, productID string) error {
	var id string
	err := t.q.QueryRow(ctx, `SELECT id FROM products WHERE id = $1 FOR UPDATE`, productID).Scan(&id)
	return translate(err)
}

// DecrementBatch is a guarded update: it touches nothing when the batch holds
// less than qty.
func (t *tx) DecrementBatch(ctx context.Context, batchID string, qty decimal.Decimal) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE batches SET remaining_quantity = remaining_quantity - $2
		WHERE id = $1 AND remaining_quantity >= $2`, batchID, qty)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		var remaining decimal.Decimal
		if err := t.q.QueryRow(ctx, `SELECT remaining_quantity FROM batches WHERE id = $1`, batchID).Scan(&remaining); err != nil {
			return translate(err)
		}
		return fmt.Errorf("batch %s has %s remaining, cannot take %s", batchID, remaining, qty)
	}
	return nil
}

package postgres

import (
	"context"
	"fmt"

	"github.com/TworzymyMarzenia3d/front-crm/internal/orders"
	"github.com/jackc/pgx/v5"
)

func (t *tx) InsertClient(ctx context.Context, c *orders.Client) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO clients(id, name, nip, address, phone, email, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.Name, c.NIP, c.Address, c.Phone, c.Email, c.Notes, c.CreatedAt, c.UpdatedAt)
	return translate(err)
}

const clientCols = `id, name, nip, address, phone, email, notes, created_at, updated_at`

func scanClient(row pgx.Row) (*orders.Client, error) {
	var c orders.Client
	if err := row.Scan(&c.ID, &c.Name, &c.NIP, &c.Address, &c.Phone, &c.Email, &c.Notes, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (t *tx) GetClient(ctx context.Context, id string) (*orders.Client, error) {
	return scanClient(t.q.QueryRow(ctx, `SELECT `+clientCols+` FROM clients WHERE id = $1`, id))
}

func (t *tx) ListClients(ctx context.Context) ([]orders.Client, error) {
	rows, err := t.q.Query(ctx, `SELECT `+clientCols+` FROM clients ORDER BY name, id`)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []orders.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, translate(rows.Err())
}

func (t *tx) UpdateClient(ctx context.Context, c *orders.Client) error {
	err := t.q.QueryRow(ctx, `
		UPDATE clients
		SET name = $2, nip = $3, address = $4, phone = $5, email = $6, notes = $7, updated_at = $8
		WHERE id = $1
		RETURNING created_at`,
		c.ID, c.Name, c.NIP, c.Address, c.Phone, c.Email, c.Notes, c.UpdatedAt).Scan(&c.CreatedAt)
	if err != nil {
		return fmt.Errorf("client %s: %w", c.ID, translate(err))
	}
	return nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/TworzymyMarzenia3d/front-crm/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store runs units of work as Postgres transactions. Writers use READ
// COMMITTED plus explicit row locks; readers get a read-only REPEATABLE READ
// snapshot.
type Store struct{ DB *pgxpool.Pool }

func NewStore(db *pgxpool.Pool) *Store { return &Store{DB: db} }

var _ orders.Store = (*Store)(nil)

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	err := pgx.BeginTxFunc(ctx, s.DB, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(t pgx.Tx) error {
		return fn(ctx, &tx{q: t})
	})
	return translate(err)
}

func (s *Store) View(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	err := pgx.BeginTxFunc(ctx, s.DB, opts, func(t pgx.Tx) error {
		return fn(ctx, &tx{q: t})
	})
	return translate(err)
}

type tx struct{ q pgx.Tx }

var _ orders.Tx = (*tx)(nil)

// Postgres error codes the store turns into domain errors.
const (
	codeLockNotAvailable   = "55P03"
	codeExclusionViolation = "23P01"
	codeForeignKey         = "23503"
	codeCheckViolation     = "23514"
	codeInvalidText        = "22P02"
	codeSerialization      = "40001"
	codeDeadlock           = "40P01"
)

// translate maps driver errors onto the orders error taxonomy. Errors that
// already carry a domain sentinel pass through untouched.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %v", orders.ErrNotFound, err)
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeLockNotAvailable, codeSerialization, codeDeadlock:
		return fmt.Errorf("%w: %s", orders.ErrBusy, pgErr.Message)
	case codeExclusionViolation:
		return fmt.Errorf("%w: %s", orders.ErrOverlap, pgErr.Message)
	case codeForeignKey:
		return fmt.Errorf("%w: %s (%s)", orders.ErrNotFound, pgErr.Message, pgErr.ConstraintName)
	case codeInvalidText:
		// Malformed ids never match a row.
		return fmt.Errorf("%w: %s", orders.ErrNotFound, pgErr.Message)
	case codeCheckViolation:
		return fmt.Errorf("%w: %s (%s)", orders.ErrValidation, pgErr.Message, pgErr.ConstraintName)
	}
	return err
}

func lockClause(m orders.LockMode) string {
	switch m {
	case orders.LockShare:
		return " FOR SHARE"
	case orders.LockExclusive:
		return " FOR UPDATE NOWAIT"
	}
	return ""
}

// Package store holds the Postgres plumbing shared by the repositories:
// pool construction, embedded migrations, and a transaction helper.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/verimarket/backend/internal/models"
)

// TxBeginner abstracts transaction creation so services and tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// WithTx begins a transaction, runs fn, and commits on success or rolls back
// on error/panic. Panics are rethrown.
func WithTx(ctx context.Context, db TxBeginner, fn func(tx pgx.Tx) error) (err error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w: %w", models.ErrUnavailable, err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if cerr := tx.Commit(ctx); cerr != nil {
			err = Wrap(cerr, "commit tx")
		}
	}()
	return fn(tx)
}

// Wrap annotates a driver error with op and maps it onto the model error kinds:
// no rows becomes ErrNotFound, connection-level failures become ErrUnavailable.
func Wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return fmt.Errorf("%s: %w: %w", op, models.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

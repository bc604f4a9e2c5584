package memstore

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var errNoSQL = errors.New("memstore: SQL is not supported")

// memTx satisfies pgx.Tx so services can pass it through unchanged. Only
// Commit and Rollback do anything.
type memTx struct {
	store    *Store
	snapshot data
	done     bool
}

var _ pgx.Tx = (*memTx)(nil)

func (t *memTx) Commit(context.Context) error {
	if t.done {
		return errTxDone
	}
	t.done = true
	t.store.txMu.Unlock()
	return nil
}

// Rollback restores the state captured at Begin. It is a no-op after Commit.
func (t *memTx) Rollback(context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.mu.Lock()
	t.store.data = t.snapshot
	t.store.mu.Unlock()
	t.store.txMu.Unlock()
	return nil
}

func (t *memTx) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("memstore: nested transactions are not supported")
}

func (t *memTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), errNoSQL
}
func (t *memTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, errNoSQL }
func (t *memTx) QueryRow(context.Context, string, ...any) pgx.Row        { return errRow{} }
func (t *memTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, errNoSQL
}
func (t *memTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (t *memTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (t *memTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, errNoSQL
}
func (t *memTx) Conn() *pgx.Conn { return nil }

type errRow struct{}

func (errRow) Scan(...any) error { return errNoSQL }

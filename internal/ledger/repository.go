package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verimarket/backend/internal/models"
	"github.com/verimarket/backend/internal/store"
)

// Store is the persistence surface the ledger needs. Mutating methods run in
// the caller's transaction.
type Store interface {
	GetBalance(ctx context.Context, accountID uuid.UUID) (int64, error)
	DeductBalance(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amountCents int64) (newBalance int64, err error)
	AddBalance(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amountCents int64) (newBalance int64, err error)
	InsertEntry(ctx context.Context, tx pgx.Tx, e *models.LedgerEntry) error
	ListEntries(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.LedgerEntry, error)
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

func (r *Repository) GetBalance(ctx context.Context, accountID uuid.UUID) (int64, error) {
	var balance int64
	err := r.pool.QueryRow(ctx, `SELECT balance_cents FROM accounts WHERE id = $1`, accountID).Scan(&balance)
	if err != nil {
		return 0, store.Wrap(err, "get balance")
	}
	return balance, nil
}

// DeductBalance atomically deducts amountCents if the balance covers it. A
// missing row is disambiguated into ErrNotFound or ErrInsufficientFunds.
func (r *Repository) DeductBalance(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amountCents int64) (int64, error) {
	var newBalance int64
	err := tx.QueryRow(ctx, `
		UPDATE accounts SET balance_cents = balance_cents - $1, updated_at = now()
		WHERE id = $2 AND balance_cents >= $1
		RETURNING balance_cents
	`, amountCents, accountID).Scan(&newBalance)
	if err == nil {
		return newBalance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, store.Wrap(err, "deduct balance")
	}

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, accountID).Scan(&exists); err != nil {
		return 0, store.Wrap(err, "deduct balance")
	}
	if !exists {
		return 0, fmt.Errorf("account %s: %w", accountID, models.ErrNotFound)
	}
	return 0, fmt.Errorf("account %s: %w", accountID, models.ErrInsufficientFunds)
}

func (r *Repository) AddBalance(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amountCents int64) (int64, error) {
	var newBalance int64
	err := tx.QueryRow(ctx, `
		UPDATE accounts SET balance_cents = balance_cents + $1, updated_at = now()
		WHERE id = $2
		RETURNING balance_cents
	`, amountCents, accountID).Scan(&newBalance)
	if err != nil {
		return 0, store.Wrap(err, fmt.Sprintf("add balance to account %s", accountID))
	}
	return newBalance, nil
}

func (r *Repository) InsertEntry(ctx context.Context, tx pgx.Tx, e *models.LedgerEntry) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO ledger_entries (id, account_id, job_id, entry_type, amount_cents, balance_after_cents)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, e.ID, e.AccountID, e.JobID, e.EntryType, e.AmountCents, e.BalanceAfterCents).Scan(&e.CreatedAt)
	return store.Wrap(err, "insert ledger entry")
}

// ListEntries returns the newest entries first.
func (r *Repository) ListEntries(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, account_id, job_id, entry_type, amount_cents, balance_after_cents, created_at
		FROM ledger_entries WHERE account_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`, accountID, limit)
	if err != nil {
		return nil, store.Wrap(err, "list ledger entries")
	}
	defer rows.Close()
	list := []*models.LedgerEntry{}
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.JobID, &e.EntryType, &e.AmountCents, &e.BalanceAfterCents, &e.CreatedAt); err != nil {
			return nil, store.Wrap(err, "scan ledger entry")
		}
		list = append(list, &e)
	}
	return list, store.Wrap(rows.Err(), "list ledger entries")
}

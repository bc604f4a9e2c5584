// Package ledger owns account balances. Debit and Credit run inside the
// caller's transaction and journal every movement as a ledger entry.
package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/verimarket/backend/internal/models"
	"github.com/verimarket/backend/internal/store"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

type Service interface {
	Debit(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, jobID *uuid.UUID, entryType string, amountCents int64) (int64, error)
	Credit(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, jobID *uuid.UUID, entryType string, amountCents int64) (int64, error)
	BalanceOf(ctx context.Context, accountID uuid.UUID) (int64, error)
	Deposit(ctx context.Context, accountID uuid.UUID, amountCents int64) (*models.LedgerEntry, error)
	History(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.LedgerEntry, error)
}

type service struct {
	db     store.TxBeginner
	store  Store
	logger *slog.Logger
}

func NewService(db store.TxBeginner, st Store, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &service{db: db, store: st, logger: logger}
}

var _ Service = (*service)(nil)

// Debit deducts amountCents and journals it. Nothing changes when the balance
// does not cover the amount.
func (s *service) Debit(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, jobID *uuid.UUID, entryType string, amountCents int64) (int64, error) {
	if amountCents <= 0 {
		return 0, fmt.Errorf("%w: debit amount must be positive, got %d", models.ErrInvalidInput, amountCents)
	}
	newBalance, err := s.store.DeductBalance(ctx, tx, accountID, amountCents)
	if err != nil {
		return 0, err
	}
	if err := s.journal(ctx, tx, accountID, jobID, entryType, amountCents, newBalance); err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (s *service) Credit(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, jobID *uuid.UUID, entryType string, amountCents int64) (int64, error) {
	if amountCents <= 0 {
		return 0, fmt.Errorf("%w: credit amount must be positive, got %d", models.ErrInvalidInput, amountCents)
	}
	newBalance, err := s.store.AddBalance(ctx, tx, accountID, amountCents)
	if err != nil {
		return 0, err
	}
	if err := s.journal(ctx, tx, accountID, jobID, entryType, amountCents, newBalance); err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (s *service) journal(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, jobID *uuid.UUID, entryType string, amountCents, balanceAfter int64) error {
	return s.store.InsertEntry(ctx, tx, &models.LedgerEntry{
		ID:                uuid.New(),
		AccountID:         accountID,
		JobID:             jobID,
		EntryType:         entryType,
		AmountCents:       amountCents,
		BalanceAfterCents: balanceAfter,
	})
}

// BalanceOf reads without locking; the value may be stale by the time it is used.
func (s *service) BalanceOf(ctx context.Context, accountID uuid.UUID) (int64, error) {
	return s.store.GetBalance(ctx, accountID)
}

// Deposit credits an account in its own transaction. It is the only way
// money enters the system.
func (s *service) Deposit(ctx context.Context, accountID uuid.UUID, amountCents int64) (*models.LedgerEntry, error) {
	if amountCents <= 0 || amountCents > models.MaxAmountCents {
		return nil, fmt.Errorf("%w: deposit amount must be between 1 and %d cents, got %d", models.ErrInvalidInput, models.MaxAmountCents, amountCents)
	}
	entry := &models.LedgerEntry{
		ID:          uuid.New(),
		AccountID:   accountID,
		EntryType:   models.LedgerEntryDeposit,
		AmountCents: amountCents,
	}
	err := store.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		newBalance, err := s.store.AddBalance(ctx, tx, accountID, amountCents)
		if err != nil {
			return err
		}
		entry.BalanceAfterCents = newBalance
		return s.store.InsertEntry(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("deposit recorded", "account_id", accountID, "amount_cents", amountCents, "balance_cents", entry.BalanceAfterCents)
	return entry, nil
}

// History returns the account's journal, newest first.
func (s *service) History(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.LedgerEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.store.ListEntries(ctx, accountID, limit)
}

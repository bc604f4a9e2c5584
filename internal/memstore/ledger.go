package memstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/verimarket/backend/internal/models"
)

type LedgerStore struct{ s *Store }

func (r *LedgerStore) GetBalance(_ context.Context, accountID uuid.UUID) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.data.accounts[accountID]
	if !ok {
		return 0, notFound("account", accountID)
	}
	return a.BalanceCents, nil
}

func (r *LedgerStore) DeductBalance(_ context.Context, _ pgx.Tx, accountID uuid.UUID, amountCents int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.data.accounts[accountID]
	if !ok {
		return 0, notFound("account", accountID)
	}
	if a.BalanceCents < amountCents {
		return 0, fmt.Errorf("account %s: %w", accountID, models.ErrInsufficientFunds)
	}
	a.BalanceCents -= amountCents
	a.UpdatedAt = time.Now().UTC()
	r.s.data.accounts[accountID] = a
	return a.BalanceCents, nil
}

func (r *LedgerStore) AddBalance(_ context.Context, _ pgx.Tx, accountID uuid.UUID, amountCents int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(OpAddBalance); err != nil {
		return 0, err
	}
	a, ok := r.s.data.accounts[accountID]
	if !ok {
		return 0, notFound("account", accountID)
	}
	a.BalanceCents += amountCents
	a.UpdatedAt = time.Now().UTC()
	r.s.data.accounts[accountID] = a
	return a.BalanceCents, nil
}

func (r *LedgerStore) InsertEntry(_ context.Context, _ pgx.Tx, e *models.LedgerEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(OpLedgerEntry); err != nil {
		return err
	}
	e.CreatedAt = time.Now().UTC()
	cp := *e
	if e.JobID != nil {
		id := *e.JobID
		cp.JobID = &id
	}
	r.s.data.entries = append(r.s.data.entries, cp)
	return nil
}

// ListEntries returns the newest entries first.
func (r *LedgerStore) ListEntries(_ context.Context, accountID uuid.UUID, limit int) ([]*models.LedgerEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	list := []*models.LedgerEntry{}
	for i := len(r.s.data.entries) - 1; i >= 0 && len(list) < limit; i-- {
		e := r.s.data.entries[i]
		if e.AccountID == accountID {
			list = append(list, &e)
		}
	}
	return list, nil
}

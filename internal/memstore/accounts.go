package memstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verimarket/backend/internal/models"
)

type AccountStore struct{ s *Store }

func (r *AccountStore) Create(_ context.Context, a *models.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.data.accounts {
		if strings.EqualFold(existing.Email, a.Email) {
			return fmt.Errorf("email %s: %w", a.Email, models.ErrConflict)
		}
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	r.s.data.accounts[a.ID] = *a
	return nil
}

func (r *AccountStore) GetByID(_ context.Context, id uuid.UUID) (*models.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.data.accounts[id]
	if !ok {
		return nil, notFound("account", id)
	}
	return &a, nil
}

func (r *AccountStore) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, a := range r.s.data.accounts {
		if strings.EqualFold(a.Email, email) {
			return &a, nil
		}
	}
	return nil, notFound("account", email)
}

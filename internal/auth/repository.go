package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verimarket/backend/internal/models"
	"github.com/verimarket/backend/internal/store"
)

// Store persists accounts. Balances are read here but only the ledger writes them.
type Store interface {
	Create(ctx context.Context, a *models.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

const accountColumns = `id, email, display_name, role, password_hash, balance_cents, created_at, updated_at`

// Create inserts a new account with a zero balance.
func (r *Repository) Create(ctx context.Context, a *models.Account) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO accounts (email, display_name, role, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING id, balance_cents, created_at, updated_at
	`, a.Email, a.DisplayName, a.Role, a.PasswordHash).Scan(&a.ID, &a.BalanceCents, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("email %s: %w", a.Email, models.ErrConflict)
		}
		return store.Wrap(err, "create account")
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var a models.Account
	err := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id).
		Scan(&a.ID, &a.Email, &a.DisplayName, &a.Role, &a.PasswordHash, &a.BalanceCents, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, store.Wrap(err, "get account "+id.String())
	}
	return &a, nil
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	var a models.Account
	err := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email).
		Scan(&a.ID, &a.Email, &a.DisplayName, &a.Role, &a.PasswordHash, &a.BalanceCents, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, store.Wrap(err, "get account by email")
	}
	return &a, nil
}

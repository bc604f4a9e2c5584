package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verimarket/backend/internal/models"
	"github.com/verimarket/backend/internal/store"
)

// Store persists jobs. Methods taking a tx run inside the caller's transaction.
type Store interface {
	Create(ctx context.Context, tx pgx.Tx, j *models.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Job, error)
	Update(ctx context.Context, tx pgx.Tx, j *models.Job) error
	ListOpen(ctx context.Context, skill string, limit int) ([]*models.Job, error)
	ListByProvider(ctx context.Context, providerID uuid.UUID, limit int) ([]*models.Job, error)
	ListExpirable(ctx context.Context, now time.Time, after *models.ExpiryKey, limit int) ([]models.ExpiryKey, error)
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

const jobColumns = `id, provider_id, title, description, budget_cents, required_skills, selected_freelancer_id,
	verifier_ids, verifier_fees, deadline, status, refund_processed, applicants,
	amount_deducted_cents, deducted_at, refunded_at, paid_out_cents, paid_out_at, created_at, updated_at`

func scanJob(row pgx.Row) (*models.Job, error) {
	var j models.Job
	err := row.Scan(&j.ID, &j.ProviderID, &j.Title, &j.Description, &j.BudgetCents, &j.RequiredSkills, &j.SelectedFreelancerID,
		&j.VerifierIDs, &j.VerifierFees, &j.Deadline, &j.Status, &j.RefundProcessed, &j.Applicants,
		&j.Payment.AmountDeductedCents, &j.Payment.DeductedAt, &j.Payment.RefundedAt, &j.Payment.PaidOutCents, &j.Payment.PaidOutAt,
		&j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// normalize replaces nil slices so NOT NULL array and jsonb columns get '{}' and '[]'.
func normalize(j *models.Job) {
	if j.RequiredSkills == nil {
		j.RequiredSkills = []string{}
	}
	if j.VerifierIDs == nil {
		j.VerifierIDs = []uuid.UUID{}
	}
	if j.VerifierFees == nil {
		j.VerifierFees = []models.VerifierFee{}
	}
	if j.Applicants == nil {
		j.Applicants = []models.Applicant{}
	}
}

func (r *Repository) Create(ctx context.Context, tx pgx.Tx, j *models.Job) error {
	normalize(j)
	err := tx.QueryRow(ctx, `
		INSERT INTO jobs (id, provider_id, title, description, budget_cents, required_skills, deadline, status, applicants)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, j.ID, j.ProviderID, j.Title, j.Description, j.BudgetCents, j.RequiredSkills, j.Deadline, j.Status, j.Applicants).
		Scan(&j.CreatedAt, &j.UpdatedAt)
	return store.Wrap(err, "create job")
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	j, err := scanJob(r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if err != nil {
		return nil, store.Wrap(err, "get job "+id.String())
	}
	return j, nil
}

// GetByIDForUpdate locks the job row. Every mutation of a job starts here.
func (r *Repository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Job, error) {
	j, err := scanJob(tx.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, store.Wrap(err, "lock job "+id.String())
	}
	return j, nil
}

// Update writes every mutable column. Call after GetByIDForUpdate in the same tx.
func (r *Repository) Update(ctx context.Context, tx pgx.Tx, j *models.Job) error {
	normalize(j)
	err := tx.QueryRow(ctx, `
		UPDATE jobs SET
			selected_freelancer_id = $2, verifier_ids = $3, verifier_fees = $4, status = $5,
			refund_processed = $6, applicants = $7, amount_deducted_cents = $8, deducted_at = $9,
			refunded_at = $10, paid_out_cents = $11, paid_out_at = $12, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, j.ID, j.SelectedFreelancerID, j.VerifierIDs, j.VerifierFees, j.Status,
		j.RefundProcessed, j.Applicants, j.Payment.AmountDeductedCents, j.Payment.DeductedAt,
		j.Payment.RefundedAt, j.Payment.PaidOutCents, j.Payment.PaidOutAt).Scan(&j.UpdatedAt)
	return store.Wrap(err, "update job "+j.ID.String())
}

// ListOpen returns open jobs newest first. An empty skill matches every job.
func (r *Repository) ListOpen(ctx context.Context, skill string, limit int) ([]*models.Job, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE status = 'open' AND ($1 = '' OR $1 = ANY(required_skills))
		ORDER BY created_at DESC
		LIMIT $2
	`, skill, limit)
	if err != nil {
		return nil, store.Wrap(err, "list open jobs")
	}
	return collectJobs(rows)
}

func (r *Repository) ListByProvider(ctx context.Context, providerID uuid.UUID, limit int) ([]*models.Job, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE provider_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, providerID, limit)
	if err != nil {
		return nil, store.Wrap(err, "list provider jobs")
	}
	return collectJobs(rows)
}

// ListExpirable returns overdue, unrefunded jobs that still hold escrow,
// ordered by (deadline, id) and starting strictly after the given key.
func (r *Repository) ListExpirable(ctx context.Context, now time.Time, after *models.ExpiryKey, limit int) ([]models.ExpiryKey, error) {
	query := `
		SELECT id, deadline FROM jobs
		WHERE deadline < $1 AND status IN ('assigned', 'in_progress') AND refund_processed = FALSE`
	args := []any{now, limit}
	if after != nil {
		query += ` AND (deadline, id) > ($3, $4)`
		args = append(args, after.Deadline, after.ID)
	}
	query += `
		ORDER BY deadline, id
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, store.Wrap(err, "list expirable jobs")
	}
	keys, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ExpiryKey, error) {
		var k models.ExpiryKey
		err := row.Scan(&k.ID, &k.Deadline)
		return k, err
	})
	if err != nil {
		return nil, store.Wrap(err, "scan expirable jobs")
	}
	return keys, nil
}

func collectJobs(rows pgx.Rows) ([]*models.Job, error) {
	defer rows.Close()
	list := []*models.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, store.Wrap(err, "scan job")
		}
		list = append(list, j)
	}
	return list, store.Wrap(rows.Err(), "list jobs")
}

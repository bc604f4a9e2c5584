package submissions

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verimarket/backend/internal/models"
	"github.com/verimarket/backend/internal/store"
)

// Store persists submissions. Methods taking a tx run inside the caller's transaction.
type Store interface {
	Create(ctx context.Context, tx pgx.Tx, sub *models.Submission) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Submission, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Submission, error)
	Update(ctx context.Context, tx pgx.Tx, sub *models.Submission) error
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]*models.Submission, error)
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

const submissionColumns = `id, job_id, freelancer_id, text, images, verifications, status, created_at, updated_at`

func scanSubmission(row pgx.Row) (*models.Submission, error) {
	var s models.Submission
	if err := row.Scan(&s.ID, &s.JobID, &s.FreelancerID, &s.Text, &s.Images, &s.Verifications,
		&s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repository) Create(ctx context.Context, tx pgx.Tx, sub *models.Submission) error {
	if sub.Images == nil {
		sub.Images = []string{}
	}
	if sub.Verifications == nil {
		sub.Verifications = []models.Verification{}
	}
	err := tx.QueryRow(ctx, `
		INSERT INTO submissions (id, job_id, freelancer_id, text, images, verifications, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, sub.ID, sub.JobID, sub.FreelancerID, sub.Text, sub.Images, sub.Verifications, sub.Status).
		Scan(&sub.CreatedAt, &sub.UpdatedAt)
	return store.Wrap(err, "create submission")
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Submission, error) {
	s, err := scanSubmission(r.pool.QueryRow(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id))
	if err != nil {
		return nil, store.Wrap(err, "get submission "+id.String())
	}
	return s, nil
}

// GetByIDForUpdate locks the submission row. Lock the owning job first.
func (r *Repository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Submission, error) {
	s, err := scanSubmission(tx.QueryRow(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, store.Wrap(err, "lock submission "+id.String())
	}
	return s, nil
}

func (r *Repository) Update(ctx context.Context, tx pgx.Tx, sub *models.Submission) error {
	err := tx.QueryRow(ctx, `
		UPDATE submissions SET verifications = $2, status = $3, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, sub.ID, sub.Verifications, sub.Status).Scan(&sub.UpdatedAt)
	return store.Wrap(err, "update submission "+sub.ID.String())
}

// ListByJob returns a job's submissions oldest first.
func (r *Repository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*models.Submission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+submissionColumns+` FROM submissions
		WHERE job_id = $1
		ORDER BY created_at, id
	`, jobID)
	if err != nil {
		return nil, store.Wrap(err, "list submissions")
	}
	defer rows.Close()
	list := []*models.Submission{}
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, store.Wrap(err, "scan submission")
		}
		list = append(list, s)
	}
	return list, store.Wrap(rows.Err(), "list submissions")
}

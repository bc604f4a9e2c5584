package memstore

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/verimarket/backend/internal/models"
)

type SubmissionStore struct{ s *Store }

func (r *SubmissionStore) Create(_ context.Context, _ pgx.Tx, sub *models.Submission) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(OpSubmissionCreate); err != nil {
		return err
	}
	if _, ok := r.s.data.submissions[sub.ID]; ok {
		return fmt.Errorf("submission %s: %w", sub.ID, models.ErrConflict)
	}
	r.s.data.submissions[sub.ID] = cloneSubmission(*sub)
	r.s.data.subOrder = append(r.s.data.subOrder, sub.ID)
	return nil
}

func (r *SubmissionStore) GetByID(_ context.Context, id uuid.UUID) (*models.Submission, error) {
	return r.get(id)
}

func (r *SubmissionStore) GetByIDForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (*models.Submission, error) {
	return r.get(id)
}

func (r *SubmissionStore) get(id uuid.UUID) (*models.Submission, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sub, ok := r.s.data.submissions[id]
	if !ok {
		return nil, notFound("submission", id)
	}
	cp := cloneSubmission(sub)
	return &cp, nil
}

func (r *SubmissionStore) Update(_ context.Context, _ pgx.Tx, sub *models.Submission) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(OpSubmissionUpdate); err != nil {
		return err
	}
	if _, ok := r.s.data.submissions[sub.ID]; !ok {
		return notFound("submission", sub.ID)
	}
	sub.UpdatedAt = time.Now().UTC()
	r.s.data.submissions[sub.ID] = cloneSubmission(*sub)
	return nil
}

// ListByJob returns a job's submissions oldest first.
func (r *SubmissionStore) ListByJob(_ context.Context, jobID uuid.UUID) ([]*models.Submission, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	list := []*models.Submission{}
	for _, id := range r.s.data.subOrder {
		sub := r.s.data.submissions[id]
		if sub.JobID == jobID {
			cp := cloneSubmission(sub)
			list = append(list, &cp)
		}
	}
	return list, nil
}

func cloneSubmission(s models.Submission) models.Submission {
	s.Images = slices.Clone(s.Images)
	s.Verifications = slices.Clone(s.Verifications)
	return s
}

package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/verimarket/backend/internal/models"
)

type JobStore struct{ s *Store }

func (r *JobStore) Create(_ context.Context, _ pgx.Tx, j *models.Job) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.jobs[j.ID]; ok {
		return fmt.Errorf("job %s: %w", j.ID, models.ErrConflict)
	}
	now := time.Now().UTC()
	j.CreatedAt, j.UpdatedAt = now, now
	r.s.data.jobs[j.ID] = cloneJob(*j)
	r.s.data.jobOrder = append(r.s.data.jobOrder, j.ID)
	return nil
}

func (r *JobStore) GetByID(_ context.Context, id uuid.UUID) (*models.Job, error) {
	return r.get(id)
}

// GetByIDForUpdate needs no row lock here: the open transaction already
// excludes every other writer.
func (r *JobStore) GetByIDForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (*models.Job, error) {
	return r.get(id)
}

func (r *JobStore) get(id uuid.UUID) (*models.Job, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	j, ok := r.s.data.jobs[id]
	if !ok {
		return nil, notFound("job", id)
	}
	cp := cloneJob(j)
	return &cp, nil
}

func (r *JobStore) Update(_ context.Context, _ pgx.Tx, j *models.Job) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure(OpJobUpdate); err != nil {
		return err
	}
	if _, ok := r.s.data.jobs[j.ID]; !ok {
		return notFound("job", j.ID)
	}
	j.UpdatedAt = time.Now().UTC()
	r.s.data.jobs[j.ID] = cloneJob(*j)
	return nil
}

// ListOpen returns open jobs newest first, optionally filtered by a required skill.
func (r *JobStore) ListOpen(_ context.Context, skill string, limit int) ([]*models.Job, error) {
	return r.newestFirst(limit, func(j *models.Job) bool {
		return j.Status == models.JobStatusOpen && (skill == "" || slices.Contains(j.RequiredSkills, skill))
	}), nil
}

func (r *JobStore) ListByProvider(_ context.Context, providerID uuid.UUID, limit int) ([]*models.Job, error) {
	return r.newestFirst(limit, func(j *models.Job) bool {
		return j.ProviderID == providerID
	}), nil
}

func (r *JobStore) newestFirst(limit int, keep func(*models.Job) bool) []*models.Job {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	list := []*models.Job{}
	for i := len(r.s.data.jobOrder) - 1; i >= 0 && len(list) < limit; i-- {
		j := cloneJob(r.s.data.jobs[r.s.data.jobOrder[i]])
		if keep(&j) {
			list = append(list, &j)
		}
	}
	return list
}

// ListExpirable returns unrefunded assigned or in-progress jobs whose
// deadline is before now, ordered by (deadline, id) and starting after the
// given key.
func (r *JobStore) ListExpirable(_ context.Context, now time.Time, after *models.ExpiryKey, limit int) ([]models.ExpiryKey, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var due []models.ExpiryKey
	for _, j := range r.s.data.jobs {
		if j.RefundProcessed || j.Deadline == nil || !j.Deadline.Before(now) {
			continue
		}
		if j.Status != models.JobStatusAssigned && j.Status != models.JobStatusInProgress {
			continue
		}
		k := models.ExpiryKey{ID: j.ID, Deadline: *j.Deadline}
		if after != nil && !k.After(*after) {
			continue
		}
		due = append(due, k)
	}
	sort.Slice(due, func(a, b int) bool { return due[b].After(due[a]) })
	if len(due) > limit {
		due = due[:limit]
	}
	if due == nil {
		due = []models.ExpiryKey{}
	}
	return due, nil
}

func cloneJob(j models.Job) models.Job {
	j.RequiredSkills = slices.Clone(j.RequiredSkills)
	j.VerifierIDs = slices.Clone(j.VerifierIDs)
	j.VerifierFees = slices.Clone(j.VerifierFees)
	j.Applicants = slices.Clone(j.Applicants)
	j.SelectedFreelancerID = clonePtr(j.SelectedFreelancerID)
	j.Deadline = clonePtr(j.Deadline)
	j.Payment.DeductedAt = clonePtr(j.Payment.DeductedAt)
	j.Payment.RefundedAt = clonePtr(j.Payment.RefundedAt)
	j.Payment.PaidOutAt = clonePtr(j.Payment.PaidOutAt)
	return j
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

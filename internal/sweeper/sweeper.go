// Package sweeper expires overdue jobs and refunds their escrow. It runs as a
// periodic River job; each job is expired in its own transaction under the
// job row lock, so sweeps may overlap with each other and with requests.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/verimarket/backend/internal/models"
)

// Expirer is the part of the job lifecycle the sweeper drives.
type Expirer interface {
	ListExpirable(ctx context.Context, after *models.ExpiryKey, limit int) ([]models.ExpiryKey, error)
	ForceExpire(ctx context.Context, jobID uuid.UUID) (*models.Job, error)
}

// Result summarizes one sweep.
type Result struct {
	Expired       int
	Skipped       int
	Failed        int
	RefundedCents int64
}

type Sweeper struct {
	jobs        Expirer
	batchSize   int
	concurrency int64
	log         *slog.Logger
}

func New(jobs Expirer, batchSize, concurrency int, log *slog.Logger) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Sweeper{jobs: jobs, batchSize: batchSize, concurrency: int64(concurrency), log: log}
}

// Sweep expires every overdue job, one page at a time in (deadline, id)
// order. Each job is attempted once per sweep: the cursor moves past failed
// jobs too, so they never hide later ones. Jobs another caller already
// completed or expired are skipped. Other failures are collected and returned
// together once the scan is done; the next sweep starts from the top again.
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	var (
		res   Result
		errs  []error
		after *models.ExpiryKey
	)
	for {
		keys, err := s.jobs.ListExpirable(ctx, after, s.batchSize)
		if err != nil {
			errs = append(errs, fmt.Errorf("list expirable jobs: %w", err))
			break
		}
		if len(keys) == 0 {
			break
		}
		ids := make([]uuid.UUID, len(keys))
		for i, k := range keys {
			ids[i] = k.ID
		}

		batch, batchErrs := s.expireBatch(ctx, ids)
		res.Expired += batch.Expired
		res.Skipped += batch.Skipped
		res.Failed += batch.Failed
		res.RefundedCents += batch.RefundedCents
		errs = append(errs, batchErrs...)

		last := keys[len(keys)-1]
		after = &last
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
	}

	s.log.Info("sweep finished",
		"expired", res.Expired,
		"skipped", res.Skipped,
		"failed", res.Failed,
		"refunded_cents", res.RefundedCents,
	)
	return res, errors.Join(errs...)
}

func (s *Sweeper) expireBatch(ctx context.Context, ids []uuid.UUID) (Result, []error) {
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		res  Result
		errs []error
	)
	sem := semaphore.NewWeighted(s.concurrency)
	for _, id := range ids {
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			break
		}
		wg.Add(1)
		go func(id uuid.UUID) {
			defer sem.Release(1)
			defer wg.Done()

			job, err := s.jobs.ForceExpire(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				res.Expired++
				if job != nil {
					res.RefundedCents += job.Payment.AmountDeductedCents
				}
			case errors.Is(err, models.ErrAlreadyProcessed), errors.Is(err, models.ErrInvalidStateTransition):
				res.Skipped++
				s.log.Info("sweep skipped job", "job_id", id, "reason", err)
			default:
				res.Failed++
				errs = append(errs, fmt.Errorf("expire job %s: %w", id, err))
				s.log.Error("sweep failed to expire job", "job_id", id, "error", err)
			}
		}(id)
	}
	wg.Wait()
	return res, errs
}

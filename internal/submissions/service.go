// Package submissions implements work submission and multi-verifier
// approval. A unanimous approval releases the freelancer's price from escrow
// in the same transaction that completes the job.
package submissions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/verimarket/backend/internal/images"
	"github.com/verimarket/backend/internal/models"
	"github.com/verimarket/backend/internal/store"
)

type SubmitInput struct {
	Text   string
	Images []string
}

type VerifyInput struct {
	Approved bool
	Comments string
}

// VerifyResult reports the submission after the verdict and, when the verdict
// completed the consensus, the amount released to the freelancer.
type VerifyResult struct {
	Submission   *models.Submission `json:"submission"`
	JobStatus    models.JobStatus   `json:"job_status"`
	PaidOut      bool               `json:"paid_out"`
	PaidOutCents int64              `json:"paid_out_cents,omitempty"`
}

type Service interface {
	Submit(ctx context.Context, jobID, freelancerID uuid.UUID, in SubmitInput) (*models.Submission, error)
	CheckSubmitter(ctx context.Context, jobID, freelancerID uuid.UUID) error
	Verify(ctx context.Context, submissionID, verifierID uuid.UUID, in VerifyInput) (*VerifyResult, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Submission, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]*models.Submission, error)
}

// Jobs is the slice of job storage the engine needs. Jobs are always locked
// before their submissions.
type Jobs interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Job, error)
	Update(ctx context.Context, tx pgx.Tx, j *models.Job) error
}

type Ledger interface {
	Credit(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, jobID *uuid.UUID, entryType string, amountCents int64) (int64, error)
}

type service struct {
	db     store.TxBeginner
	subs   Store
	jobs   Jobs
	ledger Ledger
	log    *slog.Logger
	now    func() time.Time
}

type Option func(*service)

func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

func NewService(db store.TxBeginner, subs Store, jobs Jobs, ledger Ledger, log *slog.Logger, opts ...Option) Service {
	if log == nil {
		log = slog.Default()
	}
	s := &service{db: db, subs: subs, jobs: jobs, ledger: ledger, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Service = (*service)(nil)

// Submit records the selected freelancer's work and moves the job to
// in_progress. The submission carries one pending entry per job verifier.
func (s *service) Submit(ctx context.Context, jobID, freelancerID uuid.UUID, in SubmitInput) (*models.Submission, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: submission text is required", models.ErrInvalidInput)
	}
	for _, key := range in.Images {
		if !images.KeyBelongsToJob(key, jobID) {
			return nil, fmt.Errorf("%w: image %q was not uploaded for job %s", models.ErrInvalidInput, key, jobID)
		}
	}

	var sub *models.Submission
	err := store.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		job, err := s.jobs.GetByIDForUpdate(ctx, tx, jobID)
		if err != nil {
			return err
		}
		if err := canSubmit(job, freelancerID); err != nil {
			return err
		}

		sub = models.NewSubmission(job, freelancerID, text, in.Images, s.now().UTC())
		if err := job.StartProgress(); err != nil {
			return err
		}
		if err := s.subs.Create(ctx, tx, sub); err != nil {
			return err
		}
		return s.jobs.Update(ctx, tx, job)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("work submitted", "job_id", jobID, "submission_id", sub.ID, "verifiers", len(sub.Verifications))
	return sub, nil
}

// CheckSubmitter reports whether freelancerID may currently submit work for
// the job. It reads without locking; Submit re-checks under the job lock.
func (s *service) CheckSubmitter(ctx context.Context, jobID, freelancerID uuid.UUID) error {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	return canSubmit(job, freelancerID)
}

func canSubmit(job *models.Job, freelancerID uuid.UUID) error {
	if !job.IsSelectedFreelancer(freelancerID) {
		return fmt.Errorf("%w: account %s is not the selected freelancer of job %s", models.ErrUnauthorized, freelancerID, job.ID)
	}
	if job.Status != models.JobStatusAssigned && job.Status != models.JobStatusInProgress {
		return fmt.Errorf("%w: job %s is %s", models.ErrInvalidStateTransition, job.ID, job.Status)
	}
	return nil
}

// Verify records a verifier's verdict. When every entry is approved the
// submission is approved, the freelancer is credited the agreed price and the
// job completes, all in one transaction.
func (s *service) Verify(ctx context.Context, submissionID, verifierID uuid.UUID, in VerifyInput) (*VerifyResult, error) {
	// Unlocked read to learn the job id so the job row can be locked first.
	peek, err := s.subs.GetByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	res := &VerifyResult{}
	err = store.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		job, err := s.jobs.GetByIDForUpdate(ctx, tx, peek.JobID)
		if err != nil {
			return err
		}
		switch job.Status {
		case models.JobStatusCompleted:
			return fmt.Errorf("%w: job %s is already completed", models.ErrAlreadyProcessed, job.ID)
		case models.JobStatusExpired:
			return fmt.Errorf("%w: job %s expired and was refunded", models.ErrInvalidStateTransition, job.ID)
		}

		sub, err := s.subs.GetByIDForUpdate(ctx, tx, submissionID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		if err := sub.RecordVerdict(verifierID, in.Approved, strings.TrimSpace(in.Comments), now); err != nil {
			return err
		}
		res.Submission = sub
		res.JobStatus = job.Status

		if sub.Unanimous() {
			paid, err := s.payout(ctx, tx, job, sub, now)
			if err != nil {
				return err
			}
			res.PaidOut = true
			res.PaidOutCents = paid
			res.JobStatus = job.Status
		}
		return s.subs.Update(ctx, tx, sub)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("verdict recorded",
		"submission_id", submissionID,
		"verifier_id", verifierID,
		"approved", in.Approved,
	)
	if res.PaidOut {
		s.log.Info("escrow released",
			"job_id", peek.JobID,
			"submission_id", submissionID,
			"freelancer_id", peek.FreelancerID,
			"amount_cents", res.PaidOutCents,
		)
	}
	return res, nil
}

// payout is the only path that releases escrow to a freelancer. Caller holds
// the job and submission locks.
func (s *service) payout(ctx context.Context, tx pgx.Tx, job *models.Job, sub *models.Submission, now time.Time) (int64, error) {
	if err := sub.Approve(now); err != nil {
		return 0, err
	}
	applicant, ok := job.Applicant(sub.FreelancerID)
	if !ok {
		return 0, fmt.Errorf("freelancer %s has no application on job %s: %w", sub.FreelancerID, job.ID, models.ErrNotFound)
	}
	if _, err := s.ledger.Credit(ctx, tx, sub.FreelancerID, &job.ID, models.LedgerEntryPayout, applicant.PriceCents); err != nil {
		return 0, err
	}
	if err := job.Complete(applicant.PriceCents, now); err != nil {
		return 0, err
	}
	if err := s.jobs.Update(ctx, tx, job); err != nil {
		return 0, err
	}
	return applicant.PriceCents, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Submission, error) {
	return s.subs.GetByID(ctx, id)
}

func (s *service) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*models.Submission, error) {
	if _, err := s.jobs.GetByID(ctx, jobID); err != nil {
		return nil, err
	}
	return s.subs.ListByJob(ctx, jobID)
}

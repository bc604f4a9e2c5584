// Package jobs implements the job lifecycle: posting, applications,
// freelancer selection with escrow, and deadline expiry with refund.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/verimarket/backend/internal/models"
	"github.com/verimarket/backend/internal/store"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type CreateJobInput struct {
	Title          string
	Description    string
	BudgetCents    int64
	RequiredSkills []string
	Deadline       *time.Time
}

type ApplyInput struct {
	PriceCents int64
	Proposal   string
}

type Service interface {
	CreateJob(ctx context.Context, providerID uuid.UUID, in CreateJobInput) (*models.Job, error)
	Apply(ctx context.Context, jobID, freelancerID uuid.UUID, in ApplyInput) (*models.Job, error)
	SelectFreelancer(ctx context.Context, jobID, providerID, freelancerID uuid.UUID, verifierIDs []uuid.UUID) (*models.Job, error)
	ForceExpire(ctx context.Context, jobID uuid.UUID) (*models.Job, error)
	GetJob(ctx context.Context, jobID uuid.UUID) (*models.Job, error)
	ListOpen(ctx context.Context, skill string, limit int) ([]*models.Job, error)
	ListByProvider(ctx context.Context, providerID uuid.UUID, limit int) ([]*models.Job, error)
	ListExpirable(ctx context.Context, after *models.ExpiryKey, limit int) ([]models.ExpiryKey, error)
}

// AccountLookup resolves actors and verifiers without locking.
type AccountLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

// Ledger is the slice of the ledger the lifecycle moves money through.
type Ledger interface {
	Debit(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, jobID *uuid.UUID, entryType string, amountCents int64) (int64, error)
	Credit(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, jobID *uuid.UUID, entryType string, amountCents int64) (int64, error)
}

type service struct {
	db       store.TxBeginner
	jobs     Store
	accounts AccountLookup
	ledger   Ledger
	log      *slog.Logger
	now      func() time.Time
}

type Option func(*service)

// WithClock overrides the time source used for deadlines and payment timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

func NewService(db store.TxBeginner, jobs Store, accounts AccountLookup, ledger Ledger, log *slog.Logger, opts ...Option) Service {
	if log == nil {
		log = slog.Default()
	}
	s := &service{db: db, jobs: jobs, accounts: accounts, ledger: ledger, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Service = (*service)(nil)

func (s *service) CreateJob(ctx context.Context, providerID uuid.UUID, in CreateJobInput) (*models.Job, error) {
	if err := s.requireRole(ctx, providerID, models.RoleProvider); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	desc := strings.TrimSpace(in.Description)
	if title == "" || desc == "" {
		return nil, fmt.Errorf("%w: title and description are required", models.ErrInvalidInput)
	}
	if err := CheckAmount("budget", in.BudgetCents); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	var deadline *time.Time
	if in.Deadline != nil {
		if !in.Deadline.After(now) {
			return nil, fmt.Errorf("%w: deadline %s is not in the future", models.ErrInvalidInput, in.Deadline.Format(time.RFC3339))
		}
		d := in.Deadline.UTC()
		deadline = &d
	}

	job := &models.Job{
		ID:             uuid.New(),
		ProviderID:     providerID,
		Title:          title,
		Description:    desc,
		BudgetCents:    in.BudgetCents,
		RequiredSkills: NormalizeSkills(in.RequiredSkills),
		VerifierIDs:    []uuid.UUID{},
		VerifierFees:   []models.VerifierFee{},
		Deadline:       deadline,
		Status:         models.JobStatusOpen,
		Applicants:     []models.Applicant{},
	}
	err := store.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		return s.jobs.Create(ctx, tx, job)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("job created", "job_id", job.ID, "provider_id", providerID, "budget_cents", job.BudgetCents)
	return job, nil
}

// NormalizeSkills lowercases and trims each skill, dropping blanks and duplicates.
func NormalizeSkills(skills []string) []string {
	out := make([]string, 0, len(skills))
	seen := make(map[string]struct{}, len(skills))
	for _, sk := range skills {
		sk = strings.ToLower(strings.TrimSpace(sk))
		if sk == "" {
			continue
		}
		if _, ok := seen[sk]; ok {
			continue
		}
		seen[sk] = struct{}{}
		out = append(out, sk)
	}
	return out
}

func (s *service) Apply(ctx context.Context, jobID, freelancerID uuid.UUID, in ApplyInput) (*models.Job, error) {
	if err := CheckAmount("price", in.PriceCents); err != nil {
		return nil, err
	}
	if err := s.requireRole(ctx, freelancerID, models.RoleFreelancer); err != nil {
		return nil, err
	}
	var job *models.Job
	err := store.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		var err error
		job, err = s.jobs.GetByIDForUpdate(ctx, tx, jobID)
		if err != nil {
			return err
		}
		if err := job.Apply(models.Applicant{
			FreelancerID: freelancerID,
			PriceCents:   in.PriceCents,
			Proposal:     strings.TrimSpace(in.Proposal),
			AppliedAt:    s.now().UTC(),
		}); err != nil {
			return err
		}
		return s.jobs.Update(ctx, tx, job)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("application received", "job_id", jobID, "freelancer_id", freelancerID, "price_cents", in.PriceCents)
	return job, nil
}

// SelectFreelancer assigns an applicant and debits the provider for the price
// plus every verifier fee. The debit and the assignment commit together.
func (s *service) SelectFreelancer(ctx context.Context, jobID, providerID, freelancerID uuid.UUID, verifierIDs []uuid.UUID) (*models.Job, error) {
	if err := s.checkVerifiers(ctx, providerID, freelancerID, verifierIDs); err != nil {
		return nil, err
	}

	var (
		job   *models.Job
		quote EscrowQuote
	)
	err := store.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		var err error
		job, err = s.jobs.GetByIDForUpdate(ctx, tx, jobID)
		if err != nil {
			return err
		}
		if job.ProviderID != providerID {
			return fmt.Errorf("%w: account %s does not own job %s", models.ErrUnauthorized, providerID, jobID)
		}
		if job.Status != models.JobStatusOpen {
			return fmt.Errorf("%w: job %s is %s, not open", models.ErrInvalidStateTransition, jobID, job.Status)
		}
		applicant, ok := job.Applicant(freelancerID)
		if !ok {
			return fmt.Errorf("freelancer %s has not applied to job %s: %w", freelancerID, jobID, models.ErrNotFound)
		}

		quote, err = Quote(applicant.PriceCents, verifierIDs)
		if err != nil {
			return err
		}
		if err := job.Assign(freelancerID, quote.Fees, quote.TotalDeduction, s.now().UTC()); err != nil {
			return err
		}
		if _, err := s.ledger.Debit(ctx, tx, providerID, &job.ID, models.LedgerEntryEscrowLock, quote.TotalDeduction); err != nil {
			return err
		}
		return s.jobs.Update(ctx, tx, job)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("freelancer selected",
		"job_id", jobID,
		"freelancer_id", freelancerID,
		"verifiers", len(verifierIDs),
		"price_cents", quote.PriceCents,
		"deducted_cents", quote.TotalDeduction,
	)
	return job, nil
}

// checkVerifiers requires a non-empty set of distinct verifier accounts that
// are neither the provider nor the freelancer.
func (s *service) checkVerifiers(ctx context.Context, providerID, freelancerID uuid.UUID, verifierIDs []uuid.UUID) error {
	if len(verifierIDs) == 0 || len(verifierIDs) > MaxVerifiers {
		return fmt.Errorf("%w: need 1 to %d verifiers, got %d", models.ErrInvalidInput, MaxVerifiers, len(verifierIDs))
	}
	seen := make(map[uuid.UUID]struct{}, len(verifierIDs))
	for _, id := range verifierIDs {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: verifier %s listed twice", models.ErrInvalidInput, id)
		}
		seen[id] = struct{}{}
		if id == providerID || id == freelancerID {
			return fmt.Errorf("%w: verifier %s is a party to the job", models.ErrInvalidInput, id)
		}
		acc, err := s.accounts.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if acc.Role != models.RoleVerifier {
			return fmt.Errorf("%w: account %s is not a verifier", models.ErrInvalidInput, id)
		}
	}
	return nil
}

// ForceExpire expires an overdue job and refunds the provider exactly what was
// deducted at selection. The refund guard is read and written under the job
// row lock, so concurrent callers refund at most once.
func (s *service) ForceExpire(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	var (
		job    *models.Job
		refund int64
	)
	err := store.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		var err error
		job, err = s.jobs.GetByIDForUpdate(ctx, tx, jobID)
		if err != nil {
			return err
		}
		if err := job.Expire(s.now().UTC()); err != nil {
			return err
		}
		refund = job.Payment.AmountDeductedCents
		if refund > 0 {
			if _, err := s.ledger.Credit(ctx, tx, job.ProviderID, &job.ID, models.LedgerEntryRefund, refund); err != nil {
				return err
			}
		}
		return s.jobs.Update(ctx, tx, job)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("job expired", "job_id", jobID, "provider_id", job.ProviderID, "refund_cents", refund)
	return job, nil
}

func (s *service) GetJob(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	return s.jobs.GetByID(ctx, jobID)
}

func (s *service) ListOpen(ctx context.Context, skill string, limit int) ([]*models.Job, error) {
	return s.jobs.ListOpen(ctx, strings.ToLower(strings.TrimSpace(skill)), clampLimit(limit))
}

func (s *service) ListByProvider(ctx context.Context, providerID uuid.UUID, limit int) ([]*models.Job, error) {
	return s.jobs.ListByProvider(ctx, providerID, clampLimit(limit))
}

// ListExpirable returns one page of jobs the sweeper should expire now.
// Pass the last key of the previous page as after, or nil for the first page.
func (s *service) ListExpirable(ctx context.Context, after *models.ExpiryKey, limit int) ([]models.ExpiryKey, error) {
	return s.jobs.ListExpirable(ctx, s.now().UTC(), after, clampLimit(limit))
}

func (s *service) requireRole(ctx context.Context, accountID uuid.UUID, role string) error {
	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if acc.Role != role {
		return fmt.Errorf("%w: account %s is a %s, not a %s", models.ErrUnauthorized, accountID, acc.Role, role)
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

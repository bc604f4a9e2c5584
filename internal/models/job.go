package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusOpen       JobStatus = "open"
	JobStatusAssigned   JobStatus = "assigned"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusExpired    JobStatus = "expired"
)

func (s JobStatus) String() string { return string(s) }

// jobTransitions lists every legal move of the job state machine.
var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusOpen:       {JobStatusAssigned},
	JobStatusAssigned:   {JobStatusInProgress, JobStatusExpired},
	JobStatusInProgress: {JobStatusCompleted, JobStatusExpired},
}

// CanTransitionTo reports whether the state machine allows s -> to.
func (s JobStatus) CanTransitionTo(to JobStatus) bool {
	for _, next := range jobTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Applicant is a freelancer's proposal against an open job.
type Applicant struct {
	FreelancerID uuid.UUID `json:"freelancer_id"`
	PriceCents   int64     `json:"price_cents"`
	Proposal     string    `json:"proposal"`
	AppliedAt    time.Time `json:"applied_at"`
}

// VerifierFee is recorded per verifier at selection time. Nothing pays it out yet.
type VerifierFee struct {
	VerifierID uuid.UUID `json:"verifier_id"`
	FeeCents   int64     `json:"fee_cents"`
	Paid       bool      `json:"paid"`
}

// ExpiryKey orders overdue jobs for the sweeper: by deadline, then id.
type ExpiryKey struct {
	ID       uuid.UUID `json:"id"`
	Deadline time.Time `json:"deadline"`
}

// After reports whether k sorts strictly after other.
func (k ExpiryKey) After(other ExpiryKey) bool {
	if !k.Deadline.Equal(other.Deadline) {
		return k.Deadline.After(other.Deadline)
	}
	return k.ID.String() > other.ID.String()
}

type PaymentDetails struct {
	AmountDeductedCents int64      `json:"amount_deducted_cents"`
	DeductedAt          *time.Time `json:"deducted_at,omitempty"`
	RefundedAt          *time.Time `json:"refunded_at,omitempty"`
	PaidOutCents        int64      `json:"paid_out_cents"`
	PaidOutAt           *time.Time `json:"paid_out_at,omitempty"`
}

type Job struct {
	ID                   uuid.UUID      `json:"id"`
	ProviderID           uuid.UUID      `json:"provider_id"`
	Title                string         `json:"title"`
	Description          string         `json:"description"`
	BudgetCents          int64          `json:"budget_cents"`
	RequiredSkills       []string       `json:"required_skills"`
	SelectedFreelancerID *uuid.UUID     `json:"selected_freelancer_id,omitempty"`
	VerifierIDs          []uuid.UUID    `json:"verifier_ids"`
	VerifierFees         []VerifierFee  `json:"verifier_fees"`
	Deadline             *time.Time     `json:"deadline,omitempty"`
	Status               JobStatus      `json:"status"`
	RefundProcessed      bool           `json:"refund_processed"`
	Applicants           []Applicant    `json:"applicants"`
	Payment              PaymentDetails `json:"payment"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// TotalVerifierFeesCents is the sum of all recorded verifier fees.
func (j *Job) TotalVerifierFeesCents() int64 {
	var total int64
	for _, f := range j.VerifierFees {
		total += f.FeeCents
	}
	return total
}

// EscrowHeldCents is the part of the provider's deduction not yet released
// to the freelancer or refunded.
func (j *Job) EscrowHeldCents() int64 {
	if j.RefundProcessed {
		return 0
	}
	return j.Payment.AmountDeductedCents - j.Payment.PaidOutCents
}

func (j *Job) Applicant(freelancerID uuid.UUID) (Applicant, bool) {
	for _, a := range j.Applicants {
		if a.FreelancerID == freelancerID {
			return a, true
		}
	}
	return Applicant{}, false
}

func (j *Job) IsVerifier(accountID uuid.UUID) bool {
	for _, v := range j.VerifierIDs {
		if v == accountID {
			return true
		}
	}
	return false
}

// IsSelectedFreelancer reports whether accountID is the assigned freelancer.
func (j *Job) IsSelectedFreelancer(accountID uuid.UUID) bool {
	return j.SelectedFreelancerID != nil && *j.SelectedFreelancerID == accountID
}

func (j *Job) transition(to JobStatus) error {
	if !j.Status.CanTransitionTo(to) {
		return fmt.Errorf("%w: job %s cannot move from %s to %s", ErrInvalidStateTransition, j.ID, j.Status, to)
	}
	j.Status = to
	return nil
}

// Apply appends a proposal. Each freelancer may apply once.
func (j *Job) Apply(a Applicant) error {
	if j.Status != JobStatusOpen {
		return fmt.Errorf("%w: job %s is %s, not open", ErrInvalidStateTransition, j.ID, j.Status)
	}
	if _, ok := j.Applicant(a.FreelancerID); ok {
		return fmt.Errorf("%w: freelancer %s already applied to job %s", ErrAlreadyProcessed, a.FreelancerID, j.ID)
	}
	j.Applicants = append(j.Applicants, a)
	return nil
}

// Assign moves an open job to assigned and records the escrow deduction.
func (j *Job) Assign(freelancerID uuid.UUID, fees []VerifierFee, deductedCents int64, now time.Time) error {
	if j.SelectedFreelancerID != nil {
		return fmt.Errorf("%w: job %s already has a freelancer", ErrInvalidStateTransition, j.ID)
	}
	if err := j.transition(JobStatusAssigned); err != nil {
		return err
	}
	verifiers := make([]uuid.UUID, len(fees))
	for i, f := range fees {
		verifiers[i] = f.VerifierID
	}
	j.SelectedFreelancerID = &freelancerID
	j.VerifierIDs = verifiers
	j.VerifierFees = fees
	j.Payment.AmountDeductedCents = deductedCents
	j.Payment.DeductedAt = &now
	return nil
}

// StartProgress is idempotent once the job is in progress.
func (j *Job) StartProgress() error {
	if j.Status == JobStatusInProgress {
		return nil
	}
	return j.transition(JobStatusInProgress)
}

// Complete marks the job paid out.
func (j *Job) Complete(paidOutCents int64, now time.Time) error {
	if j.Status == JobStatusCompleted {
		return fmt.Errorf("%w: job %s is already completed", ErrAlreadyProcessed, j.ID)
	}
	if err := j.transition(JobStatusCompleted); err != nil {
		return err
	}
	j.Payment.PaidOutCents = paidOutCents
	j.Payment.PaidOutAt = &now
	return nil
}

// Expire force-expires an overdue job and flips the refund guard. The caller
// refunds Payment.AmountDeductedCents in the same transaction.
func (j *Job) Expire(now time.Time) error {
	if j.RefundProcessed {
		return fmt.Errorf("%w: job %s was already refunded", ErrAlreadyProcessed, j.ID)
	}
	if j.Deadline == nil || !j.Deadline.Before(now) {
		return fmt.Errorf("%w: job %s deadline has not passed", ErrInvalidStateTransition, j.ID)
	}
	if err := j.transition(JobStatusExpired); err != nil {
		return err
	}
	j.RefundProcessed = true
	j.Payment.RefundedAt = &now
	return nil
}

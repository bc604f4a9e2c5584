package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type SubmissionStatus string

const (
	SubmissionStatusPending  SubmissionStatus = "pending"
	SubmissionStatusApproved SubmissionStatus = "approved"
	// SubmissionStatusRejected exists in the schema; no operation sets it.
	SubmissionStatusRejected SubmissionStatus = "rejected"
)

func (s SubmissionStatus) String() string { return string(s) }

// Verification is one verifier's verdict on a submission.
type Verification struct {
	VerifierID uuid.UUID `json:"verifier_id"`
	Approved   bool      `json:"approved"`
	Comments   string    `json:"comments"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Submission struct {
	ID            uuid.UUID        `json:"id"`
	JobID         uuid.UUID        `json:"job_id"`
	FreelancerID  uuid.UUID        `json:"freelancer_id"`
	Text          string           `json:"text"`
	Images        []string         `json:"images"`
	Verifications []Verification   `json:"verifications"`
	Status        SubmissionStatus `json:"status"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// NewSubmission freezes the job's current verifier set into pending entries.
func NewSubmission(job *Job, freelancerID uuid.UUID, text string, images []string, now time.Time) *Submission {
	entries := make([]Verification, len(job.VerifierIDs))
	for i, v := range job.VerifierIDs {
		entries[i] = Verification{VerifierID: v, UpdatedAt: now}
	}
	if images == nil {
		images = []string{}
	}
	return &Submission{
		ID:            uuid.New(),
		JobID:         job.ID,
		FreelancerID:  freelancerID,
		Text:          text,
		Images:        images,
		Verifications: entries,
		Status:        SubmissionStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// RecordVerdict overwrites the verifier's own entry. Last write wins.
func (s *Submission) RecordVerdict(verifierID uuid.UUID, approved bool, comments string, now time.Time) error {
	if s.Status != SubmissionStatusPending {
		return fmt.Errorf("%w: submission %s is %s", ErrAlreadyProcessed, s.ID, s.Status)
	}
	for i := range s.Verifications {
		if s.Verifications[i].VerifierID == verifierID {
			s.Verifications[i].Approved = approved
			s.Verifications[i].Comments = comments
			s.Verifications[i].UpdatedAt = now
			s.UpdatedAt = now
			return nil
		}
	}
	return fmt.Errorf("%w: verifier %s has no entry on submission %s", ErrInvalidStateTransition, verifierID, s.ID)
}

// Unanimous reports whether every entry is approved. A submission with no
// entries is never unanimous.
func (s *Submission) Unanimous() bool {
	if len(s.Verifications) == 0 {
		return false
	}
	for _, v := range s.Verifications {
		if !v.Approved {
			return false
		}
	}
	return true
}

// Approve moves a pending, unanimously approved submission to its terminal state.
func (s *Submission) Approve(now time.Time) error {
	if s.Status != SubmissionStatusPending {
		return fmt.Errorf("%w: submission %s is %s", ErrAlreadyProcessed, s.ID, s.Status)
	}
	if !s.Unanimous() {
		return fmt.Errorf("%w: submission %s lacks unanimous approval", ErrInvalidStateTransition, s.ID)
	}
	s.Status = SubmissionStatusApproved
	s.UpdatedAt = now
	return nil
}

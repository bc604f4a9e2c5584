// Package memstore is an in-memory, transactional implementation of the
// repository interfaces. Transactions are serialized; Rollback restores the
// state captured at Begin. Service and handler tests run against it.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/verimarket/backend/internal/models"
)

// Operation names accepted by FailOn.
const (
	OpJobUpdate        = "jobs.update"
	OpSubmissionCreate = "submissions.create"
	OpSubmissionUpdate = "submissions.update"
	OpLedgerEntry      = "ledger.insert_entry"
	OpAddBalance       = "ledger.add_balance"
)

type data struct {
	accounts    map[uuid.UUID]models.Account
	jobs        map[uuid.UUID]models.Job
	jobOrder    []uuid.UUID
	submissions map[uuid.UUID]models.Submission
	subOrder    []uuid.UUID
	entries     []models.LedgerEntry
}

func newData() data {
	return data{
		accounts:    make(map[uuid.UUID]models.Account),
		jobs:        make(map[uuid.UUID]models.Job),
		submissions: make(map[uuid.UUID]models.Submission),
	}
}

func (d data) clone() data {
	out := newData()
	for id, a := range d.accounts {
		out.accounts[id] = a
	}
	for id, j := range d.jobs {
		out.jobs[id] = cloneJob(j)
	}
	for id, s := range d.submissions {
		out.submissions[id] = cloneSubmission(s)
	}
	out.jobOrder = append([]uuid.UUID(nil), d.jobOrder...)
	out.subOrder = append([]uuid.UUID(nil), d.subOrder...)
	out.entries = append([]models.LedgerEntry(nil), d.entries...)
	return out
}

type Store struct {
	txMu sync.Mutex // held for the lifetime of a transaction

	mu       sync.RWMutex
	data     data
	beginErr error
	failures map[string]error
}

func New() *Store {
	return &Store{data: newData(), failures: make(map[string]error)}
}

// Begin starts a transaction. It blocks while another transaction is open.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	s.mu.RLock()
	beginErr := s.beginErr
	s.mu.RUnlock()
	if beginErr != nil {
		return nil, beginErr
	}

	locked := make(chan struct{})
	go func() {
		s.txMu.Lock()
		close(locked)
	}()
	select {
	case <-locked:
	case <-ctx.Done():
		// The goroutine still acquires the lock eventually; hand it back.
		go func() {
			<-locked
			s.txMu.Unlock()
		}()
		return nil, ctx.Err()
	}

	s.mu.RLock()
	snap := s.data.clone()
	s.mu.RUnlock()
	return &memTx{store: s, snapshot: snap}, nil
}

// SetBeginError makes every subsequent Begin fail with err. Pass nil to clear.
func (s *Store) SetBeginError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beginErr = err
}

// FailOn makes the named operation return err until cleared with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// failure must be called with mu held.
func (s *Store) failure(op string) error {
	return s.failures[op]
}

func (s *Store) Accounts() *AccountStore       { return &AccountStore{s: s} }
func (s *Store) Jobs() *JobStore               { return &JobStore{s: s} }
func (s *Store) Submissions() *SubmissionStore { return &SubmissionStore{s: s} }
func (s *Store) Ledger() *LedgerStore          { return &LedgerStore{s: s} }

func notFound(kind string, id any) error {
	return fmt.Errorf("%s %v: %w", kind, id, models.ErrNotFound)
}

var errTxDone = errors.New("memstore: transaction already closed")

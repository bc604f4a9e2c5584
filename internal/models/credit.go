package models

import (
	"time"

	"github.com/google/uuid"
)

// Ledger entry types. Debits (escrow_lock) are stored as positive amounts;
// the type carries the direction.
const (
	LedgerEntryDeposit    = "deposit"
	LedgerEntryEscrowLock = "escrow_lock"
	LedgerEntryPayout     = "payout"
	LedgerEntryRefund     = "refund"
)

// MaxAmountCents bounds every single price, budget and deposit so that fee
// and balance arithmetic stays far inside int64.
const MaxAmountCents int64 = 1_000_000_000_000

type LedgerEntry struct {
	ID                uuid.UUID  `json:"id"`
	AccountID         uuid.UUID  `json:"account_id"`
	JobID             *uuid.UUID `json:"job_id,omitempty"`
	EntryType         string     `json:"entry_type"`
	AmountCents       int64      `json:"amount_cents"`
	BalanceAfterCents int64      `json:"balance_after_cents"`
	CreatedAt         time.Time  `json:"created_at"`
}

// SignedAmount returns the balance delta the entry represents for its account.
func (e *LedgerEntry) SignedAmount() int64 {
	if e.EntryType == LedgerEntryEscrowLock {
		return -e.AmountCents
	}
	return e.AmountCents
}

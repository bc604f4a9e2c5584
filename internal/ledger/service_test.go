package ledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verimarket/backend/internal/ledger"
	"github.com/verimarket/backend/internal/memstore"
	"github.com/verimarket/backend/internal/models"
	"github.com/verimarket/backend/internal/store"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func setup(t *testing.T) (*memstore.Store, ledger.Service) {
	t.Helper()
	mem := memstore.New()
	return mem, ledger.NewService(mem, mem.Ledger(), nil)
}

func newAccount(t *testing.T, mem *memstore.Store, balance int64) uuid.UUID {
	t.Helper()
	a := &models.Account{
		Email:        uuid.NewString() + "@example.com",
		DisplayName:  "test",
		Role:         models.RoleProvider,
		BalanceCents: balance,
	}
	require.NoError(t, mem.Accounts().Create(context.Background(), a))
	return a.ID
}

// ---------------------------------------------------------------------------
// Debit
// ---------------------------------------------------------------------------

func TestDebit(t *testing.T) {
	ctx := context.Background()
	mem, svc := setup(t)
	acc := newAccount(t, mem, 100000)
	job := uuid.New()

	var got int64
	err := store.WithTx(ctx, mem, func(tx pgx.Tx) error {
		var err error
		got, err = svc.Debit(ctx, tx, acc, &job, models.LedgerEntryEscrowLock, 60000)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(40000), got)

	bal, err := svc.BalanceOf(ctx, acc)
	require.NoError(t, err)
	assert.Equal(t, int64(40000), bal)

	entries, err := svc.History(ctx, acc, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.LedgerEntryEscrowLock, entries[0].EntryType)
	assert.Equal(t, int64(60000), entries[0].AmountCents)
	assert.Equal(t, int64(-60000), entries[0].SignedAmount())
	assert.Equal(t, int64(40000), entries[0].BalanceAfterCents)
	require.NotNil(t, entries[0].JobID)
	assert.Equal(t, job, *entries[0].JobID)
}

func TestDebit_InsufficientFunds(t *testing.T) {
	ctx := context.Background()
	mem, svc := setup(t)
	acc := newAccount(t, mem, 500)

	err := store.WithTx(ctx, mem, func(tx pgx.Tx) error {
		_, err := svc.Debit(ctx, tx, acc, nil, models.LedgerEntryEscrowLock, 501)
		return err
	})
	require.ErrorIs(t, err, models.ErrInsufficientFunds)

	bal, err := svc.BalanceOf(ctx, acc)
	require.NoError(t, err)
	assert.Equal(t, int64(500), bal)

	entries, err := svc.History(ctx, acc, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDebit_ExactBalance(t *testing.T) {
	ctx := context.Background()
	mem, svc := setup(t)
	acc := newAccount(t, mem, 500)

	err := store.WithTx(ctx, mem, func(tx pgx.Tx) error {
		bal, err := svc.Debit(ctx, tx, acc, nil, models.LedgerEntryEscrowLock, 500)
		assert.Equal(t, int64(0), bal)
		return err
	})
	require.NoError(t, err)
}

func TestDebit_UnknownAccount(t *testing.T) {
	ctx := context.Background()
	mem, svc := setup(t)

	err := store.WithTx(ctx, mem, func(tx pgx.Tx) error {
		_, err := svc.Debit(ctx, tx, uuid.New(), nil, models.LedgerEntryEscrowLock, 1)
		return err
	})
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestDebitCredit_RejectNonPositiveAmounts(t *testing.T) {
	ctx := context.Background()
	mem, svc := setup(t)
	acc := newAccount(t, mem, 1000)

	for _, amount := range []int64{0, -5} {
		err := store.WithTx(ctx, mem, func(tx pgx.Tx) error {
			_, err := svc.Debit(ctx, tx, acc, nil, models.LedgerEntryEscrowLock, amount)
			return err
		})
		assert.ErrorIs(t, err, models.ErrInvalidInput)

		err = store.WithTx(ctx, mem, func(tx pgx.Tx) error {
			_, err := svc.Credit(ctx, tx, acc, nil, models.LedgerEntryPayout, amount)
			return err
		})
		assert.ErrorIs(t, err, models.ErrInvalidInput)

		_, err = svc.Deposit(ctx, acc, amount)
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	}
}

// ---------------------------------------------------------------------------
// Credit and rollback
// ---------------------------------------------------------------------------

func TestCredit_RolledBackWithCallerTx(t *testing.T) {
	ctx := context.Background()
	mem, svc := setup(t)
	acc := newAccount(t, mem, 1000)
	boom := errors.New("later step failed")

	err := store.WithTx(ctx, mem, func(tx pgx.Tx) error {
		if _, err := svc.Credit(ctx, tx, acc, nil, models.LedgerEntryPayout, 700); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	bal, err := svc.BalanceOf(ctx, acc)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), bal, "credit must not survive a rolled back transaction")

	entries, err := svc.History(ctx, acc, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCredit_JournalFailureRollsBackBalance(t *testing.T) {
	ctx := context.Background()
	mem, svc := setup(t)
	acc := newAccount(t, mem, 1000)
	mem.FailOn(memstore.OpLedgerEntry, errors.New("disk full"))

	err := store.WithTx(ctx, mem, func(tx pgx.Tx) error {
		_, err := svc.Credit(ctx, tx, acc, nil, models.LedgerEntryRefund, 250)
		return err
	})
	require.Error(t, err)

	bal, err := svc.BalanceOf(ctx, acc)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), bal)
}

// ---------------------------------------------------------------------------
// Deposit, BalanceOf, History
// ---------------------------------------------------------------------------

func TestDeposit(t *testing.T) {
	ctx := context.Background()
	mem, svc := setup(t)
	acc := newAccount(t, mem, 0)

	entry, err := svc.Deposit(ctx, acc, 100000)
	require.NoError(t, err)
	assert.Equal(t, models.LedgerEntryDeposit, entry.EntryType)
	assert.Equal(t, int64(100000), entry.BalanceAfterCents)
	assert.Nil(t, entry.JobID)

	_, err = svc.Deposit(ctx, acc, 2500)
	require.NoError(t, err)

	bal, err := svc.BalanceOf(ctx, acc)
	require.NoError(t, err)
	assert.Equal(t, int64(102500), bal)
}

func TestDeposit_RejectsOutOfRangeAmounts(t *testing.T) {
	ctx := context.Background()
	mem, svc := setup(t)
	acc := newAccount(t, mem, 0)

	for _, amount := range []int64{0, -1, models.MaxAmountCents + 1} {
		_, err := svc.Deposit(ctx, acc, amount)
		assert.ErrorIs(t, err, models.ErrInvalidInput, "amount %d", amount)
	}
	bal, err := svc.BalanceOf(ctx, acc)
	require.NoError(t, err)
	assert.Zero(t, bal)
}

func TestDeposit_UnknownAccount(t *testing.T) {
	_, svc := setup(t)
	_, err := svc.Deposit(context.Background(), uuid.New(), 100)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeposit_StorageUnavailable(t *testing.T) {
	mem, svc := setup(t)
	acc := newAccount(t, mem, 0)
	mem.SetBeginError(errors.New("connection refused"))

	_, err := svc.Deposit(context.Background(), acc, 100)
	require.ErrorIs(t, err, models.ErrUnavailable)
}

func TestBalanceOf_UnknownAccount(t *testing.T) {
	_, svc := setup(t)
	_, err := svc.BalanceOf(context.Background(), uuid.New())
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestHistory_NewestFirstAndLimited(t *testing.T) {
	ctx := context.Background()
	mem, svc := setup(t)
	acc := newAccount(t, mem, 0)
	other := newAccount(t, mem, 0)

	for _, amount := range []int64{100, 200, 300} {
		_, err := svc.Deposit(ctx, acc, amount)
		require.NoError(t, err)
	}
	_, err := svc.Deposit(ctx, other, 999)
	require.NoError(t, err)

	entries, err := svc.History(ctx, acc, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(300), entries[0].AmountCents)
	assert.Equal(t, int64(600), entries[0].BalanceAfterCents)
	assert.Equal(t, int64(200), entries[1].AmountCents)
}

// ---------------------------------------------------------------------------
// Conservation: the journal replays to the balance.
// ---------------------------------------------------------------------------

func TestJournalReplaysToBalance(t *testing.T) {
	ctx := context.Background()
	mem, svc := setup(t)
	acc := newAccount(t, mem, 0)
	job := uuid.New()

	_, err := svc.Deposit(ctx, acc, 100000)
	require.NoError(t, err)
	err = store.WithTx(ctx, mem, func(tx pgx.Tx) error {
		if _, err := svc.Debit(ctx, tx, acc, &job, models.LedgerEntryEscrowLock, 60000); err != nil {
			return err
		}
		_, err := svc.Credit(ctx, tx, acc, &job, models.LedgerEntryRefund, 60000)
		return err
	})
	require.NoError(t, err)

	entries, err := svc.History(ctx, acc, 0)
	require.NoError(t, err)
	var sum int64
	for _, e := range entries {
		sum += e.SignedAmount()
	}
	bal, err := svc.BalanceOf(ctx, acc)
	require.NoError(t, err)
	assert.Equal(t, bal, sum)
	assert.Equal(t, int64(100000), bal)
}

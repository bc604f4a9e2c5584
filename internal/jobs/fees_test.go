package jobs_test

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verimarket/backend/internal/jobs"
	"github.com/verimarket/backend/internal/models"
)

func verifierIDs(n int) []uuid.UUID {
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.New()
	}
	return ids
}

func TestFeePerVerifier(t *testing.T) {
	tests := []struct {
		price int64
		want  int64
	}{
		{50000, 5000},
		{100, 10},
		{99, 9},
		{9, 0},
		{1, 0},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, jobs.FeePerVerifier(tc.price), "price %d", tc.price)
	}
}

func TestQuote_TwoVerifiers(t *testing.T) {
	v1, v2 := uuid.New(), uuid.New()
	q, err := jobs.Quote(50000, []uuid.UUID{v1, v2})
	require.NoError(t, err)

	assert.Equal(t, int64(50000), q.PriceCents)
	assert.Equal(t, int64(5000), q.FeePerVerifierCents)
	assert.Equal(t, int64(10000), q.VerifierFeeTotal)
	assert.Equal(t, int64(60000), q.TotalDeduction)
	require.Len(t, q.Fees, 2)
	assert.Equal(t, v1, q.Fees[0].VerifierID)
	assert.Equal(t, v2, q.Fees[1].VerifierID)
	for _, f := range q.Fees {
		assert.Equal(t, int64(5000), f.FeeCents)
		assert.False(t, f.Paid)
	}
}

func TestQuote_RoundsEachFeeDown(t *testing.T) {
	q, err := jobs.Quote(12345, []uuid.UUID{uuid.New(), uuid.New(), uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, int64(1234), q.FeePerVerifierCents)
	assert.Equal(t, int64(3702), q.VerifierFeeTotal)
	assert.Equal(t, int64(16047), q.TotalDeduction)
}

func TestQuote_LargestPriceStaysExact(t *testing.T) {
	q, err := jobs.Quote(models.MaxAmountCents, verifierIDs(jobs.MaxVerifiers))
	require.NoError(t, err)
	assert.Equal(t, models.MaxAmountCents/10, q.FeePerVerifierCents)
	assert.Equal(t, models.MaxAmountCents*3, q.TotalDeduction)
	assert.Greater(t, q.TotalDeduction, q.PriceCents)
}

func TestQuote_Rejections(t *testing.T) {
	tests := []struct {
		name      string
		price     int64
		verifiers int
	}{
		{"zero price", 0, 1},
		{"negative price", -100, 1},
		{"price over cap", models.MaxAmountCents + 1, 1},
		{"fee would wrap", 9223372036854776, 10},
		{"max int64 price", math.MaxInt64, 1},
		{"no verifiers", 100, 0},
		{"too many verifiers", 100, jobs.MaxVerifiers + 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := jobs.Quote(tc.price, verifierIDs(tc.verifiers))
			assert.ErrorIs(t, err, models.ErrInvalidInput)
		})
	}
}

func TestCheckAmount(t *testing.T) {
	assert.NoError(t, jobs.CheckAmount("price", 1))
	assert.NoError(t, jobs.CheckAmount("price", models.MaxAmountCents))
	assert.ErrorIs(t, jobs.CheckAmount("price", models.MaxAmountCents+1), models.ErrInvalidInput)
	assert.ErrorIs(t, jobs.CheckAmount("price", 0), models.ErrInvalidInput)
}

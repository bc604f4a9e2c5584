package jobs

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/verimarket/backend/internal/models"
)

// VerifierFeeRateBps is the per-verifier fee as basis points of the agreed price (10%).
const VerifierFeeRateBps = 1000

// MaxVerifiers caps the verifier set of a single job.
const MaxVerifiers = 20

// FeePerVerifier returns the fee owed to each verifier, rounded down to the cent.
// priceCents must not exceed models.MaxAmountCents.
func FeePerVerifier(priceCents int64) int64 {
	return priceCents * VerifierFeeRateBps / 10000
}

// EscrowQuote is what selecting a freelancer at a given price costs the provider.
type EscrowQuote struct {
	PriceCents          int64
	FeePerVerifierCents int64
	VerifierFeeTotal    int64
	TotalDeduction      int64
	Fees                []models.VerifierFee
}

// Quote computes the up-front deduction: the price plus one fee per verifier.
// Prices outside (0, models.MaxAmountCents] and oversized verifier sets are
// rejected with ErrInvalidInput, as is any total that would not fit in int64.
func Quote(priceCents int64, verifierIDs []uuid.UUID) (EscrowQuote, error) {
	if err := CheckAmount("price", priceCents); err != nil {
		return EscrowQuote{}, err
	}
	n := int64(len(verifierIDs))
	if n == 0 || n > MaxVerifiers {
		return EscrowQuote{}, fmt.Errorf("%w: need 1 to %d verifiers, got %d", models.ErrInvalidInput, MaxVerifiers, n)
	}
	fee := FeePerVerifier(priceCents)
	if fee > (math.MaxInt64-priceCents)/n {
		return EscrowQuote{}, fmt.Errorf("%w: escrow total for price %d overflows", models.ErrInvalidInput, priceCents)
	}
	fees := make([]models.VerifierFee, len(verifierIDs))
	for i, v := range verifierIDs {
		fees[i] = models.VerifierFee{VerifierID: v, FeeCents: fee}
	}
	total := fee * n
	return EscrowQuote{
		PriceCents:          priceCents,
		FeePerVerifierCents: fee,
		VerifierFeeTotal:    total,
		TotalDeduction:      priceCents + total,
		Fees:                fees,
	}, nil
}

// CheckAmount rejects money amounts that are not positive or exceed
// models.MaxAmountCents.
func CheckAmount(what string, cents int64) error {
	if cents <= 0 || cents > models.MaxAmountCents {
		return fmt.Errorf("%w: %s must be between 1 and %d cents, got %d", models.ErrInvalidInput, what, models.MaxAmountCents, cents)
	}
	return nil
}

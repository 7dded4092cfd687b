// Package commission splits deal amounts between the platform and the channel
// owner using integer basis-point arithmetic.
package commission

import (
	"fmt"
	"math/bits"

	"github.com/adlane/settlement/internal/domain"
)

const (
	// MaxRateBasisPoints caps the platform commission at 50%.
	MaxRateBasisPoints = 5000

	basisPointDenominator = 10000
)

// Split is the result of a commission calculation.
// Commission + OwnerPayout == Amount holds exactly for every valid input;
// truncation always favors the owner payout.
type Split struct {
	Commission  domain.Money
	OwnerPayout domain.Money
}

// Calculate computes floor(amount * rateBasisPoints / 10000) as the platform
// commission and the remainder as the owner payout. The multiplication is
// overflow-checked; exceeding int64 is reported as a calculation error, not
// folded into a generic failure.
func Calculate(amount domain.Money, rateBasisPoints int64) (Split, error) {
	if amount.IsZero() {
		return Split{}, fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}
	if rateBasisPoints < 0 || rateBasisPoints > MaxRateBasisPoints {
		return Split{}, fmt.Errorf("%w: rate %d out of range [0, %d] basis points",
			domain.ErrValidation, rateBasisPoints, MaxRateBasisPoints)
	}

	hi, lo := bits.Mul64(uint64(amount.Nano()), uint64(rateBasisPoints))
	if hi != 0 {
		return Split{}, fmt.Errorf("%w: %d * %dbp exceeds representable range",
			domain.ErrOverflow, amount.Nano(), rateBasisPoints)
	}
	commissionNano := int64(lo / basisPointDenominator)

	commission, err := domain.NewMoney(commissionNano)
	if err != nil {
		return Split{}, err
	}
	payout, err := amount.Subtract(commission)
	if err != nil {
		return Split{}, err
	}
	return Split{Commission: commission, OwnerPayout: payout}, nil
}

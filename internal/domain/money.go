package domain

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// nanoPerTON is the number of nano units in one TON.
const nanoPerTON = 1_000_000_000

// Money is a non-negative amount in nano units (10^-9 TON).
// Arithmetic never wraps silently: operations that would overflow or go
// negative return ErrOverflow / ErrValidation instead.
type Money struct {
	nano int64
}

// NewMoney creates a Money from nano units.
func NewMoney(nano int64) (Money, error) {
	if nano < 0 {
		return Money{}, fmt.Errorf("%w: amount must be non-negative, got %d", ErrValidation, nano)
	}
	return Money{nano: nano}, nil
}

// MustMoney is NewMoney for statically known amounts. Panics on negative input.
func MustMoney(nano int64) Money {
	m, err := NewMoney(nano)
	if err != nil {
		panic(err)
	}
	return m
}

// Nano returns the raw nano amount.
func (m Money) Nano() int64 { return m.nano }

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.nano == 0 }

// Add returns m + other, failing with ErrOverflow if the sum exceeds int64.
func (m Money) Add(other Money) (Money, error) {
	if m.nano > math.MaxInt64-other.nano {
		return Money{}, fmt.Errorf("%w: %d + %d exceeds representable range", ErrOverflow, m.nano, other.nano)
	}
	return Money{nano: m.nano + other.nano}, nil
}

// Subtract returns m - other, failing with ErrValidation if the result would
// be negative.
func (m Money) Subtract(other Money) (Money, error) {
	if other.nano > m.nano {
		return Money{}, fmt.Errorf("%w: cannot subtract %d from %d", ErrValidation, other.nano, m.nano)
	}
	return Money{nano: m.nano - other.nano}, nil
}

// Cmp compares two amounts: -1 if m < other, 0 if equal, 1 if m > other.
func (m Money) Cmp(other Money) int {
	switch {
	case m.nano < other.nano:
		return -1
	case m.nano > other.nano:
		return 1
	default:
		return 0
	}
}

// ToDecimal converts the nano amount to a decimal TON value.
func (m Money) ToDecimal() decimal.Decimal {
	return decimal.NewFromInt(m.nano).Div(decimal.NewFromInt(nanoPerTON))
}

// String renders the amount in TON for logs and descriptions.
func (m Money) String() string {
	return m.ToDecimal().StringFixed(9) + " TON"
}

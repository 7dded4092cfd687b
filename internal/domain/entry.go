package domain

import "fmt"

// EntryType tags why a ledger entry exists. It is bookkeeping metadata for
// audit and reconciliation, never a control-flow switch.
type EntryType string

const (
	EntryEscrowFunding   EntryType = "ESCROW_FUNDING"
	EntryEscrowRelease   EntryType = "ESCROW_RELEASE"
	EntryCommission      EntryType = "COMMISSION"
	EntryCommissionSweep EntryType = "COMMISSION_SWEEP"
	EntryPayout          EntryType = "PAYOUT"
	EntryRefund          EntryType = "REFUND"
)

// Valid reports whether t is a member of the closed enumeration.
func (t EntryType) Valid() bool {
	switch t {
	case EntryEscrowFunding, EntryEscrowRelease, EntryCommission,
		EntryCommissionSweep, EntryPayout, EntryRefund:
		return true
	}
	return false
}

// Side is the debit/credit side of a leg.
//
// Sign convention, fixed system-wide: a CREDIT increases an account's
// balance, a DEBIT decreases it. balance = sum(credits) - sum(debits).
type Side string

const (
	Debit  Side = "DEBIT"
	Credit Side = "CREDIT"
)

// Leg is one side of a double-entry transfer.
type Leg struct {
	Account   AccountID
	EntryType EntryType
	Amount    Money
	Side      Side
}

// Validate checks a single leg in isolation.
func (l Leg) Validate() error {
	if l.Account.IsZero() {
		return fmt.Errorf("%w: leg has empty account", ErrValidation)
	}
	if !l.EntryType.Valid() {
		return fmt.Errorf("%w: unknown entry type %q", ErrValidation, l.EntryType)
	}
	if l.Side != Debit && l.Side != Credit {
		return fmt.Errorf("%w: unknown side %q", ErrValidation, l.Side)
	}
	if l.Amount.IsZero() {
		return fmt.Errorf("%w: leg amount must be positive", ErrValidation)
	}
	return nil
}

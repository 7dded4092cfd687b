package domain

import (
	"fmt"
	"strings"
)

// AccountID is an opaque ledger account identifier. Accounts are implicit:
// they exist from the first entry posted against them. The canonical
// constructors below produce deterministic ids for well-known roles so that
// every component derives the same account for the same entity.
type AccountID struct {
	id string
}

const (
	escrowPrefix       = "escrow:deal:"
	ownerPendingPrefix = "owner:pending:"
	commissionPrefix   = "commission:deal:"
	fundingPrefix      = "funding:advertiser:"
	treasuryID         = "treasury:platform"
)

// ParseAccountID validates a raw account identifier.
func ParseAccountID(raw string) (AccountID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return AccountID{}, fmt.Errorf("%w: empty account id", ErrValidation)
	}
	return AccountID{id: raw}, nil
}

// DealEscrowAccount holds an advertiser's funds for one deal until release.
func DealEscrowAccount(dealID int64) AccountID {
	return AccountID{id: fmt.Sprintf("%s%d", escrowPrefix, dealID)}
}

// OwnerPendingAccount accumulates a channel owner's earned payouts.
func OwnerPendingAccount(ownerUserID int64) AccountID {
	return AccountID{id: fmt.Sprintf("%s%d", ownerPendingPrefix, ownerUserID)}
}

// CommissionAccount holds the platform's cut for one deal until swept.
func CommissionAccount(dealID int64) AccountID {
	return AccountID{id: fmt.Sprintf("%s%d", commissionPrefix, dealID)}
}

// AdvertiserFundingAccount mirrors the advertiser's confirmed on-chain deposits.
func AdvertiserFundingAccount(advertiserUserID int64) AccountID {
	return AccountID{id: fmt.Sprintf("%s%d", fundingPrefix, advertiserUserID)}
}

// TreasuryAccount is the platform treasury all commission sweeps land in.
func TreasuryAccount() AccountID {
	return AccountID{id: treasuryID}
}

// IsCommission reports whether the account is a commission-holding account
// (the population the sweep job iterates).
func (a AccountID) IsCommission() bool {
	return strings.HasPrefix(a.id, commissionPrefix)
}

// IsZero reports whether the id is the uninitialized zero value.
func (a AccountID) IsZero() bool { return a.id == "" }

func (a AccountID) String() string { return a.id }

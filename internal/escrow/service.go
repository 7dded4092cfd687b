// Package escrow maps deal lifecycle moments onto ledger transfers: funding a
// deal's escrow from a confirmed deposit, releasing it into commission and
// owner-payout balances, and refunding it.
package escrow

import (
	"context"
	"fmt"

	"github.com/adlane/settlement/internal/commission"
	"github.com/adlane/settlement/internal/domain"
	"github.com/adlane/settlement/internal/ledger"
	"go.uber.org/zap"
)

// Ledger is the slice of the engine the escrow service uses.
type Ledger interface {
	Transfer(ctx context.Context, req ledger.TransferRequest) (ledger.TransferResult, error)
	AuthoritativeBalance(ctx context.Context, account domain.AccountID) (int64, error)
}

// Service posts escrow-related transfers.
type Service struct {
	ledger Ledger
}

func NewService(l Ledger) *Service {
	return &Service{ledger: l}
}

// ConfirmDeposit records a confirmed on-chain deposit against the deal's
// escrow account. Keyed by transaction hash, so a redelivered confirmation
// posts nothing new.
func (s *Service) ConfirmDeposit(ctx context.Context, dealID, advertiserID int64, txHash string, amount domain.Money, confirmations int, fromAddress string) (ledger.TransferResult, error) {
	if txHash == "" {
		return ledger.TransferResult{}, fmt.Errorf("%w: tx hash is required", domain.ErrValidation)
	}
	res, err := s.ledger.Transfer(ctx, ledger.TransferRequest{
		DealID:         dealID,
		IdempotencyKey: "deposit:" + txHash,
		Legs: []domain.Leg{
			{Account: domain.AdvertiserFundingAccount(advertiserID), EntryType: domain.EntryEscrowFunding, Amount: amount, Side: domain.Debit},
			{Account: domain.DealEscrowAccount(dealID), EntryType: domain.EntryEscrowFunding, Amount: amount, Side: domain.Credit},
		},
		Description: fmt.Sprintf("deposit %s of %s from %s (%d confirmations)", txHash, amount, fromAddress, confirmations),
	})
	if err != nil {
		return ledger.TransferResult{}, fmt.Errorf("confirm deposit for deal %d: %w", dealID, err)
	}
	return res, nil
}

// Release moves the full escrow balance of a completed deal into the deal's
// commission-holding account and the owner's pending balance, split by the
// platform rate. Keyed per deal: a retried release is a no-op.
func (s *Service) Release(ctx context.Context, dealID, ownerID int64, rateBasisPoints int64) (ledger.TransferResult, error) {
	escrowAccount := domain.DealEscrowAccount(dealID)
	nano, err := s.ledger.AuthoritativeBalance(ctx, escrowAccount)
	if err != nil {
		return ledger.TransferResult{}, fmt.Errorf("read escrow balance for deal %d: %w", dealID, err)
	}
	if nano <= 0 {
		return ledger.TransferResult{}, fmt.Errorf("%w: escrow for deal %d is empty", domain.ErrValidation, dealID)
	}
	total, err := domain.NewMoney(nano)
	if err != nil {
		return ledger.TransferResult{}, err
	}

	split, err := commission.Calculate(total, rateBasisPoints)
	if err != nil {
		return ledger.TransferResult{}, fmt.Errorf("split escrow for deal %d: %w", dealID, err)
	}

	legs := []domain.Leg{
		{Account: escrowAccount, EntryType: domain.EntryEscrowRelease, Amount: total, Side: domain.Debit},
		{Account: domain.OwnerPendingAccount(ownerID), EntryType: domain.EntryPayout, Amount: split.OwnerPayout, Side: domain.Credit},
	}
	// A zero commission (rate 0 or floor) gets no leg; legs must be positive.
	if !split.Commission.IsZero() {
		legs = append(legs, domain.Leg{
			Account:   domain.CommissionAccount(dealID),
			EntryType: domain.EntryCommission,
			Amount:    split.Commission,
			Side:      domain.Credit,
		})
	}

	res, err := s.ledger.Transfer(ctx, ledger.TransferRequest{
		DealID:         dealID,
		IdempotencyKey: fmt.Sprintf("release:%d", dealID),
		Legs:           legs,
		Description:    fmt.Sprintf("escrow release of %s for deal %d at %dbp", total, dealID, rateBasisPoints),
	})
	if err != nil {
		return ledger.TransferResult{}, fmt.Errorf("release escrow for deal %d: %w", dealID, err)
	}
	zap.L().Info("escrow released",
		zap.Int64("deal_id", dealID),
		zap.Stringer("owner_payout", split.OwnerPayout),
		zap.Stringer("commission", split.Commission),
		zap.Bool("replayed", res.Replayed))
	return res, nil
}

// Refund returns the full escrow balance of a failed deal to the advertiser's
// funding account. Keyed per deal.
func (s *Service) Refund(ctx context.Context, dealID, advertiserID int64) (ledger.TransferResult, error) {
	escrowAccount := domain.DealEscrowAccount(dealID)
	nano, err := s.ledger.AuthoritativeBalance(ctx, escrowAccount)
	if err != nil {
		return ledger.TransferResult{}, fmt.Errorf("read escrow balance for deal %d: %w", dealID, err)
	}
	if nano <= 0 {
		return ledger.TransferResult{}, fmt.Errorf("%w: escrow for deal %d is empty", domain.ErrValidation, dealID)
	}
	amount, err := domain.NewMoney(nano)
	if err != nil {
		return ledger.TransferResult{}, err
	}

	res, err := s.ledger.Transfer(ctx, ledger.TransferRequest{
		DealID:         dealID,
		IdempotencyKey: fmt.Sprintf("refund:%d", dealID),
		Legs: []domain.Leg{
			{Account: escrowAccount, EntryType: domain.EntryRefund, Amount: amount, Side: domain.Debit},
			{Account: domain.AdvertiserFundingAccount(advertiserID), EntryType: domain.EntryRefund, Amount: amount, Side: domain.Credit},
		},
		Description: fmt.Sprintf("escrow refund of %s for deal %d", amount, dealID),
	})
	if err != nil {
		return ledger.TransferResult{}, fmt.Errorf("refund escrow for deal %d: %w", dealID, err)
	}
	return res, nil
}

// Package settlement bridges on-chain settlement events to ledger postings
// and deal-state transitions.
package settlement

import (
	"context"
	"fmt"
	"strconv"

	"github.com/adlane/settlement/internal/domain"
	"github.com/adlane/settlement/internal/ledger"
	"github.com/adlane/settlement/internal/observability"
	"go.uber.org/zap"
)

// EscrowLedger records confirmed deposits against a deal's escrow account.
type EscrowLedger interface {
	ConfirmDeposit(ctx context.Context, dealID, advertiserID int64, txHash string, amount domain.Money, confirmations int, fromAddress string) (ledger.TransferResult, error)
}

// DealTransitioner is the external deal state machine.
type DealTransitioner interface {
	Transition(ctx context.Context, cmd TransitionCommand) error
}

// StatePublisher emits state-changed events downstream. May be nil.
type StatePublisher interface {
	PublishStateChanged(ctx context.Context, ev StateChanged) error
}

// Adapter validates settlement events and drives the escrow ledger and the
// deal state machine. Errors are never swallowed: they propagate so the
// consuming layer can retry or dead-letter by its own policy.
type Adapter struct {
	escrow    EscrowLedger
	deals     DealTransitioner
	publisher StatePublisher
}

func NewAdapter(escrow EscrowLedger, deals DealTransitioner, publisher StatePublisher) *Adapter {
	return &Adapter{escrow: escrow, deals: deals, publisher: publisher}
}

// Handle dispatches one settlement event envelope.
func (a *Adapter) Handle(ctx context.Context, env Envelope) error {
	if err := env.Validate(); err != nil {
		observability.IncrementSettlementEvent(env.Type, "invalid")
		return err
	}

	var err error
	switch env.Type {
	case TypeDepositConfirmed:
		err = a.handleDepositConfirmed(ctx, env)
	case TypeDepositFailed:
		err = a.handleDepositFailed(ctx, env)
	}
	if err != nil {
		observability.IncrementSettlementEvent(env.Type, "failed")
		return err
	}
	observability.IncrementSettlementEvent(env.Type, "processed")
	return nil
}

// handleDepositConfirmed posts the deposit to escrow, then requests the
// "funded" transition carrying the on-chain details through.
func (a *Adapter) handleDepositConfirmed(ctx context.Context, env Envelope) error {
	ev := env.DepositConfirmed
	amount, err := domain.NewMoney(ev.AmountNano)
	if err != nil {
		return err
	}

	res, err := a.escrow.ConfirmDeposit(ctx, env.DealID, env.AdvertiserID, ev.TxHash, amount, ev.Confirmations, ev.FromAddress)
	if err != nil {
		return fmt.Errorf("record deposit for deal %d: %w", env.DealID, err)
	}
	if res.Replayed {
		zap.L().Info("deposit already recorded, still requesting transition",
			zap.Int64("deal_id", env.DealID), zap.String("tx_hash", ev.TxHash))
	}

	metadata := map[string]string{
		"tx_hash":       ev.TxHash,
		"amount_nano":   strconv.FormatInt(ev.AmountNano, 10),
		"confirmations": strconv.Itoa(ev.Confirmations),
	}
	cmd := TransitionCommand{DealID: env.DealID, TargetStatus: StatusFunded, Metadata: metadata}
	if err := a.deals.Transition(ctx, cmd); err != nil {
		return fmt.Errorf("transition deal %d to %s: %w", env.DealID, StatusFunded, err)
	}

	return a.publishStateChanged(ctx, StateChanged{DealID: env.DealID, NewStatus: StatusFunded, Metadata: metadata})
}

// handleDepositFailed requests the terminal transition without touching the
// ledger: nothing was received, so nothing is posted.
func (a *Adapter) handleDepositFailed(ctx context.Context, env Envelope) error {
	ev := env.DepositFailed
	metadata := map[string]string{
		"reason":               ev.Reason,
		"expected_amount_nano": strconv.FormatInt(ev.ExpectedAmountNano, 10),
		"received_amount_nano": strconv.FormatInt(ev.ReceivedAmountNano, 10),
	}
	cmd := TransitionCommand{DealID: env.DealID, TargetStatus: StatusExpired, Metadata: metadata}
	if err := a.deals.Transition(ctx, cmd); err != nil {
		return fmt.Errorf("transition deal %d to %s: %w", env.DealID, StatusExpired, err)
	}

	return a.publishStateChanged(ctx, StateChanged{DealID: env.DealID, NewStatus: StatusExpired, Metadata: metadata})
}

func (a *Adapter) publishStateChanged(ctx context.Context, ev StateChanged) error {
	if a.publisher == nil {
		return nil
	}
	if err := a.publisher.PublishStateChanged(ctx, ev); err != nil {
		return fmt.Errorf("publish state change for deal %d: %w", ev.DealID, err)
	}
	return nil
}

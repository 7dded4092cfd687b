package settlement

import (
	"fmt"

	"github.com/adlane/settlement/internal/domain"
)

// Event types carried in the settlement event envelope.
const (
	TypeDepositConfirmed = "deposit_confirmed"
	TypeDepositFailed    = "deposit_failed"
)

// Failure reasons reported with a deposit-failed event.
const (
	ReasonTimeout        = "TIMEOUT"
	ReasonAmountMismatch = "AMOUNT_MISMATCH"
)

// DepositConfirmed reports an on-chain deposit that reached the required
// confirmation count.
type DepositConfirmed struct {
	TxHash        string `json:"tx_hash"`
	AmountNano    int64  `json:"amount_nano"`
	Confirmations int    `json:"confirmations"`
	FromAddress   string `json:"from_address"`
	ToAddress     string `json:"to_address"`
}

// DepositFailed reports a deposit that never completed.
type DepositFailed struct {
	Reason             string `json:"reason"`
	ExpectedAmountNano int64  `json:"expected_amount_nano"`
	ReceivedAmountNano int64  `json:"received_amount_nano"`
}

// Envelope is the wire shape of one settlement event. Exactly one payload
// field is set, matching Type.
type Envelope struct {
	Type             string            `json:"type"`
	DealID           int64             `json:"deal_id"`
	AdvertiserID     int64             `json:"advertiser_id"`
	DepositConfirmed *DepositConfirmed `json:"deposit_confirmed,omitempty"`
	DepositFailed    *DepositFailed    `json:"deposit_failed,omitempty"`
}

// Validate checks envelope structure before dispatch.
func (e Envelope) Validate() error {
	if e.DealID <= 0 {
		return fmt.Errorf("%w: deal id must be positive, got %d", domain.ErrValidation, e.DealID)
	}
	switch e.Type {
	case TypeDepositConfirmed:
		if e.DepositConfirmed == nil {
			return fmt.Errorf("%w: deposit_confirmed payload missing", domain.ErrValidation)
		}
		if e.DepositConfirmed.TxHash == "" {
			return fmt.Errorf("%w: tx hash is required", domain.ErrValidation)
		}
		if e.DepositConfirmed.AmountNano <= 0 {
			return fmt.Errorf("%w: deposit amount must be positive, got %d", domain.ErrValidation, e.DepositConfirmed.AmountNano)
		}
		if e.AdvertiserID <= 0 {
			return fmt.Errorf("%w: advertiser id must be positive, got %d", domain.ErrValidation, e.AdvertiserID)
		}
	case TypeDepositFailed:
		if e.DepositFailed == nil {
			return fmt.Errorf("%w: deposit_failed payload missing", domain.ErrValidation)
		}
		if e.DepositFailed.Reason == "" {
			return fmt.Errorf("%w: failure reason is required", domain.ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown event type %q", domain.ErrValidation, e.Type)
	}
	return nil
}

// Deal state targets requested from the state-machine collaborator.
const (
	StatusFunded  = "funded"
	StatusExpired = "expired"
)

// TransitionCommand asks the deal state machine for a transition.
type TransitionCommand struct {
	DealID       int64             `json:"deal_id"`
	TargetStatus string            `json:"target_status"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// StateChanged is emitted downstream after a successful transition.
type StateChanged struct {
	DealID    int64             `json:"deal_id"`
	NewStatus string            `json:"new_status"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

package ledger

import (
	"fmt"
	"time"

	"github.com/adlane/settlement/internal/domain"
	"github.com/google/uuid"
)

// TransferRequest asks the engine to post a balanced set of legs atomically.
// It is ephemeral: only the resulting entries are persisted.
type TransferRequest struct {
	// DealID links the transfer to a deal for audit; zero means none.
	DealID int64
	// IdempotencyKey deduplicates redelivered requests. Required.
	IdempotencyKey string
	// Legs is the ordered list of debit/credit sides, at least two.
	Legs []domain.Leg
	// Description is a human-readable note stored with the transfer.
	Description string
}

// Validate checks structure, per-leg validity and that debits equal credits.
// Summation uses checked arithmetic so a crafted leg set cannot wrap into a
// false balance.
func (r TransferRequest) Validate() error {
	if r.IdempotencyKey == "" {
		return fmt.Errorf("%w: idempotency key is required", domain.ErrValidation)
	}
	if len(r.Legs) < 2 {
		return fmt.Errorf("%w: transfer needs at least 2 legs, got %d", domain.ErrValidation, len(r.Legs))
	}

	var debits, credits domain.Money
	var err error
	for i, leg := range r.Legs {
		if err := leg.Validate(); err != nil {
			return fmt.Errorf("leg %d: %w", i, err)
		}
		switch leg.Side {
		case domain.Debit:
			debits, err = debits.Add(leg.Amount)
		case domain.Credit:
			credits, err = credits.Add(leg.Amount)
		}
		if err != nil {
			return fmt.Errorf("leg %d: %w", i, err)
		}
	}

	if debits.Cmp(credits) != 0 {
		return fmt.Errorf("%w: legs do not balance: debits=%d credits=%d",
			domain.ErrValidation, debits.Nano(), credits.Nano())
	}
	return nil
}

// TransferResult is the recorded outcome of a transfer. Replayed is true when
// the idempotency key had been seen before and nothing new was posted.
type TransferResult struct {
	TransferID uuid.UUID
	Replayed   bool
	CreatedAt  time.Time
}

// Entry is one persisted, immutable leg of a committed transfer.
type Entry struct {
	ID         uuid.UUID
	TransferID uuid.UUID
	Account    domain.AccountID
	EntryType  domain.EntryType
	Amount     domain.Money
	Side       domain.Side
	CreatedAt  time.Time
}

// EntryPage is one page of reverse-chronological account history. An empty
// NextCursor means the history is exhausted.
type EntryPage struct {
	Entries    []Entry
	NextCursor string
}

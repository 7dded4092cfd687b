package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/adlane/settlement/internal/domain"
	"github.com/google/uuid"
)

// ErrDuplicateKey is returned by Store.CreateTransfer when another writer
// committed the same idempotency key first. The engine resolves it by
// re-reading the recorded outcome.
var ErrDuplicateKey = errors.New("idempotency key already recorded")

// TransferRecord is the persisted header of a committed transfer. CreatedAt is
// stamped by the engine at commit time and persisted verbatim, so the result
// of the first commit and of every replay carry the same timestamp.
type TransferRecord struct {
	ID             uuid.UUID
	JournalSeq     int64
	DealID         int64
	IdempotencyKey string
	Description    string
	CreatedAt      time.Time
}

// IDAllocator mints the monotonically increasing journal sequence stamped on
// every committed transfer. Allocation failures are authoritative and fail
// the transfer.
type IDAllocator interface {
	Next(ctx context.Context) (int64, error)
}

// Store is the persistence contract for the engine. Implementations must
// commit CreateTransfer atomically: the transfer row and every entry, or
// nothing.
type Store interface {
	// GetTransferByKey returns the transfer recorded under an idempotency
	// key, or domain.ErrNotFound if the key is unseen.
	GetTransferByKey(ctx context.Context, key string) (TransferRecord, error)

	// CreateTransfer persists the header and all entries in one transaction.
	// A concurrent commit of the same key yields ErrDuplicateKey.
	CreateTransfer(ctx context.Context, rec TransferRecord, entries []Entry) error

	// SumAccountBalance computes sum(credits) - sum(debits) in nano units.
	// Mirror accounts (advertiser funding) may legitimately be negative.
	SumAccountBalance(ctx context.Context, account domain.AccountID) (int64, error)

	// ListEntriesBefore returns up to limit entries for the account, ordered
	// by (created_at, id) descending, strictly before the keyset position
	// when before is non-nil.
	ListEntriesBefore(ctx context.Context, account domain.AccountID, before *EntryKey, limit int) ([]Entry, error)
}

// EntryKey is the keyset position used for pagination.
type EntryKey struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// BalanceCache is the fail-open read-through cache port. Implementations
// absorb backend failures: Get answers "absent" instead of erroring, Put and
// Evict log and move on. The engine stays correct with a no-op cache.
type BalanceCache interface {
	Get(ctx context.Context, account domain.AccountID) (int64, bool)
	Put(ctx context.Context, account domain.AccountID, nano int64)
	Evict(ctx context.Context, account domain.AccountID)
}

// NopCache disables caching; every read goes to the store.
type NopCache struct{}

func (NopCache) Get(context.Context, domain.AccountID) (int64, bool) { return 0, false }
func (NopCache) Put(context.Context, domain.AccountID, int64)        {}
func (NopCache) Evict(context.Context, domain.AccountID)             {}

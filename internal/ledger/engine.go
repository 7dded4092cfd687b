// Package ledger implements the double-entry accounting engine: atomic,
// idempotent transfers, balance reads and account history.
//
// Sign convention (system-wide): a CREDIT increases an account's balance and
// a DEBIT decreases it; balance = sum(credits) - sum(debits).
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adlane/settlement/internal/domain"
	"github.com/adlane/settlement/internal/observability"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Engine posts transfers and answers balance queries. Safe for concurrent use.
type Engine struct {
	store   Store
	cache   BalanceCache
	journal IDAllocator
}

// NewEngine creates an engine over a store. Pass NopCache to disable caching
// and a nil journal to leave transfers unnumbered.
func NewEngine(store Store, cache BalanceCache, journal IDAllocator) *Engine {
	if cache == nil {
		cache = NopCache{}
	}
	return &Engine{store: store, cache: cache, journal: journal}
}

// Transfer validates and posts a balanced transfer. The first submission of
// an idempotency key commits all legs atomically; replays return the
// originally recorded outcome without posting anything.
func (e *Engine) Transfer(ctx context.Context, req TransferRequest) (TransferResult, error) {
	if err := req.Validate(); err != nil {
		return TransferResult{}, err
	}

	if existing, err := e.store.GetTransferByKey(ctx, req.IdempotencyKey); err == nil {
		observability.IncrementTransferReplay()
		return TransferResult{TransferID: existing.ID, Replayed: true, CreatedAt: existing.CreatedAt}, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return TransferResult{}, fmt.Errorf("check idempotency key: %w", err)
	}

	rec := TransferRecord{
		ID:             uuid.New(),
		DealID:         req.DealID,
		IdempotencyKey: req.IdempotencyKey,
		Description:    req.Description,
		CreatedAt:      time.Now().UTC(),
	}
	if e.journal != nil {
		seq, err := e.journal.Next(ctx)
		if err != nil {
			return TransferResult{}, fmt.Errorf("allocate journal sequence: %w", err)
		}
		rec.JournalSeq = seq
	}
	entries := make([]Entry, 0, len(req.Legs))
	for _, leg := range req.Legs {
		entries = append(entries, Entry{
			ID:         uuid.New(),
			TransferID: rec.ID,
			Account:    leg.Account,
			EntryType:  leg.EntryType,
			Amount:     leg.Amount,
			Side:       leg.Side,
			CreatedAt:  rec.CreatedAt,
		})
	}

	if err := e.store.CreateTransfer(ctx, rec, entries); err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			// Lost the race against a concurrent submission of the same key.
			winner, readErr := e.store.GetTransferByKey(ctx, req.IdempotencyKey)
			if readErr != nil {
				return TransferResult{}, fmt.Errorf("read racing transfer: %w", readErr)
			}
			observability.IncrementTransferReplay()
			return TransferResult{TransferID: winner.ID, Replayed: true, CreatedAt: winner.CreatedAt}, nil
		}
		return TransferResult{}, fmt.Errorf("post transfer: %w", err)
	}

	for _, leg := range req.Legs {
		e.cache.Evict(ctx, leg.Account)
	}
	observability.IncrementTransferCommitted()
	zap.L().Debug("transfer committed",
		zap.String("transfer_id", rec.ID.String()),
		zap.String("idempotency_key", req.IdempotencyKey),
		zap.Int("legs", len(req.Legs)))

	return TransferResult{TransferID: rec.ID, Replayed: false, CreatedAt: rec.CreatedAt}, nil
}

// GetBalance returns the account balance in nano units, consulting the cache
// first. Staleness is bounded by the cache TTL and eviction on write.
func (e *Engine) GetBalance(ctx context.Context, account domain.AccountID) (int64, error) {
	if nano, ok := e.cache.Get(ctx, account); ok {
		return nano, nil
	}
	nano, err := e.AuthoritativeBalance(ctx, account)
	if err != nil {
		return 0, err
	}
	e.cache.Put(ctx, account, nano)
	return nano, nil
}

// AuthoritativeBalance bypasses the cache and sums persisted entries. The
// sweep uses it to avoid acting on a stale snapshot.
func (e *Engine) AuthoritativeBalance(ctx context.Context, account domain.AccountID) (int64, error) {
	if account.IsZero() {
		return 0, fmt.Errorf("%w: empty account id", domain.ErrValidation)
	}
	nano, err := e.store.SumAccountBalance(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("sum balance for %s: %w", account, err)
	}
	return nano, nil
}

// GetEntriesByAccount pages through an account's history newest-first. The
// cursor is opaque; an empty NextCursor on the result means end of history.
func (e *Engine) GetEntriesByAccount(ctx context.Context, account domain.AccountID, cursorToken string, limit int) (EntryPage, error) {
	if account.IsZero() {
		return EntryPage{}, fmt.Errorf("%w: empty account id", domain.ErrValidation)
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	var before *EntryKey
	if cursorToken != "" {
		c, err := decodeCursor(cursorToken)
		if err != nil {
			return EntryPage{}, err
		}
		before = &EntryKey{CreatedAt: c.CreatedAt, ID: c.ID}
	}

	// Fetch one extra row to learn whether another page exists.
	entries, err := e.store.ListEntriesBefore(ctx, account, before, limit+1)
	if err != nil {
		return EntryPage{}, fmt.Errorf("list entries for %s: %w", account, err)
	}

	page := EntryPage{Entries: entries}
	if len(entries) > limit {
		page.Entries = entries[:limit]
		last := page.Entries[limit-1]
		page.NextCursor = encodeCursor(cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}

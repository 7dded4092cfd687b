// Package sequence hands out unique int64 ids from a window prefetched in
// bulk from a relational counter, so minting sub-account ids under contention
// costs O(requests / allocationSize) round trips.
package sequence

import (
	"context"
	"fmt"
	"sync"

	"github.com/adlane/settlement/internal/domain"
	"github.com/adlane/settlement/internal/observability"
)

// BatchFetcher reserves size consecutive values from the named backing
// counter in a single round trip and returns the first reserved value.
type BatchFetcher interface {
	NextBatch(ctx context.Context, name string, size int) (first int64, err error)
}

// Allocator owns an in-memory [next, ceiling) window over a backing counter.
// Values from one instance are unique and non-decreasing; windows reserved by
// different instances never overlap because the backing counter only moves
// forward.
type Allocator struct {
	fetcher        BatchFetcher
	name           string
	allocationSize int

	mu      sync.Mutex
	next    int64
	ceiling int64
}

// NewAllocator creates an allocator for the named counter.
func NewAllocator(fetcher BatchFetcher, name string, allocationSize int) (*Allocator, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: sequence name is required", domain.ErrValidation)
	}
	if allocationSize <= 0 {
		return nil, fmt.Errorf("%w: allocation size must be positive, got %d", domain.ErrValidation, allocationSize)
	}
	return &Allocator{fetcher: fetcher, name: name, allocationSize: allocationSize}, nil
}

// Next returns the next id, refilling the window from the backing counter
// when it is exhausted. The refill always requests exactly allocationSize
// values regardless of how many callers are waiting on the lock.
func (a *Allocator) Next(ctx context.Context) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.next >= a.ceiling {
		first, err := a.fetcher.NextBatch(ctx, a.name, a.allocationSize)
		if err != nil {
			return 0, fmt.Errorf("refill sequence %q: %w", a.name, err)
		}
		a.next = first
		a.ceiling = first + int64(a.allocationSize)
		observability.IncrementSequenceRefill()
	}

	id := a.next
	a.next++
	return id, nil
}

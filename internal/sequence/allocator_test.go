package sequence

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/adlane/settlement/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterFetcher emulates the relational counter: each NextBatch reserves a
// consecutive block and returns its first value.
type counterFetcher struct {
	mu      sync.Mutex
	next    int64
	calls   int
	failErr error
}

func (f *counterFetcher) NextBatch(_ context.Context, _ string, size int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return 0, f.failErr
	}
	first := f.next
	f.next += int64(size)
	f.calls++
	return first, nil
}

func TestNewAllocatorValidates(t *testing.T) {
	_, err := NewAllocator(&counterFetcher{}, "", 10)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = NewAllocator(&counterFetcher{}, "journal", 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestNextIsSequentialWithinInstance(t *testing.T) {
	fetcher := &counterFetcher{}
	alloc, err := NewAllocator(fetcher, "journal", 3)
	require.NoError(t, err)
	ctx := context.Background()

	for want := int64(0); want < 7; want++ {
		id, err := alloc.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}
	// 7 ids over windows of 3 means 3 refills.
	assert.Equal(t, 3, fetcher.calls)
}

func TestConcurrentCallersGetDistinctIDs(t *testing.T) {
	const (
		callers   = 10
		idsEach   = 100
		batchSize = 7
	)
	fetcher := &counterFetcher{}
	alloc, err := NewAllocator(fetcher, "journal", batchSize)
	require.NoError(t, err)

	results := make([][]int64, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			ids := make([]int64, 0, idsEach)
			for j := 0; j < idsEach; j++ {
				id, err := alloc.Next(context.Background())
				if err != nil {
					return
				}
				ids = append(ids, id)
			}
			results[slot] = ids
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]struct{}, callers*idsEach)
	for _, ids := range results {
		require.Len(t, ids, idsEach)
		for _, id := range ids {
			_, dup := seen[id]
			require.False(t, dup, "id %d handed out twice", id)
			seen[id] = struct{}{}
		}
	}
	assert.Len(t, seen, callers*idsEach)
}

func TestRefillFailurePropagatesAndRecovers(t *testing.T) {
	fetcher := &counterFetcher{failErr: errors.New("db down")}
	alloc, err := NewAllocator(fetcher, "journal", 5)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = alloc.Next(ctx)
	require.Error(t, err)

	fetcher.failErr = nil
	id, err := alloc.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), id)
}

func TestWindowsFromDistinctInstancesNeverOverlap(t *testing.T) {
	fetcher := &counterFetcher{}
	a, err := NewAllocator(fetcher, "journal", 4)
	require.NoError(t, err)
	b, err := NewAllocator(fetcher, "journal", 4)
	require.NoError(t, err)
	ctx := context.Background()

	seen := map[int64]struct{}{}
	for i := 0; i < 10; i++ {
		idA, err := a.Next(ctx)
		require.NoError(t, err)
		idB, err := b.Next(ctx)
		require.NoError(t, err)
		for _, id := range []int64{idA, idB} {
			_, dup := seen[id]
			require.False(t, dup, "id %d handed out twice", id)
			seen[id] = struct{}{}
		}
	}
}

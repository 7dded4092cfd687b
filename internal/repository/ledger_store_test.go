package repository

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/adlane/settlement/internal/db"
	"github.com/adlane/settlement/internal/domain"
	"github.com/adlane/settlement/internal/ledger"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func init() {
	_ = godotenv.Load("../../.env") // Load from root
}

func connect(t *testing.T) *LedgerStore {
	t.Helper()
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("Skipping integration test: DATABASE_URL not set")
	}
	pool, err := db.Connect(context.Background(), os.Getenv("DATABASE_URL"), 4, 1)
	if err != nil {
		t.Fatalf("Failed to connect to DB: %v", err)
	}
	t.Cleanup(pool.Close)
	return NewLedgerStore(pool)
}

func testTransfer(key string, dealID int64, nano int64) (ledger.TransferRecord, []ledger.Entry) {
	rec := ledger.TransferRecord{
		ID:             uuid.New(),
		DealID:         dealID,
		IdempotencyKey: key,
		Description:    "integration test transfer",
	}
	entries := []ledger.Entry{
		{ID: uuid.New(), TransferID: rec.ID, Account: domain.AdvertiserFundingAccount(dealID), EntryType: domain.EntryEscrowFunding, Amount: domain.MustMoney(nano), Side: domain.Debit},
		{ID: uuid.New(), TransferID: rec.ID, Account: domain.DealEscrowAccount(dealID), EntryType: domain.EntryEscrowFunding, Amount: domain.MustMoney(nano), Side: domain.Credit},
	}
	return rec, entries
}

func TestCreateAndReadTransfer(t *testing.T) {
	store := connect(t)
	ctx := context.Background()

	// Unique deal per run so balance assertions are self-contained.
	dealID := int64(uuid.New().ID())
	key := "it:" + uuid.NewString()

	rec, entries := testTransfer(key, dealID, 1_000_000)
	if err := store.CreateTransfer(ctx, rec, entries); err != nil {
		t.Fatalf("CreateTransfer failed: %v", err)
	}

	got, err := store.GetTransferByKey(ctx, key)
	if err != nil {
		t.Fatalf("GetTransferByKey failed: %v", err)
	}
	if got.ID != rec.ID {
		t.Errorf("Expected transfer ID %s, got %s", rec.ID, got.ID)
	}
	if got.DealID != dealID {
		t.Errorf("Expected deal ID %d, got %d", dealID, got.DealID)
	}

	// Re-inserting the same key must surface the duplicate sentinel.
	dup, dupEntries := testTransfer(key, dealID, 1_000_000)
	if err := store.CreateTransfer(ctx, dup, dupEntries); !errors.Is(err, ledger.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}

	// Credit minus debit per account.
	nano, err := store.SumAccountBalance(ctx, domain.DealEscrowAccount(dealID))
	if err != nil {
		t.Fatalf("SumAccountBalance failed: %v", err)
	}
	if nano != 1_000_000 {
		t.Errorf("Expected escrow balance 1000000, got %d", nano)
	}
	nano, err = store.SumAccountBalance(ctx, domain.AdvertiserFundingAccount(dealID))
	if err != nil {
		t.Fatalf("SumAccountBalance failed: %v", err)
	}
	if nano != -1_000_000 {
		t.Errorf("Expected funding balance -1000000, got %d", nano)
	}
}

func TestGetTransferByKeyNotFound(t *testing.T) {
	store := connect(t)

	_, err := store.GetTransferByKey(context.Background(), "it:missing:"+uuid.NewString())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestListEntriesKeysetPagination(t *testing.T) {
	store := connect(t)
	ctx := context.Background()
	dealID := int64(uuid.New().ID())
	account := domain.DealEscrowAccount(dealID)

	for i := 0; i < 3; i++ {
		rec, entries := testTransfer("it:"+uuid.NewString(), dealID, int64(100+i))
		if err := store.CreateTransfer(ctx, rec, entries); err != nil {
			t.Fatalf("CreateTransfer failed: %v", err)
		}
	}

	first, err := store.ListEntriesBefore(ctx, account, nil, 2)
	if err != nil {
		t.Fatalf("ListEntriesBefore failed: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(first))
	}

	last := first[len(first)-1]
	rest, err := store.ListEntriesBefore(ctx, account, &ledger.EntryKey{CreatedAt: last.CreatedAt, ID: last.ID}, 10)
	if err != nil {
		t.Fatalf("ListEntriesBefore with keyset failed: %v", err)
	}
	if len(rest) != 1 {
		t.Fatalf("Expected 1 remaining entry, got %d", len(rest))
	}
	for _, e := range rest {
		if e.ID == first[0].ID || e.ID == first[1].ID {
			t.Errorf("Entry %s returned on both pages", e.ID)
		}
	}
}

func TestNextBatchReservesDisjointWindows(t *testing.T) {
	store := connect(t)
	ctx := context.Background()
	name := "it_seq_" + uuid.NewString()[:8]

	first, err := store.NextBatch(ctx, name, 10)
	if err != nil {
		t.Fatalf("NextBatch failed: %v", err)
	}
	second, err := store.NextBatch(ctx, name, 10)
	if err != nil {
		t.Fatalf("NextBatch failed: %v", err)
	}
	if second != first+10 {
		t.Errorf("Expected second window to start at %d, got %d", first+10, second)
	}
}

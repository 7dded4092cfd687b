// Package repository is the Postgres persistence layer: the ledger store,
// the sequence backing counter and the commission-account listing.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/adlane/settlement/internal/domain"
	"github.com/adlane/settlement/internal/ledger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

// LedgerStore implements ledger.Store, sweep.AccountSource and
// sequence.BatchFetcher over a pgx pool.
type LedgerStore struct {
	db *pgxpool.Pool
}

func NewLedgerStore(db *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{db: db}
}

// GetTransferByKey looks up the transfer recorded under an idempotency key.
func (s *LedgerStore) GetTransferByKey(ctx context.Context, key string) (ledger.TransferRecord, error) {
	var rec ledger.TransferRecord
	row := s.db.QueryRow(ctx, `
		SELECT id, journal_seq, COALESCE(deal_id, 0), idempotency_key, description, created_at
		FROM transfers
		WHERE idempotency_key = $1
	`, key)
	if err := row.Scan(&rec.ID, &rec.JournalSeq, &rec.DealID, &rec.IdempotencyKey, &rec.Description, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.TransferRecord{}, fmt.Errorf("%w: idempotency key %q", domain.ErrNotFound, key)
		}
		return ledger.TransferRecord{}, fmt.Errorf("get transfer by key: %w", err)
	}
	return rec, nil
}

// CreateTransfer writes the transfer header and all entries atomically. A
// concurrent commit of the same idempotency key surfaces as
// ledger.ErrDuplicateKey via the unique constraint.
func (s *LedgerStore) CreateTransfer(ctx context.Context, rec ledger.TransferRecord, entries []ledger.Entry) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var dealID *int64
	if rec.DealID != 0 {
		dealID = &rec.DealID
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO transfers (id, journal_seq, deal_id, idempotency_key, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.ID, rec.JournalSeq, dealID, rec.IdempotencyKey, rec.Description, rec.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ledger.ErrDuplicateKey
		}
		return fmt.Errorf("insert transfer: %w", err)
	}

	for _, entry := range entries {
		_, err = tx.Exec(ctx, `
			INSERT INTO entries (id, transfer_id, account_id, entry_type, amount_nano, side, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, entry.ID, entry.TransferID, entry.Account.String(), string(entry.EntryType), entry.Amount.Nano(), string(entry.Side), entry.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert entry for %s: %w", entry.Account, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transfer: %w", err)
	}
	return nil
}

// SumAccountBalance computes sum(credits) - sum(debits) in nano units.
func (s *LedgerStore) SumAccountBalance(ctx context.Context, account domain.AccountID) (int64, error) {
	var nano int64
	row := s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE side WHEN 'CREDIT' THEN amount_nano ELSE -amount_nano END), 0)
		FROM entries
		WHERE account_id = $1
	`, account.String())
	if err := row.Scan(&nano); err != nil {
		return 0, fmt.Errorf("sum account balance: %w", err)
	}
	return nano, nil
}

// ListEntriesBefore pages an account's entries newest-first with a keyset on
// (created_at, id).
func (s *LedgerStore) ListEntriesBefore(ctx context.Context, account domain.AccountID, before *ledger.EntryKey, limit int) ([]ledger.Entry, error) {
	query := `
		SELECT id, transfer_id, account_id, entry_type, amount_nano, side, created_at
		FROM entries
		WHERE account_id = $1
	`
	args := []any{account.String()}
	if before != nil {
		query += ` AND (created_at, id) < ($2, $3)`
		args = append(args, before.CreatedAt, before.ID)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT %d`, limit)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		var (
			e          ledger.Entry
			accountRaw string
			entryType  string
			amountNano int64
			side       string
		)
		if err := rows.Scan(&e.ID, &e.TransferID, &accountRaw, &entryType, &amountNano, &side, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if e.Account, err = domain.ParseAccountID(accountRaw); err != nil {
			return nil, err
		}
		if e.Amount, err = domain.NewMoney(amountNano); err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.ID, err)
		}
		e.EntryType = domain.EntryType(entryType)
		e.Side = domain.Side(side)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListCommissionAccountsAbove returns commission accounts whose balance
// exceeds the dust threshold, largest first, bounded by limit.
func (s *LedgerStore) ListCommissionAccountsAbove(ctx context.Context, dustNano int64, limit int) ([]domain.AccountID, error) {
	rows, err := s.db.Query(ctx, `
		SELECT account_id
		FROM entries
		WHERE account_id LIKE 'commission:deal:%'
		GROUP BY account_id
		HAVING SUM(CASE side WHEN 'CREDIT' THEN amount_nano ELSE -amount_nano END) > $1
		ORDER BY SUM(CASE side WHEN 'CREDIT' THEN amount_nano ELSE -amount_nano END) DESC
		LIMIT $2
	`, dustNano, limit)
	if err != nil {
		return nil, fmt.Errorf("list commission accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.AccountID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan commission account: %w", err)
		}
		account, err := domain.ParseAccountID(raw)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// NextBatch reserves size consecutive values from the named counter in one
// round trip and returns the first reserved value.
func (s *LedgerStore) NextBatch(ctx context.Context, name string, size int) (int64, error) {
	var first int64
	row := s.db.QueryRow(ctx, `
		INSERT INTO sequences (name, next_value)
		VALUES ($1, 1 + $2)
		ON CONFLICT (name) DO UPDATE SET next_value = sequences.next_value + $2
		RETURNING next_value - $2
	`, name, size)
	if err := row.Scan(&first); err != nil {
		return 0, fmt.Errorf("reserve sequence batch %q: %w", name, err)
	}
	return first, nil
}

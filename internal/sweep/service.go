// Package sweep implements the scheduled commission settlement: under a
// cluster-wide lock, move every commission balance above the dust threshold
// into the platform treasury.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adlane/settlement/internal/domain"
	"github.com/adlane/settlement/internal/ledger"
	"github.com/adlane/settlement/internal/observability"
	"go.uber.org/zap"
)

const lockKey = "lock:commission-sweep"

// Lock is the distributed lock port.
type Lock interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// Ledger is the slice of the engine the sweep uses.
type Ledger interface {
	Transfer(ctx context.Context, req ledger.TransferRequest) (ledger.TransferResult, error)
	AuthoritativeBalance(ctx context.Context, account domain.AccountID) (int64, error)
}

// AccountSource lists commission-holding accounts whose balance exceeds the
// dust threshold, bounded by limit.
type AccountSource interface {
	ListCommissionAccountsAbove(ctx context.Context, dustNano int64, limit int) ([]domain.AccountID, error)
}

// Config carries the externally configured sweep parameters.
type Config struct {
	DustThresholdNano int64
	BatchSize         int
	LockTTL           time.Duration
}

// Service runs one sweep per invocation.
type Service struct {
	ledger   Ledger
	accounts AccountSource
	lock     Lock
	cfg      Config
	now      func() time.Time
}

func NewService(l Ledger, accounts AccountSource, lock Lock, cfg Config) *Service {
	return &Service{ledger: l, accounts: accounts, lock: lock, cfg: cfg, now: time.Now}
}

// Run executes a single sweep. A lock held elsewhere is a clean skip, not an
// error. Per-account failures are counted and logged but never abort the
// batch; the lock is released on every exit path.
func (s *Service) Run(ctx context.Context) error {
	token, err := s.lock.TryLock(ctx, lockKey, s.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockUnavailable) {
			zap.L().Info("commission sweep skipped, lock held by another instance")
			return nil
		}
		return fmt.Errorf("acquire sweep lock: %w", err)
	}
	defer func() {
		if err := s.lock.Unlock(context.WithoutCancel(ctx), lockKey, token); err != nil {
			zap.L().Warn("release sweep lock failed", zap.Error(err))
		}
	}()

	accounts, err := s.accounts.ListCommissionAccountsAbove(ctx, s.cfg.DustThresholdNano, s.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("list commission accounts: %w", err)
	}
	if len(accounts) == 0 {
		zap.L().Info("commission sweep: nothing above dust threshold")
		return nil
	}

	date := s.now().UTC().Format("2006-01-02")
	var swept, skipped, failed int
	var totalNano int64
	for _, account := range accounts {
		if err := ctx.Err(); err != nil {
			return err
		}
		amount, err := s.sweepAccount(ctx, account, date)
		switch {
		case err != nil:
			failed++
			observability.IncrementSweepAccount("failed")
			zap.L().Error("commission sweep account failed",
				zap.String("account", account.String()), zap.Error(err))
		case amount == 0:
			skipped++
			observability.IncrementSweepAccount("skipped")
		default:
			swept++
			totalNano += amount
			observability.IncrementSweepAccount("swept")
			observability.AddSweepAmount(amount)
		}
	}

	zap.L().Info("commission sweep finished",
		zap.String("date", date),
		zap.Int("swept", swept),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
		zap.Int64("total_nano", totalNano))
	return nil
}

// sweepAccount re-reads the authoritative balance (the listing may be stale)
// and moves it to treasury. The key sweep:{date}:{account} makes the whole
// day's sweep safe to re-run: a replayed transfer posts nothing.
func (s *Service) sweepAccount(ctx context.Context, account domain.AccountID, date string) (int64, error) {
	nano, err := s.ledger.AuthoritativeBalance(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("re-read balance: %w", err)
	}
	if nano <= s.cfg.DustThresholdNano {
		return 0, nil
	}
	amount, err := domain.NewMoney(nano)
	if err != nil {
		return 0, err
	}

	res, err := s.ledger.Transfer(ctx, ledger.TransferRequest{
		IdempotencyKey: fmt.Sprintf("sweep:%s:%s", date, account),
		Legs: []domain.Leg{
			{Account: account, EntryType: domain.EntryCommissionSweep, Amount: amount, Side: domain.Debit},
			{Account: domain.TreasuryAccount(), EntryType: domain.EntryCommissionSweep, Amount: amount, Side: domain.Credit},
		},
		Description: fmt.Sprintf("commission sweep %s of %s", date, amount),
	})
	if err != nil {
		return 0, err
	}
	if res.Replayed {
		return 0, nil
	}
	return nano, nil
}

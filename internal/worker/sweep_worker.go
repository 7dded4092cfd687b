package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/adlane/settlement/internal/observability"
	"github.com/adlane/settlement/internal/sweep"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// SweepWorker triggers the commission sweep on a cron schedule. Multiple
// instances may run the same schedule; the sweep's cluster lock decides which
// one actually works.
type SweepWorker struct {
	svc      *sweep.Service
	spec     string
	cron     *cron.Cron
	stopOnce sync.Once
}

// NewSweepWorker creates a worker for the given cron expression
// (standard 5-field spec, e.g. "0 3 * * *" for daily at 03:00).
func NewSweepWorker(svc *sweep.Service, cronSpec string) (*SweepWorker, error) {
	if _, err := cron.ParseStandard(cronSpec); err != nil {
		return nil, fmt.Errorf("invalid sweep cron expression %q: %w", cronSpec, err)
	}
	return &SweepWorker{svc: svc, spec: cronSpec}, nil
}

// Start schedules the sweep and blocks until the context is canceled.
func (w *SweepWorker) Start(ctx context.Context) {
	zap.L().Info("sweep worker starting", zap.String("cron", w.spec))

	w.cron = cron.New()
	// Parse errors were caught in the constructor.
	_, _ = w.cron.AddFunc(w.spec, func() { w.runOnce(ctx) })
	w.cron.Start()

	<-ctx.Done()
	zap.L().Info("sweep worker context canceled")
	w.Stop()
}

// Stop halts the schedule. In-flight runs finish on their own.
func (w *SweepWorker) Stop() {
	w.stopOnce.Do(func() {
		if w.cron != nil {
			w.cron.Stop()
		}
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *SweepWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

// RunOnce triggers a single sweep immediately. Useful for tests and manual
// re-triggering; the idempotency keys make an extra run harmless.
func (w *SweepWorker) RunOnce(ctx context.Context) error {
	return w.svc.Run(ctx)
}

func (w *SweepWorker) runOnce(ctx context.Context) {
	if err := w.svc.Run(ctx); err != nil {
		observability.IncrementWorkerRun("sweep", "failed")
		zap.L().Error("commission sweep run failed", zap.Error(err))
		return
	}
	observability.IncrementWorkerRun("sweep", "success")
}

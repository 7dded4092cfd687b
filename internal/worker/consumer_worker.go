package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/adlane/settlement/internal/observability"
	"github.com/adlane/settlement/internal/settlement"
	"go.uber.org/zap"
)

// consumerRestartDelay spaces out reconnects after a broker failure.
const consumerRestartDelay = 5 * time.Second

// ConsumerWorker keeps the settlement event consumer running, restarting it
// from the last committed offset after transient broker or handler failures,
// which redelivers any event whose handling failed.
type ConsumerWorker struct {
	consumer *settlement.Consumer
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewConsumerWorker(consumer *settlement.Consumer) *ConsumerWorker {
	return &ConsumerWorker{
		consumer: consumer,
		stopCh:   make(chan struct{}),
	}
}

// Start blocks, consuming until the context is canceled or Stop is called.
func (w *ConsumerWorker) Start(ctx context.Context) {
	zap.L().Info("settlement consumer starting")
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-w.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		err := w.consumer.Run(ctx)
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			zap.L().Info("settlement consumer stopped")
			return
		}
		observability.IncrementWorkerRun("consumer", "failed")
		zap.L().Error("settlement consumer failed, restarting", zap.Error(err), zap.Duration("delay", consumerRestartDelay))

		select {
		case <-ctx.Done():
			return
		case <-time.After(consumerRestartDelay):
		}
	}
}

// Stop signals the worker to stop.
func (w *ConsumerWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *ConsumerWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

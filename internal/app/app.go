package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/adlane/settlement/internal/cache"
	"github.com/adlane/settlement/internal/config"
	"github.com/adlane/settlement/internal/db"
	"github.com/adlane/settlement/internal/escrow"
	"github.com/adlane/settlement/internal/ledger"
	"github.com/adlane/settlement/internal/locker"
	"github.com/adlane/settlement/internal/observability"
	"github.com/adlane/settlement/internal/repository"
	"github.com/adlane/settlement/internal/sequence"
	"github.com/adlane/settlement/internal/settlement"
	"github.com/adlane/settlement/internal/sweep"
	"github.com/adlane/settlement/internal/worker"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const journalSequenceName = "journal"

// Run bootstraps the settlement engine: event consumer, sweep scheduler and
// the ops HTTP listener. Blocks until shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	redisClient, err := newRedisClient(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	store := repository.NewLedgerStore(pool)
	journal, err := sequence.NewAllocator(store, journalSequenceName, cfg.SequenceAllocationSize)
	if err != nil {
		return fmt.Errorf("init journal allocator: %w", err)
	}
	balances := cache.New(redisClient, cfg.BalanceCacheTTL)
	engine := ledger.NewEngine(store, balances, journal)
	escrowSvc := escrow.NewService(engine)

	transitions := settlement.NewTransitionRequester(cfg.KafkaBrokers, cfg.DealTransitionsTopic)
	defer transitions.Close()
	statePublisher := settlement.NewPublisher(cfg.KafkaBrokers, cfg.DealEventsTopic)
	defer statePublisher.Close()

	adapter := settlement.NewAdapter(escrowSvc, transitions, statePublisher)
	consumer := settlement.NewConsumer(cfg.KafkaBrokers, cfg.SettlementTopic, cfg.ConsumerGroup, adapter)
	defer consumer.Close()

	consumerWorker := worker.NewConsumerWorker(consumer)
	stopConsumer := consumerWorker.Run(ctx)
	logger.Info("settlement consumer started",
		zap.Strings("brokers", cfg.KafkaBrokers),
		zap.String("topic", cfg.SettlementTopic),
		zap.String("group", cfg.ConsumerGroup))

	sweepSvc := sweep.NewService(engine, store, locker.NewRedisLock(redisClient), sweep.Config{
		DustThresholdNano: cfg.SweepDustThresholdNano,
		BatchSize:         cfg.SweepBatchSize,
		LockTTL:           cfg.SweepLockTTL,
	})
	sweepWorker, err := worker.NewSweepWorker(sweepSvc, cfg.SweepCron)
	if err != nil {
		return err
	}
	stopSweep := sweepWorker.Run(ctx)
	logger.Info("sweep worker started", zap.String("cron", cfg.SweepCron))

	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("ops http server starting", zap.String("port", cfg.HTTPPort))
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("stopping workers")
	stopConsumer()
	stopSweep()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("ops http server shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce            sync.Once
	transferCounter         *prometheus.CounterVec
	balanceCacheCounter     *prometheus.CounterVec
	sweepAccountsCounter    *prometheus.CounterVec
	sweepAmountCounter      prometheus.Counter
	sequenceRefillCounter   prometheus.Counter
	settlementEventCounter  *prometheus.CounterVec
	workerRunCounter        *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		transferCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_transfers_total",
			Help: "Ledger transfer outcomes",
		}, []string{"outcome"})

		balanceCacheCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "balance_cache_events_total",
			Help: "Balance cache hits, misses and absorbed errors",
		}, []string{"event"})

		sweepAccountsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "commission_sweep_accounts_total",
			Help: "Commission sweep per-account outcomes",
		}, []string{"result"})

		sweepAmountCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "commission_sweep_amount_nano_total",
			Help: "Total nano units swept to treasury",
		})

		sequenceRefillCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sequence_window_refills_total",
			Help: "Bulk ID allocator backing-store refills",
		})

		settlementEventCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_events_total",
			Help: "Settlement events consumed, by type and outcome",
		}, []string{"type", "outcome"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			transferCounter,
			balanceCacheCounter,
			sweepAccountsCounter,
			sweepAmountCounter,
			sequenceRefillCounter,
			settlementEventCounter,
			workerRunCounter,
		)
	})
}

func IncrementTransferCommitted() {
	if transferCounter == nil {
		return
	}
	transferCounter.WithLabelValues("committed").Inc()
}

func IncrementTransferReplay() {
	if transferCounter == nil {
		return
	}
	transferCounter.WithLabelValues("replayed").Inc()
}

func IncrementBalanceCacheEvent(event string) {
	if balanceCacheCounter == nil {
		return
	}
	balanceCacheCounter.WithLabelValues(event).Inc()
}

func IncrementSweepAccount(result string) {
	if sweepAccountsCounter == nil {
		return
	}
	sweepAccountsCounter.WithLabelValues(result).Inc()
}

func AddSweepAmount(nano int64) {
	if sweepAmountCounter == nil || nano <= 0 {
		return
	}
	sweepAmountCounter.Add(float64(nano))
}

func IncrementSequenceRefill() {
	if sequenceRefillCounter == nil {
		return
	}
	sequenceRefillCounter.Inc()
}

func IncrementSettlementEvent(eventType, outcome string) {
	if settlementEventCounter == nil {
		return
	}
	settlementEventCounter.WithLabelValues(eventType, outcome).Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}

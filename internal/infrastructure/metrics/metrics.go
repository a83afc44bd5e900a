package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Movement metrics
	MovementsRecorded    *prometheus.CounterVec
	MovementAmount       prometheus.Histogram
	MovementRejections   *prometheus.CounterVec
	ConcurrencyConflicts prometheus.Counter

	// Balance metrics
	StreamBalance    *prometheus.GaugeVec
	BalanceCacheHits prometheus.Counter
	BalanceCacheMiss prometheus.Counter

	// Reconciliation metrics
	ReconciliationRuns    *prometheus.CounterVec
	ReconciliationDrift   *prometheus.GaugeVec
	CorrectionsApplied    *prometheus.CounterVec
	ReconciliationLatency prometheus.Histogram

	// Chain metrics
	ChainBreaksDetected prometheus.Counter
	ChainRepairs        *prometheus.CounterVec
	DuplicatesRemoved   prometheus.Counter

	// Transfer metrics
	TransfersCreated   prometheus.Counter
	TransfersCancelled prometheus.Counter
	TransferErrors     *prometheus.CounterVec

	// Outbox metrics
	OutboxPublished prometheus.Counter
	OutboxPending   prometheus.Gauge
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return &Metrics{
		// Movement metrics
		MovementsRecorded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_movements_recorded_total",
				Help: "Total number of movements recorded by type and channel",
			},
			[]string{"type", "channel"},
		),
		MovementAmount: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledger_movement_amount",
			Help:    "Absolute movement amounts",
			Buckets: []float64{1, 10, 100, 1000, 10000, 100000, 1000000},
		}),
		MovementRejections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_movement_rejections_total",
				Help: "Total number of rejected movements by reason",
			},
			[]string{"reason"},
		),
		ConcurrencyConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledger_concurrency_conflicts_total",
			Help: "Total number of expected-balance conflicts",
		}),

		// Balance metrics
		StreamBalance: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ledger_stream_balance",
				Help: "Current materialized balance per stream",
			},
			[]string{"point_id", "currency_id"},
		),
		BalanceCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledger_balance_cache_hits_total",
			Help: "Total balance reads served from cache",
		}),
		BalanceCacheMiss: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledger_balance_cache_misses_total",
			Help: "Total balance reads that fell through to the database",
		}),

		// Reconciliation metrics
		ReconciliationRuns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_reconciliation_runs_total",
				Help: "Total reconciliation runs by outcome",
			},
			[]string{"status"},
		),
		ReconciliationDrift: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ledger_reconciliation_drift",
				Help: "Last observed drift (recorded minus theoretical) per stream",
			},
			[]string{"point_id", "currency_id"},
		),
		CorrectionsApplied: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_corrections_applied_total",
				Help: "Total drift corrections applied by mode",
			},
			[]string{"mode"},
		),
		ReconciliationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledger_reconciliation_duration_seconds",
			Help:    "Duration of reconciliation replays",
			Buckets: prometheus.DefBuckets,
		}),

		// Chain metrics
		ChainBreaksDetected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledger_chain_breaks_detected_total",
			Help: "Total chain breaks detected by integrity checks",
		}),
		ChainRepairs: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_chain_repairs_total",
				Help: "Total chain repair runs by mode",
			},
			[]string{"mode"},
		),
		DuplicatesRemoved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledger_duplicates_removed_total",
			Help: "Total duplicate movements removed by sweeps",
		}),

		// Transfer metrics
		TransfersCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledger_transfers_created_total",
			Help: "Total number of transfers created",
		}),
		TransfersCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledger_transfers_cancelled_total",
			Help: "Total number of in-transit transfers cancelled",
		}),
		TransferErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_transfer_errors_total",
				Help: "Total number of transfer errors by type",
			},
			[]string{"error_type"},
		),

		// Outbox metrics
		OutboxPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledger_outbox_published_total",
			Help: "Total outbox events published",
		}),
		OutboxPending: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_outbox_pending",
			Help: "Current number of unpublished outbox events",
		}),
	}
}

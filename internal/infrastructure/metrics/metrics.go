package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation label values
const (
	OperationReserve = "reserve"
	OperationCancel  = "cancel"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Contract metrics
	ContractsCreated  prometheus.Counter
	ContractsCanceled prometheus.Counter
	QuantityReserved  prometheus.Counter
	QuantityRestored  prometheus.Counter
	OperationDuration *prometheus.HistogramVec
	OperationErrors   *prometheus.CounterVec

	// Pre-check metrics
	PrecheckRejections *prometheus.CounterVec

	// Reconciliation metrics
	InconsistentEntries prometheus.Gauge

	// Database metrics
	TxRetries     *prometheus.CounterVec
	DBConnections prometheus.Gauge

	// Outbox metrics
	EventsPublished    *prometheus.CounterVec
	EventPublishErrors *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics on the default registerer
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates all Prometheus metrics and registers them on reg
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Contract metrics
		ContractsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "stockledger_contracts_created_total",
			Help: "Total number of contracts created",
		}),
		ContractsCanceled: factory.NewCounter(prometheus.CounterOpts{
			Name: "stockledger_contracts_canceled_total",
			Help: "Total number of contracts canceled",
		}),
		QuantityReserved: factory.NewCounter(prometheus.CounterOpts{
			Name: "stockledger_quantity_reserved_total",
			Help: "Total stock units taken by created contracts",
		}),
		QuantityRestored: factory.NewCounter(prometheus.CounterOpts{
			Name: "stockledger_quantity_restored_total",
			Help: "Total stock units given back by canceled contracts",
		}),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockledger_operation_duration_seconds",
				Help:    "Duration of reserve and cancel operations including lock waits",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		OperationErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockledger_operation_errors_total",
				Help: "Total number of failed operations by error kind",
			},
			[]string{"operation", "kind"},
		),

		// Pre-check metrics
		PrecheckRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockledger_precheck_rejections_total",
				Help: "Reservations rejected before opening a transaction",
			},
			[]string{"kind"},
		),

		// Reconciliation metrics
		InconsistentEntries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "stockledger_inconsistent_entries",
			Help: "Ledger entries whose stock does not match their active contracts at the last check",
		}),

		// Database metrics
		TxRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockledger_tx_retries_total",
				Help: "Transactions retried after a transient database error",
			},
			[]string{"code"},
		),
		DBConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "stockledger_db_connections",
			Help: "Current number of database connections",
		}),

		// Outbox metrics
		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockledger_events_published_total",
				Help: "Outbox events published",
			},
			[]string{"event_type"},
		),
		EventPublishErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockledger_event_publish_errors_total",
				Help: "Outbox events that failed to publish",
			},
			[]string{"event_type"},
		),
	}
}

package usecase

import (
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"github.com/iho/stockledger/internal/infrastructure/metrics"
)

var tracer = otel.Tracer("github.com/iho/stockledger/internal/usecase")

// Option configures the optional collaborators of a use case.
type Option func(*options)

type options struct {
	auditRepo AuditRepository
	retrier   Retrier
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

func newOptions(opts []Option) options {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithAuditRepository records an audit row inside every write transaction.
func WithAuditRepository(repo AuditRepository) Option {
	return func(o *options) { o.auditRepo = repo }
}

// WithRetrier retries the whole unit of work on transient storage errors.
func WithRetrier(r Retrier) Option {
	return func(o *options) { o.retrier = r }
}

// WithMetrics enables prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

package postgresengine

import (
	"context"
	"errors"
	"time"

	"github.com/circulationkit/library-circulation-go/circulation"
)

var (
	// ErrNilDatabaseConnection is returned when a nil connection (pool) is
	// supplied to a constructor.
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")

	// ErrInvalidFinePolicy is returned when a fine policy with a negative
	// rate or grace period is supplied to WithFinePolicy.
	ErrInvalidFinePolicy = errors.New("fine policy rate and grace days must not be negative")

	// ErrNilClock is returned when a nil clock function is supplied to WithClock.
	ErrNilClock = errors.New("clock function must not be nil")
)

// Logger interface for SQL query logging, operational messages, warnings,
// and error reporting.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ContextualLogger interface for context-aware logging. This interface
// follows the same dependency-free pattern as MetricsCollector and
// TracingCollector, allowing users to integrate with any logging backend
// that supports context-based correlation.
type ContextualLogger interface {
	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// MetricsCollector interface for collecting store performance and
// operational metrics.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
	RecordValue(metric string, value float64, labels map[string]string)
}

// SpanContext represents an active tracing span that can be finished and
// updated with attributes.
type SpanContext interface {
	SetStatus(status string)
	AddAttribute(key, value string)
}

// TracingCollector interface for collecting distributed tracing information
// from store operations. Implementing it lets users integrate with any
// tracing backend without adding a dependency to this module.
type TracingCollector interface {
	StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, SpanContext)
	FinishSpan(spanCtx SpanContext, status string, attrs map[string]string)
}

// Option defines a functional option for configuring CirculationStore.
type Option func(*CirculationStore) error

// WithTablePrefix prefixes all five table names (books, items, patrons,
// loans, fines), e.g. for sharing a database between environments.
func WithTablePrefix(prefix string) Option {
	return func(cs *CirculationStore) error {
		cs.tablePrefix = prefix
		return nil
	}
}

// WithFinePolicy sets the fine assessment policy: the per-day rate in cents
// and the grace period in days. Without this option DefaultFinePolicy applies.
func WithFinePolicy(policy circulation.FinePolicy) Option {
	return func(cs *CirculationStore) error {
		if policy.DailyRateCents < 0 || policy.GraceDays < 0 {
			return ErrInvalidFinePolicy
		}

		cs.finePolicy = policy

		return nil
	}
}

// WithClock sets the time source used for issue, due, return and fine dates.
// Tests inject a fake clock here; production code keeps the default time.Now.
func WithClock(clock func() time.Time) Option {
	return func(cs *CirculationStore) error {
		if clock == nil {
			return ErrNilClock
		}

		cs.clock = clock

		return nil
	}
}

// WithLogger sets the logger for the CirculationStore.
//
// Debug level: SQL queries with execution timing (development use)
// Info level: operation outcomes like loans issued or fines assessed
// Warn level: non-critical issues like cleanup failures
// Error level: critical failures that cause operation failures.
func WithLogger(logger Logger) Option {
	return func(cs *CirculationStore) error {
		cs.logger = logger
		return nil
	}
}

// WithContextualLogger sets the context-aware logger for the CirculationStore.
// When both loggers are configured the contextual one wins.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(cs *CirculationStore) error {
		cs.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the CirculationStore. The
// collector receives per-operation durations and error counters.
func WithMetrics(collector MetricsCollector) Option {
	return func(cs *CirculationStore) error {
		cs.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the CirculationStore. Spans are
// created around the transactional circulation operations.
func WithTracing(collector TracingCollector) Option {
	return func(cs *CirculationStore) error {
		cs.tracingCollector = collector
		return nil
	}
}

package shell

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/circulationkit/library-circulation-go/circulation"
	"github.com/circulationkit/library-circulation-go/circulation/postgresengine"
)

const (
	defaultMaxAttempts  = 4
	defaultBaseDelay    = 25 * time.Millisecond
	defaultJitterFactor = 0.3

	retriesMetric           = "circulation_caller_retries"
	maxRetriesReachedMetric = "circulation_caller_max_retries_reached"
	labelOperation          = "operation"
	labelAttemptNumber      = "attempt_number"
	labelFinalErrorType     = "final_error_type"
)

var (
	// ErrInvalidMaxAttempts is returned when max attempts are not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrNegativeBaseDelay is returned when the base delay is negative.
	ErrNegativeBaseDelay = errors.New("base delay must not be negative")

	// ErrInvalidJitterFactor is returned when the jitter factor is not between 0.0 and 1.0.
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")

	// ErrNilMetricsCollector is returned when a nil metrics collector is provided to WithMetrics.
	ErrNilMetricsCollector = errors.New("metrics collector must not be nil")

	// ErrEmptyOperationName is returned when an empty operation name is provided to WithMetrics.
	ErrEmptyOperationName = errors.New("operation name must not be empty")
)

// RetryableFunc represents a function that can be retried.
type RetryableFunc func(ctx context.Context) error

// retryConfig holds configuration for exponential backoff retry logic.
type retryConfig struct {
	maxAttempts      int
	baseDelay        time.Duration
	jitterFactor     float64
	metricsCollector postgresengine.MetricsCollector
	operation        string
}

// RetryWithExponentialBackoff executes the provided function with
// exponential backoff, retrying only on transient storage failures up to
// maxAttempts times.
//
// Only circulation.ErrStorageUnavailable is retried. Domain outcomes like
// ErrItemUnavailable or ErrDuplicateKey describe real state, retrying them
// cannot succeed, so they fail fast. Context timeouts also fail fast:
// retrying timeouts during overload creates cascade failures.
func RetryWithExponentialBackoff(
	ctx context.Context,
	fn RetryableFunc,
	options ...RetryOption,
) error {
	config := &retryConfig{
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
	}

	for _, option := range options {
		if err := option(config); err != nil {
			return err
		}
	}

	var lastErr error

	for attempt := 0; attempt < config.maxAttempts; attempt++ {
		if attempt > 0 {
			// Exponential backoff: baseDelay * 2^(attempt-1)
			delay := config.baseDelay * time.Duration(1<<(attempt-1))

			// Add jitter to prevent thundering herd
			jitter := rand.Float64() * float64(delay) * config.jitterFactor //nolint:gosec //math/rand is sufficient for jitter
			backoffDelay := delay + time.Duration(jitter)

			select {
			case <-time.After(backoffDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if !isRetryableError(lastErr) {
			return lastErr
		}

		recordRetryAttemptMetric(config, attempt)
	}

	recordMaxRetriesReachedMetric(config, lastErr)

	return lastErr
}

func recordRetryAttemptMetric(config *retryConfig, attempt int) {
	if attempt < config.maxAttempts-1 && config.metricsCollector != nil {
		config.metricsCollector.IncrementCounter(retriesMetric, map[string]string{
			labelOperation:     config.operation,
			labelAttemptNumber: fmt.Sprintf("%d", attempt+1),
		})
	}
}

func recordMaxRetriesReachedMetric(config *retryConfig, lastErr error) {
	if config.metricsCollector != nil {
		config.metricsCollector.IncrementCounter(maxRetriesReachedMetric, map[string]string{
			labelOperation:      config.operation,
			labelFinalErrorType: getErrorType(lastErr),
		})
	}
}

func isRetryableError(err error) bool {
	return errors.Is(err, circulation.ErrStorageUnavailable)
}

// getErrorType extracts a string representation of the error type for metrics labeling.
func getErrorType(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, circulation.ErrStorageUnavailable):
		return "storage_unavailable"
	case errors.Is(err, context.Canceled):
		return "context_canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "context_deadline_exceeded"
	default:
		return "other"
	}
}

// RetryOption configures retry behavior using the functional options pattern.
type RetryOption func(*retryConfig) error

// WithMaxAttempts sets the maximum number of retry attempts.
func WithMaxAttempts(attempts int) RetryOption {
	return func(config *retryConfig) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}

		config.maxAttempts = attempts

		return nil
	}
}

// WithBaseDelay sets the base delay for exponential backoff.
// Actual delays: baseDelay, baseDelay*2, baseDelay*4, etc.
func WithBaseDelay(delay time.Duration) RetryOption {
	return func(config *retryConfig) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}

		config.baseDelay = delay

		return nil
	}
}

// WithJitterFactor sets the jitter factor to prevent thundering herd problems.
// Valid range: 0.0 (no jitter) to 1.0 (100% jitter).
func WithJitterFactor(factor float64) RetryOption {
	return func(config *retryConfig) error {
		if factor < 0.0 || factor > 1.0 {
			return ErrInvalidJitterFactor
		}

		config.jitterFactor = factor

		return nil
	}
}

// WithMetrics sets the metrics collector for retry instrumentation.
// Requires an operation name to properly label metrics.
func WithMetrics(collector postgresengine.MetricsCollector, operation string) RetryOption {
	return func(config *retryConfig) error {
		if collector == nil {
			return ErrNilMetricsCollector
		}

		if operation == "" {
			return ErrEmptyOperationName
		}

		config.metricsCollector = collector
		config.operation = operation

		return nil
	}
}

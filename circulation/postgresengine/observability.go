package postgresengine

import (
	"context"
	"math"
	"time"
)

const (
	metricOperationDuration = "circulation_operation_duration"
	metricOperationErrors   = "circulation_operation_errors"

	spanNamePrefix    = "circulation."
	spanAttrOperation = "operation"
	statusSuccess     = "success"
	statusError       = "error"
)

// logQueryWithDuration logs SQL queries with execution time at debug level
// if a logger is configured.
func (cs *CirculationStore) logQueryWithDuration(ctx context.Context, sqlQuery string, action string, duration time.Duration) {
	switch {
	case cs.contextualLogger != nil:
		cs.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+action, logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery)
	case cs.logger != nil:
		cs.logger.Debug(logMsgSQLExecuted+action, logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

// logOperation logs operational information at info level if a logger is
// configured.
func (cs *CirculationStore) logOperation(ctx context.Context, action string, args ...any) {
	switch {
	case cs.contextualLogger != nil:
		cs.contextualLogger.InfoContext(ctx, logMsgOperation+action, args...)
	case cs.logger != nil:
		cs.logger.Info(logMsgOperation+action, args...)
	}
}

// logWarn logs non-critical issues at warn level if a logger is configured.
func (cs *CirculationStore) logWarn(ctx context.Context, msg string, args ...any) {
	switch {
	case cs.contextualLogger != nil:
		cs.contextualLogger.WarnContext(ctx, msg, args...)
	case cs.logger != nil:
		cs.logger.Warn(msg, args...)
	}
}

// logError logs error information at error level if a logger is configured.
func (cs *CirculationStore) logError(ctx context.Context, msg string, err error, args ...any) {
	allArgs := append([]any{logAttrError, err.Error()}, args...)

	switch {
	case cs.contextualLogger != nil:
		cs.contextualLogger.ErrorContext(ctx, msg, allArgs...)
	case cs.logger != nil:
		cs.logger.Error(msg, allArgs...)
	}
}

// recordDurationMetrics records per-action duration and error metrics if a
// metrics collector is configured.
func (cs *CirculationStore) recordDurationMetrics(action string, duration time.Duration, err error) {
	if cs.metricsCollector == nil {
		return
	}

	status := statusSuccess
	if err != nil {
		status = statusError
	}

	labels := map[string]string{
		spanAttrOperation: action,
		"status":          status,
	}

	cs.metricsCollector.RecordDuration(metricOperationDuration, duration, labels)

	if err != nil {
		cs.metricsCollector.IncrementCounter(metricOperationErrors, labels)
	}
}

// startSpan opens a tracing span for an operation if a tracing collector is
// configured. The returned finish function is nil-safe.
func (cs *CirculationStore) startSpan(ctx context.Context, operation string) (context.Context, func(err error)) {
	if cs.tracingCollector == nil {
		return ctx, func(error) {}
	}

	spanCtx, span := cs.tracingCollector.StartSpan(ctx, spanNamePrefix+operation, map[string]string{
		spanAttrOperation: operation,
	})

	finish := func(err error) {
		status := statusSuccess
		attrs := map[string]string{}

		if err != nil {
			status = statusError
			attrs[logAttrError] = err.Error()
		}

		cs.tracingCollector.FinishSpan(span, status, attrs)
	}

	return spanCtx, finish
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3
// decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

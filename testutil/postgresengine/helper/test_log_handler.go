package helper

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

// TestLogHandler is a slog.Handler implementation that captures log records for testing.
type TestLogHandler struct {
	records     []slog.Record
	mu          sync.Mutex
	logToStdout bool
}

// NewTestLogHandler creates a new TestLogHandler
// Switchable to log to stdout, which can be useful for debugging tests by seeing the actual log output.
func NewTestLogHandler(logToStdOut bool) *TestLogHandler {
	return &TestLogHandler{
		records:     make([]slog.Record, 0),
		logToStdout: logToStdOut,
	}
}

// Handle implements slog.Handler interface.
func (h *TestLogHandler) Handle(ctx context.Context, record slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, record)

	// Optionally also log to stdout for debugging
	if h.logToStdout {
		jsonHandler := slog.NewJSONHandler(os.Stdout, nil)
		_ = jsonHandler.Handle(ctx, record)
	}

	return nil
}

// Enabled implements slog.Handler interface.
func (h *TestLogHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return true // Always enabled for testing
}

// WithAttrs implements slog.Handler interface.
func (h *TestLogHandler) WithAttrs(_ []slog.Attr) slog.Handler {
	// For testing, we don't need to implement this
	return h
}

// WithGroup implements slog.Handler interface.
func (h *TestLogHandler) WithGroup(_ string) slog.Handler {
	// For testing, we don't need to implement this
	return h
}

// GetRecordCount returns the number of captured log records.
func (h *TestLogHandler) GetRecordCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.records)
}

// Reset clears all captured log records.
func (h *TestLogHandler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = h.records[:0]
}

// HasDebugLog checks if there's a debug-level log record containing the specified message.
func (h *TestLogHandler) HasDebugLog(message string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, record := range h.records {
		if record.Level == slog.LevelDebug && record.Message == message {
			return true
		}
	}

	return false
}

// HasInfoLog checks if there's an info-level log record containing the specified message.
func (h *TestLogHandler) HasInfoLog(message string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, record := range h.records {
		if record.Level == slog.LevelInfo && record.Message == message {
			return true
		}
	}

	return false
}

// HasDebugLogWithDurationMS checks if there is a debug-level log record with the specified message
// that contains a duration_ms attribute with a non-negative value.
func (h *TestLogHandler) HasDebugLogWithDurationMS(message string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, record := range h.records {
		if record.Level != slog.LevelDebug || record.Message != message {
			continue
		}

		hasDurationMS := false
		record.Attrs(func(attr slog.Attr) bool {
			if attr.Key == "duration_ms" && attr.Value.Float64() >= 0 {
				hasDurationMS = true
				return false // Stop iteration
			}

			return true // Continue iteration
		})

		if hasDurationMS {
			return true
		}
	}

	return false
}

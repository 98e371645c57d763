package helper

import (
	"context"
	"sync"

	"github.com/circulationkit/library-circulation-go/circulation/postgresengine"
)

// TracingCollectorSpy is a TracingCollector implementation that captures
// span lifecycles for testing.
type TracingCollectorSpy struct {
	spans []*SpySpan
	mu    sync.Mutex
}

// SpySpan records one span from start to finish.
type SpySpan struct {
	Name       string
	Attributes map[string]string
	Status     string
	Finished   bool
}

// SetStatus implements the SpanContext interface.
func (s *SpySpan) SetStatus(status string) {
	s.Status = status
}

// AddAttribute implements the SpanContext interface.
func (s *SpySpan) AddAttribute(key, value string) {
	s.Attributes[key] = value
}

// NewTracingCollectorSpy creates a new TracingCollectorSpy.
func NewTracingCollectorSpy() *TracingCollectorSpy {
	return &TracingCollectorSpy{spans: make([]*SpySpan, 0)}
}

// StartSpan implements the TracingCollector interface.
func (t *TracingCollectorSpy) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, postgresengine.SpanContext) {
	t.mu.Lock()
	defer t.mu.Unlock()

	span := &SpySpan{
		Name:       name,
		Attributes: copyLabels(attrs),
	}
	t.spans = append(t.spans, span)

	return ctx, span
}

// FinishSpan implements the TracingCollector interface.
func (t *TracingCollectorSpy) FinishSpan(spanCtx postgresengine.SpanContext, status string, attrs map[string]string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	span, ok := spanCtx.(*SpySpan)
	if !ok {
		return
	}

	span.Status = status
	span.Finished = true

	for k, v := range attrs {
		span.Attributes[k] = v
	}
}

// GetSpans returns all captured spans.
func (t *TracingCollectorSpy) GetSpans() []*SpySpan {
	t.mu.Lock()
	defer t.mu.Unlock()

	spans := make([]*SpySpan, len(t.spans))
	copy(spans, t.spans)

	return spans
}

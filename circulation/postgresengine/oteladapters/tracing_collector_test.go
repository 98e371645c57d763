package oteladapters_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/circulationkit/library-circulation-go/circulation/postgresengine/oteladapters"
)

func Test_NewTracingCollector_Construction(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := trace.NewTracerProvider(trace.WithSyncer(exporter))
	tracer := provider.Tracer("circulation")

	collector := oteladapters.NewTracingCollector(tracer)

	assert.NotNil(t, collector, "NewTracingCollector should return non-nil collector")
}

func Test_TracingCollector_StartAndFinishSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := trace.NewTracerProvider(trace.WithSyncer(exporter))
	tracer := provider.Tracer("circulation")

	collector := oteladapters.NewTracingCollector(tracer)

	attrs := map[string]string{
		"operation": "issue_loan",
		"patron_id": "P-0001",
	}

	ctx, spanCtx := collector.StartSpan(context.Background(), "circulation.issue_loan", attrs)

	assert.NotNil(t, ctx, "Context should not be nil")
	assert.NotNil(t, spanCtx, "SpanContext should not be nil")

	collector.FinishSpan(spanCtx, "success", map[string]string{"result": "ok"})

	spans := exporter.GetSpans()
	require.Len(t, spans, 1, "Expected exactly one span")

	span := spans[0]
	assert.Equal(t, "circulation.issue_loan", span.Name, "Span name should match")

	assertSpanHasAttribute(t, span, "operation", "issue_loan")
	assertSpanHasAttribute(t, span, "patron_id", "P-0001")
	assertSpanHasAttribute(t, span, "result", "ok")

	assert.Equal(t, codes.Ok, span.Status.Code, "Span should have OK status")
}

func Test_TracingCollector_FinishSpan_Error(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := trace.NewTracerProvider(trace.WithSyncer(exporter))
	tracer := provider.Tracer("circulation")

	collector := oteladapters.NewTracingCollector(tracer)

	_, spanCtx := collector.StartSpan(context.Background(), "circulation.return_loan", nil)
	collector.FinishSpan(spanCtx, "error", map[string]string{
		"error_type": "already_returned",
	})

	spans := exporter.GetSpans()
	require.Len(t, spans, 1, "Expected exactly one span")

	span := spans[0]
	assert.Equal(t, codes.Error, span.Status.Code, "Span should have Error status")
	assert.Equal(t, "Operation failed", span.Status.Description, "Error description should match")
	assertSpanHasAttribute(t, span, "error_type", "already_returned")
}

func Test_TracingCollector_StatusMapping(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := trace.NewTracerProvider(trace.WithSyncer(exporter))
	tracer := provider.Tracer("circulation")

	collector := oteladapters.NewTracingCollector(tracer)

	testCases := []struct {
		status              string
		expectedCode        codes.Code
		expectedDescription string
	}{
		{"ok", codes.Ok, ""},
		{"success", codes.Ok, ""},
		{"completed", codes.Ok, ""},
		{"error", codes.Error, "Operation failed"},
		{"failed", codes.Error, "Operation failed"},
		{"cancelled", codes.Error, "Operation cancelled"},
		{"timeout", codes.Error, "Operation timed out"},
		{"conflict", codes.Error, "Concurrency conflict"},
	}

	for _, tc := range testCases {
		t.Run(tc.status, func(t *testing.T) {
			exporter.Reset()

			_, spanCtx := collector.StartSpan(context.Background(), "test", nil)
			collector.FinishSpan(spanCtx, tc.status, nil)

			spans := exporter.GetSpans()
			require.Len(t, spans, 1, "Expected exactly one span")

			span := spans[0]
			assert.Equal(t, tc.expectedCode, span.Status.Code, "Status code should match")
			assert.Equal(t, tc.expectedDescription, span.Status.Description, "Status description should match")
		})
	}
}

func Test_TracingCollector_UnknownStatus(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := trace.NewTracerProvider(trace.WithSyncer(exporter))
	tracer := provider.Tracer("circulation")

	collector := oteladapters.NewTracingCollector(tracer)

	_, spanCtx := collector.StartSpan(context.Background(), "test", nil)
	collector.FinishSpan(spanCtx, "unknown_status", nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1, "Expected exactly one span")

	// Unknown status becomes an attribute, not a span status
	assertSpanHasAttribute(t, spans[0], "status", "unknown_status")
}

func Test_TracingCollector_ContextPropagation(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := trace.NewTracerProvider(trace.WithSyncer(exporter))
	tracer := provider.Tracer("circulation")

	collector := oteladapters.NewTracingCollector(tracer)

	parentCtx, parentSpan := tracer.Start(context.Background(), "parent-operation")
	defer parentSpan.End()

	childCtx, childSpanCtx := collector.StartSpan(parentCtx, "circulation.issue_loan", nil)
	collector.FinishSpan(childSpanCtx, "ok", nil)

	assert.NotEqual(t, parentCtx, childCtx, "Child context should be different from parent")

	spans := exporter.GetSpans()
	require.Len(t, spans, 1, "Expected exactly one span from collector")

	childSpan := spans[0]
	assert.Equal(t, "circulation.issue_loan", childSpan.Name, "Child span name should match")
	assert.Equal(t, parentSpan.SpanContext().SpanID(), childSpan.Parent.SpanID(), "Child should have correct parent")
}

func Test_TracingCollector_ForeignSpanContext(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := trace.NewTracerProvider(trace.WithSyncer(exporter))
	tracer := provider.Tracer("circulation")

	collector := oteladapters.NewTracingCollector(tracer)

	foreignSpanCtx := &foreignSpanContext{}

	assert.NotPanics(t, func() {
		collector.FinishSpan(foreignSpanCtx, "ok", map[string]string{"test": "value"})
	}, "FinishSpan should not panic with a foreign SpanContext")

	spans := exporter.GetSpans()
	assert.Len(t, spans, 0, "No spans should be recorded for a foreign SpanContext")
}

func Test_OTelSpanContext_Methods(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := trace.NewTracerProvider(trace.WithSyncer(exporter))
	tracer := provider.Tracer("circulation")

	collector := oteladapters.NewTracingCollector(tracer)

	_, spanCtx := collector.StartSpan(context.Background(), "circulation.assess_fine", nil)

	spanCtx.AddAttribute("amount_cents", "300")
	collector.FinishSpan(spanCtx, "completed", nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1, "Expected exactly one span")

	span := spans[0]
	assert.Equal(t, "circulation.assess_fine", span.Name, "Span name should match")
	assert.Equal(t, codes.Ok, span.Status.Code, "Span should have OK status")
	assertSpanHasAttribute(t, span, "amount_cents", "300")
}

// foreignSpanContext implements postgresengine.SpanContext but is not an *OTelSpanContext
type foreignSpanContext struct{}

func (m *foreignSpanContext) SetStatus(status string)        {}
func (m *foreignSpanContext) AddAttribute(key, value string) {}

func assertSpanHasAttribute(t *testing.T, span tracetest.SpanStub, key, expectedValue string) {
	t.Helper()
	found := false
	for _, attr := range span.Attributes {
		if attr.Key == attribute.Key(key) && attr.Value.AsString() == expectedValue {
			found = true
			break
		}
	}
	assert.True(t, found, "Span should have attribute %s=%s", key, expectedValue)
}

package oteladapters_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/circulationkit/library-circulation-go/circulation/postgresengine/oteladapters"
)

func Test_NewMetricsCollector_Construction(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("circulation")

	collector := oteladapters.NewMetricsCollector(meter)

	assert.NotNil(t, collector, "NewMetricsCollector should return non-nil collector")
}

func Test_MetricsCollector_RecordDuration(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("circulation")

	collector := oteladapters.NewMetricsCollector(meter)

	labels := map[string]string{
		"operation": "issue_loan",
		"status":    "success",
	}

	collector.RecordDuration("circulation_operation_duration", 150*time.Millisecond, labels)

	var resourceMetrics metricdata.ResourceMetrics
	err := reader.Collect(context.Background(), &resourceMetrics)
	require.NoError(t, err, "Failed to collect metrics")

	histogram := findHistogramMetric(t, resourceMetrics, "circulation_operation_duration")
	require.Len(t, histogram.DataPoints, 1, "Expected exactly one data point")

	dataPoint := histogram.DataPoints[0]

	// 150 ms = 0.15 seconds
	assert.Equal(t, uint64(1), dataPoint.Count, "Histogram count should be 1")
	assert.InDelta(t, 0.15, dataPoint.Sum, 0.001, "Histogram sum should be 0.15 seconds")

	expectedAttrs := attribute.NewSet(
		attribute.String("operation", "issue_loan"),
		attribute.String("status", "success"),
	)
	assert.True(t, dataPoint.Attributes.Equals(&expectedAttrs), "Attributes should match")
}

func Test_MetricsCollector_IncrementCounter(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("circulation")

	collector := oteladapters.NewMetricsCollector(meter)

	labels := map[string]string{
		"operation":  "return_loan",
		"error_type": "already_returned",
	}

	collector.IncrementCounter("circulation_operation_errors", labels)
	collector.IncrementCounter("circulation_operation_errors", labels)
	collector.IncrementCounter("circulation_operation_errors", labels)

	var resourceMetrics metricdata.ResourceMetrics
	err := reader.Collect(context.Background(), &resourceMetrics)
	require.NoError(t, err, "Failed to collect metrics")

	counter := findCounterMetric(t, resourceMetrics, "circulation_operation_errors")
	require.Len(t, counter.DataPoints, 1, "Expected exactly one data point")

	dataPoint := counter.DataPoints[0]

	assert.Equal(t, int64(3), dataPoint.Value, "Counter should have been incremented 3 times")

	expectedAttrs := attribute.NewSet(
		attribute.String("operation", "return_loan"),
		attribute.String("error_type", "already_returned"),
	)
	assert.True(t, dataPoint.Attributes.Equals(&expectedAttrs), "Attributes should match")
}

func Test_MetricsCollector_RecordValue(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("circulation")

	collector := oteladapters.NewMetricsCollector(meter)

	collector.RecordValue("circulation_open_loans", 42.0, map[string]string{"status": "success"})

	var resourceMetrics metricdata.ResourceMetrics
	err := reader.Collect(context.Background(), &resourceMetrics)
	require.NoError(t, err, "Failed to collect metrics")

	gauge := findGaugeMetric(t, resourceMetrics, "circulation_open_loans")
	require.Len(t, gauge.DataPoints, 1, "Expected exactly one data point")

	assert.Equal(t, 42.0, gauge.DataPoints[0].Value, "Gauge value should be 42.0")
}

func Test_MetricsCollector_NilLabels(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("circulation")

	collector := oteladapters.NewMetricsCollector(meter)

	collector.RecordDuration("circulation_operation_duration", 50*time.Millisecond, nil)

	var resourceMetrics metricdata.ResourceMetrics
	err := reader.Collect(context.Background(), &resourceMetrics)
	require.NoError(t, err, "Failed to collect metrics")

	found := false
	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if m.Name == "circulation_operation_duration" {
				found = true
				break
			}
		}
	}

	assert.True(t, found, "Metric should be recorded even with nil labels")
}

func Test_MetricsCollector_InstrumentReuse(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("circulation")

	collector := oteladapters.NewMetricsCollector(meter)

	collector.RecordDuration("reused_histogram", 100*time.Millisecond, nil)
	collector.RecordDuration("reused_histogram", 200*time.Millisecond, nil)

	collector.IncrementCounter("reused_counter", nil)
	collector.IncrementCounter("reused_counter", nil)
	collector.IncrementCounter("reused_counter", nil)

	collector.RecordValue("reused_gauge", 10.0, nil)
	collector.RecordValue("reused_gauge", 20.0, nil)

	var resourceMetrics metricdata.ResourceMetrics
	err := reader.Collect(context.Background(), &resourceMetrics)
	require.NoError(t, err, "Failed to collect metrics")

	histogram := findHistogramMetric(t, resourceMetrics, "reused_histogram")
	assert.Equal(t, uint64(2), histogram.DataPoints[0].Count, "Should have recorded two durations")

	counter := findCounterMetric(t, resourceMetrics, "reused_counter")
	assert.Equal(t, int64(3), counter.DataPoints[0].Value, "Should have incremented counter 3 times")

	// gauges keep the last value
	gauge := findGaugeMetric(t, resourceMetrics, "reused_gauge")
	assert.Equal(t, 20.0, gauge.DataPoints[0].Value, "Should have the last recorded gauge value")
}

func findHistogramMetric(t *testing.T, resourceMetrics metricdata.ResourceMetrics, name string) *metricdata.Histogram[float64] {
	t.Helper()
	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if m.Name == name {
				if h, ok := m.Data.(metricdata.Histogram[float64]); ok {
					return &h
				}
			}
		}
	}
	t.Fatalf("Histogram metric %s not found", name)
	return nil // This will never be reached
}

func findCounterMetric(t *testing.T, resourceMetrics metricdata.ResourceMetrics, name string) *metricdata.Sum[int64] {
	t.Helper()
	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if m.Name == name {
				if c, ok := m.Data.(metricdata.Sum[int64]); ok {
					return &c
				}
			}
		}
	}
	t.Fatalf("Counter metric %s not found", name)
	return nil // This will never be reached
}

func findGaugeMetric(t *testing.T, resourceMetrics metricdata.ResourceMetrics, name string) *metricdata.Gauge[float64] {
	t.Helper()
	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if m.Name == name {
				if g, ok := m.Data.(metricdata.Gauge[float64]); ok {
					return &g
				}
			}
		}
	}
	t.Fatalf("Gauge metric %s not found", name)
	return nil // This will never be reached
}

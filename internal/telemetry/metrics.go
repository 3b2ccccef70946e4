package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/airdash/airdash/internal/telemetry"

// ProviderMetrics holds metrics for external provider calls.
type ProviderMetrics struct {
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
}

// NewProviderMetrics creates metrics for monitoring external provider calls.
func NewProviderMetrics() (*ProviderMetrics, error) {
	meter := otel.Meter(meterName)

	requestDuration, err := meter.Float64Histogram(
		"provider.request.duration",
		metric.WithDescription("Duration of provider requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"provider.request.total",
		metric.WithDescription("Total number of provider requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &ProviderMetrics{
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
	}, nil
}

// RecordRequest records metrics for a provider request.
func (m *ProviderMetrics) RecordRequest(provider, operation string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("provider.name", provider),
		attribute.String("provider.operation", operation),
	}
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}

	// Recorded after the request context may already be done.
	ctx := context.Background()
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// DatasetMetrics counts dataset loads and reloads.
type DatasetMetrics struct {
	loadTotal metric.Int64Counter
	rows      metric.Int64Gauge
}

// NewDatasetMetrics creates metrics for dataset loads.
func NewDatasetMetrics() (*DatasetMetrics, error) {
	meter := otel.Meter(meterName)

	loadTotal, err := meter.Int64Counter(
		"dataset.load.total",
		metric.WithDescription("Total number of dataset loads"),
		metric.WithUnit("{load}"),
	)
	if err != nil {
		return nil, err
	}

	rows, err := meter.Int64Gauge(
		"dataset.rows",
		metric.WithDescription("Rows in the current dataset snapshot"),
		metric.WithUnit("{row}"),
	)
	if err != nil {
		return nil, err
	}

	return &DatasetMetrics{loadTotal: loadTotal, rows: rows}, nil
}

// RecordLoad records a load attempt of the named dataset.
func (m *DatasetMetrics) RecordLoad(name string, rows int, err error) {
	attrs := []attribute.KeyValue{attribute.String("dataset.name", name)}
	ctx := context.Background()
	if err != nil {
		m.loadTotal.Add(ctx, 1, metric.WithAttributes(append(attrs, attribute.Bool("error", true))...))
		return
	}
	m.loadTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.rows.Record(ctx, int64(rows), metric.WithAttributes(attrs...))
}

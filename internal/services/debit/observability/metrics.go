// Package observability records operational metrics for lifecycle operations.
//
// Counters and duration histograms are registered against the global
// OpenTelemetry meter provider. When no provider is configured the global
// meter is a no-op, so recording is always safe.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/louisbranch/debitflow/internal/services/debit"

// Metrics records debit transaction counters and latency measurements.
// A nil Metrics records nothing, which keeps tests and optional wiring simple.
type Metrics struct {
	created   metric.Int64Counter
	processed metric.Int64Counter
	failed    metric.Int64Counter
	retried   metric.Int64Counter

	creationDuration   metric.Float64Histogram
	processingDuration metric.Float64Histogram

	clock func() time.Time
}

// NewMetrics registers the debit transaction instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	created, err := meter.Int64Counter("debit.transactions.created",
		metric.WithDescription("Debit transactions created"))
	if err != nil {
		return nil, err
	}
	processed, err := meter.Int64Counter("debit.transactions.processed",
		metric.WithDescription("Debit transactions moved to processing"))
	if err != nil {
		return nil, err
	}
	failed, err := meter.Int64Counter("debit.transactions.failed",
		metric.WithDescription("Debit transactions with failed settlement"))
	if err != nil {
		return nil, err
	}
	retried, err := meter.Int64Counter("debit.transactions.retried",
		metric.WithDescription("Debit transaction retry attempts"))
	if err != nil {
		return nil, err
	}
	creationDuration, err := meter.Float64Histogram("debit.transaction.creation.duration",
		metric.WithDescription("Creation latency in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	processingDuration, err := meter.Float64Histogram("debit.transaction.processing.duration",
		metric.WithDescription("Processing latency in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		created:            created,
		processed:          processed,
		failed:             failed,
		retried:            retried,
		creationDuration:   creationDuration,
		processingDuration: processingDuration,
		clock:              time.Now,
	}, nil
}

// RecordCreated increments the created counter.
func (m *Metrics) RecordCreated(ctx context.Context) {
	if m == nil || m.created == nil {
		return
	}
	m.created.Add(ctx, 1)
}

// RecordProcessed increments the processed counter.
func (m *Metrics) RecordProcessed(ctx context.Context) {
	if m == nil || m.processed == nil {
		return
	}
	m.processed.Add(ctx, 1)
}

// RecordFailed increments the failed counter.
func (m *Metrics) RecordFailed(ctx context.Context) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.Add(ctx, 1)
}

// RecordRetried increments the retry counter.
func (m *Metrics) RecordRetried(ctx context.Context) {
	if m == nil || m.retried == nil {
		return
	}
	m.retried.Add(ctx, 1)
}

// TimerSample scopes one latency measurement between start and stop.
type TimerSample struct {
	start     time.Time
	histogram metric.Float64Histogram
	clock     func() time.Time
}

// StartCreationTimer begins a creation latency sample.
func (m *Metrics) StartCreationTimer() TimerSample {
	return m.startTimer(m.histogramOrNil(func(m *Metrics) metric.Float64Histogram { return m.creationDuration }))
}

// StartProcessingTimer begins a processing latency sample.
func (m *Metrics) StartProcessingTimer() TimerSample {
	return m.startTimer(m.histogramOrNil(func(m *Metrics) metric.Float64Histogram { return m.processingDuration }))
}

func (m *Metrics) histogramOrNil(pick func(*Metrics) metric.Float64Histogram) metric.Float64Histogram {
	if m == nil {
		return nil
	}
	return pick(m)
}

func (m *Metrics) startTimer(histogram metric.Float64Histogram) TimerSample {
	clock := time.Now
	if m != nil && m.clock != nil {
		clock = m.clock
	}
	return TimerSample{
		start:     clock(),
		histogram: histogram,
		clock:     clock,
	}
}

// Stop records the elapsed duration. A zero sample records nothing.
func (s TimerSample) Stop(ctx context.Context) {
	if s.histogram == nil || s.start.IsZero() {
		return
	}
	clock := s.clock
	if clock == nil {
		clock = time.Now
	}
	s.histogram.Record(ctx, clock().Sub(s.start).Seconds())
}

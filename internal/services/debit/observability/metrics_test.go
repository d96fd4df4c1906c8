package observability

import (
	"context"
	"testing"
)

func TestNewMetricsRegistersInstruments(t *testing.T) {
	metrics, err := NewMetrics()
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	if metrics == nil {
		t.Fatal("expected metrics instance")
	}

	// The global provider defaults to no-op; recording must not panic.
	ctx := context.Background()
	metrics.RecordCreated(ctx)
	metrics.RecordProcessed(ctx)
	metrics.RecordFailed(ctx)
	metrics.RecordRetried(ctx)

	sample := metrics.StartCreationTimer()
	sample.Stop(ctx)
	metrics.StartProcessingTimer().Stop(ctx)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var metrics *Metrics
	ctx := context.Background()

	metrics.RecordCreated(ctx)
	metrics.RecordProcessed(ctx)
	metrics.RecordFailed(ctx)
	metrics.RecordRetried(ctx)
	metrics.StartCreationTimer().Stop(ctx)
	metrics.StartProcessingTimer().Stop(ctx)
}

func TestZeroTimerSampleIsSafe(t *testing.T) {
	var sample TimerSample
	sample.Stop(context.Background())
}

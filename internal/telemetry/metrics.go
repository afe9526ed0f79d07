package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SyncMetricsMeterName is the name used for the sync metrics meter
const SyncMetricsMeterName = "github.com/kmjayadeep/baskit-sub000/sync"

// SyncMetrics holds the OpenTelemetry instruments for sync engine metrics
type SyncMetrics struct {
	snapshotsTotal   metric.Int64Counter
	snapshotDuration metric.Float64Histogram
	snapshotLists    metric.Int64Gauge
	entityFailures   metric.Int64Counter
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter
// provider. If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	snapshotsTotal, err := meter.Int64Counter(
		"baskit_syncd_snapshots_total",
		metric.WithDescription("Number of snapshots processed per sync direction"),
		metric.WithUnit("{snapshot}"),
	)
	if err != nil {
		return nil, err
	}

	snapshotDuration, err := meter.Float64Histogram(
		"baskit_syncd_snapshot_apply_duration_seconds",
		metric.WithDescription("Time spent applying one snapshot in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, err
	}

	snapshotLists, err := meter.Int64Gauge(
		"baskit_syncd_snapshot_lists",
		metric.WithDescription("Number of lists in the most recent snapshot"),
		metric.WithUnit("{list}"),
	)
	if err != nil {
		return nil, err
	}

	entityFailures, err := meter.Int64Counter(
		"baskit_syncd_entity_failures_total",
		metric.WithDescription("Number of per-entity store operation failures"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		snapshotsTotal:   snapshotsTotal,
		snapshotDuration: snapshotDuration,
		snapshotLists:    snapshotLists,
		entityFailures:   entityFailures,
	}, nil
}

// RecordSnapshot records one processed snapshot for a sync direction
func (m *SyncMetrics) RecordSnapshot(ctx context.Context, direction string, listCount int, elapsed time.Duration) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("direction", direction),
	}

	m.snapshotsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.snapshotDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attrs...))
	m.snapshotLists.Record(ctx, int64(listCount), metric.WithAttributes(attrs...))
}

// RecordEntityFailure records a per-entity store operation failure
func (m *SyncMetrics) RecordEntityFailure(ctx context.Context, direction, op string) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("direction", direction),
		attribute.String("op", op),
	}

	m.entityFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	"github.com/marketfeed/kstream/stream"
)

// snapshotSource is the subset of *stream.Runtime this package depends
// on, so tests can supply a fake snapshot.
type snapshotSource interface {
	Metrics() stream.Snapshot
}

// RegisterSnapshotGauges registers one observable gauge per counter in
// stream.Snapshot against meter, sampling rt.Metrics() on every collect.
// This is the bridge between the runtime's own atomic counters (spec.md
// §9) and OpenTelemetry's instrument model; nothing in the teacher pulls
// metrics from a snapshot struct like this since its business logic owns
// its OTEL instruments directly, so the callback shape here is new,
// built from spec.md §9's counter list over the provider plumbing above.
func RegisterSnapshotGauges(meter metric.Meter, rt snapshotSource) error {
	gauges := []struct {
		name string
		desc string
		get  func(stream.Snapshot) int64
	}{
		{"kstream.messages.received", "total frames received", func(s stream.Snapshot) int64 { return s.MessagesReceived }},
		{"kstream.messages.processed", "total frames dispatched", func(s stream.Snapshot) int64 { return s.MessagesProcessed }},
		{"kstream.messages.dropped", "total frames dropped by queue overflow", func(s stream.Snapshot) int64 { return s.MessagesDropped }},
		{"kstream.queue.depth", "current queue depth", func(s stream.Snapshot) int64 { return int64(s.QueueDepth) }},
		{"kstream.connection.state", "0=disconnected 1=connecting 2=connected 3=reconnecting", func(s stream.Snapshot) int64 { return int64(s.ConnectionState) }},
		{"kstream.latency.max_micros", "max observed end-to-end latency in microseconds", func(s stream.Snapshot) int64 { return s.LatencyMaxMicros }},
		{"kstream.reconnects", "total reconnect attempts", func(s stream.Snapshot) int64 { return s.ReconnectAttempts }},
		{"kstream.checksum_failures", "total order book checksum mismatches", func(s stream.Snapshot) int64 { return s.ChecksumFailures }},
		{"kstream.gaps_detected", "total sequence gaps detected", func(s stream.Snapshot) int64 { return s.GapsDetected }},
		{"kstream.alerts_triggered", "total strategy alerts fired", func(s stream.Snapshot) int64 { return s.AlertsTriggered }},
		{"kstream.heartbeats_received", "total heartbeats received", func(s stream.Snapshot) int64 { return s.HeartbeatsReceived }},
	}

	for _, g := range gauges {
		get := g.get
		_, err := meter.Int64ObservableGauge(g.name,
			metric.WithDescription(g.desc),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(get(rt.Metrics()))
				return nil
			}),
		)
		if err != nil {
			return fmt.Errorf("telemetry: registering %s: %w", g.name, err)
		}
	}
	return nil
}

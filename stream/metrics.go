package stream

import (
	"sync/atomic"
	"time"
)

// ConnectionState is the runtime's externally observable connection
// state, exposed via Metrics and consumed by dashboards (see
// cmd/streamdemo).
type ConnectionState int32

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Reconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// metrics holds every atomic counter the spec's external metrics
// snapshot exposes. Grounded on business/arbitrage/app/detector.go's
// OTEL-instrument style, but kept as plain atomics here (not OTEL
// instruments) since this is the runtime's internal hot-path counter
// set; the telemetry package periodically copies a Snapshot into OTEL
// gauges/counters instead of incrementing OTEL instruments directly on
// every event, avoiding instrument contention on the I/O/dispatch path.
type metrics struct {
	messagesReceived   atomic.Int64
	messagesProcessed  atomic.Int64
	messagesDropped    atomic.Int64
	connectionState    atomic.Int32
	latencyMaxMicros   atomic.Int64
	reconnectAttempts  atomic.Int64
	checksumFailures   atomic.Int64
	gapsDetected       atomic.Int64
	alertsTriggered    atomic.Int64
	heartbeatsReceived atomic.Int64
	lastHeartbeatUnix  atomic.Int64
	startedAtUnixNano  atomic.Int64
}

// Snapshot is a point-in-time copy of every metric, safe to read
// without further synchronization.
type Snapshot struct {
	MessagesReceived   int64
	MessagesProcessed  int64
	MessagesDropped    int64
	QueueDepth         int
	ConnectionState    ConnectionState
	LatencyMaxMicros   int64
	ReconnectAttempts  int64
	ChecksumFailures   int64
	GapsDetected       int64
	AlertsTriggered    int64
	HeartbeatsReceived int64
	LastHeartbeatAge   time.Duration
	Uptime             time.Duration
}

func (m *metrics) setState(s ConnectionState) { m.connectionState.Store(int32(s)) }
func (m *metrics) state() ConnectionState     { return ConnectionState(m.connectionState.Load()) }

func (m *metrics) recordHeartbeat(now time.Time) {
	m.heartbeatsReceived.Add(1)
	m.lastHeartbeatUnix.Store(now.UnixNano())
}

// bumpLatencyMax updates the high-water mark via compare-and-swap, per
// spec.md §4.10's dispatch-worker step.
func (m *metrics) bumpLatencyMax(micros int64) {
	for {
		cur := m.latencyMaxMicros.Load()
		if micros <= cur {
			return
		}
		if m.latencyMaxMicros.CompareAndSwap(cur, micros) {
			return
		}
	}
}

func (m *metrics) snapshot(queueDepth int) Snapshot {
	now := time.Now()
	var lastHBAge time.Duration
	if hb := m.lastHeartbeatUnix.Load(); hb != 0 {
		lastHBAge = now.Sub(time.Unix(0, hb))
	}
	var uptime time.Duration
	if started := m.startedAtUnixNano.Load(); started != 0 {
		uptime = now.Sub(time.Unix(0, started))
	}
	return Snapshot{
		MessagesReceived:   m.messagesReceived.Load(),
		MessagesProcessed:  m.messagesProcessed.Load(),
		MessagesDropped:    m.messagesDropped.Load(),
		QueueDepth:         queueDepth,
		ConnectionState:    m.state(),
		LatencyMaxMicros:   m.latencyMaxMicros.Load(),
		ReconnectAttempts:  m.reconnectAttempts.Load(),
		ChecksumFailures:   m.checksumFailures.Load(),
		GapsDetected:       m.gapsDetected.Load(),
		AlertsTriggered:    m.alertsTriggered.Load(),
		HeartbeatsReceived: m.heartbeatsReceived.Load(),
		LastHeartbeatAge:   lastHBAge,
		Uptime:             uptime,
	}
}

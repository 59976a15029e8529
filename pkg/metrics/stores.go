package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SessionStoreMetrics records operation counts for the per-session stores.
type SessionStoreMetrics struct {
	ops            *prometheus.CounterVec
	corruptBlobs   *prometheus.CounterVec
	telemetryDrops prometheus.Counter
	telemetryFlush prometheus.Histogram
}

// NewSessionStoreMetrics registers the store metrics on the provided registerer.
func NewSessionStoreMetrics(reg prometheus.Registerer) *SessionStoreMetrics {
	if reg == nil {
		return &SessionStoreMetrics{}
	}
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "session_store_ops_total",
		Help: "Session store operations by store, operation and result.",
	}, []string{"store", "op", "result"})
	corrupt := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "session_store_corrupt_blobs_total",
		Help: "Stored blobs discarded because they failed to decode.",
	}, []string{"store"})
	drops := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "telemetry_dropped_events_total",
		Help: "Telemetry events dropped because the queue was full.",
	})
	flush := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "telemetry_flush_batch_size",
		Help:    "Number of events per telemetry flush.",
		Buckets: []float64{1, 5, 10, 20, 50, 100},
	})
	reg.MustRegister(ops, corrupt, drops, flush)
	return &SessionStoreMetrics{
		ops:            ops,
		corruptBlobs:   corrupt,
		telemetryDrops: drops,
		telemetryFlush: flush,
	}
}

// IncOp counts one store operation outcome.
func (m *SessionStoreMetrics) IncOp(store, op, result string) {
	if m == nil || m.ops == nil {
		return
	}
	m.ops.WithLabelValues(normalizeLabel(store), normalizeLabel(op), normalizeLabel(result)).Inc()
}

// IncCorruptBlob counts a discarded undecodable blob for the named store.
func (m *SessionStoreMetrics) IncCorruptBlob(store string) {
	if m == nil || m.corruptBlobs == nil {
		return
	}
	m.corruptBlobs.WithLabelValues(normalizeLabel(store)).Inc()
}

// IncTelemetryDrop counts one dropped telemetry event.
func (m *SessionStoreMetrics) IncTelemetryDrop() {
	if m == nil || m.telemetryDrops == nil {
		return
	}
	m.telemetryDrops.Inc()
}

// ObserveTelemetryFlush records the size of one flushed batch.
func (m *SessionStoreMetrics) ObserveTelemetryFlush(batchSize int) {
	if m == nil || m.telemetryFlush == nil {
		return
	}
	m.telemetryFlush.Observe(float64(batchSize))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

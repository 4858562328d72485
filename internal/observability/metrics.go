// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes live counters for the history service as Prometheus
// collectors. Its counters are incremented by the Record* methods; its
// gauges are backed by callback functions reading the registry/store
// directly.
type Metrics struct {
	registry *prometheus.Registry

	connectionsAccepted prometheus.Counter
	connectionsRejected prometheus.Counter
	packetsCommitted    prometheus.Counter
	bytesStreamed       prometheus.Counter
	entriesEvicted      prometheus.Counter
}

// ActiveWorkersFunc reports the number of live connections.
type ActiveWorkersFunc func() int

// StoreSizeFunc reports the backing store's current total size in bytes.
type StoreSizeFunc func() int64

// NewMetrics registers all collectors on a fresh registry and returns the
// handle used to record events as they happen.
func NewMetrics(activeWorkers ActiveWorkersFunc, storeSize StoreSizeFunc) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		connectionsAccepted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "historyd",
			Name:      "connections_accepted_total",
			Help:      "Total TCP connections accepted by the supervisor.",
		}),
		connectionsRejected: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "historyd",
			Name:      "connections_rejected_total",
			Help:      "Total TCP connections rejected by the admission limiter.",
		}),
		packetsCommitted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "historyd",
			Name:      "packets_committed_total",
			Help:      "Total packets appended to the backing store.",
		}),
		bytesStreamed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "historyd",
			Name:      "bytes_streamed_total",
			Help:      "Total bytes streamed back to clients.",
		}),
		entriesEvicted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "historyd",
			Name:      "history_entries_evicted_total",
			Help:      "Total history entries evicted to make room for new writes.",
		}),
	}

	promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "historyd",
		Name:      "active_workers",
		Help:      "Number of connections currently being served.",
	}, func() float64 { return float64(activeWorkers()) })

	promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "historyd",
		Name:      "store_size_bytes",
		Help:      "Current total size of the backing store, in bytes.",
	}, func() float64 { return float64(storeSize()) })

	return m
}

// Registry returns the Prometheus registry backing this Metrics instance,
// for mounting under /metrics.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RecordAccepted records one admitted connection.
func (m *Metrics) RecordAccepted() { m.connectionsAccepted.Inc() }

// RecordRejected records one connection turned away by the admission limiter.
func (m *Metrics) RecordRejected() { m.connectionsRejected.Inc() }

// RecordCommit records one packet committed to the store.
func (m *Metrics) RecordCommit() {
	m.packetsCommitted.Inc()
}

// RecordEviction records one history entry evicted to make room for a new
// write.
func (m *Metrics) RecordEviction() {
	m.entriesEvicted.Inc()
}

// RecordStreamed records n bytes streamed back to a client.
func (m *Metrics) RecordStreamed(n int64) {
	m.bytesStreamed.Add(float64(n))
}

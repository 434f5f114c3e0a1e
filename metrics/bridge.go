// Package metrics exposes prometheus instrumentation for ticknet bridges.
// Collectors are optional: a nil *BridgeMetrics is a valid no-op sink, so the
// hot path never branches on configuration.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BridgeMetrics holds the per-bridge collectors. One instance per bridge,
// distinguished by the channel constant label.
type BridgeMetrics struct {
	packetsEnqueued prometheus.Counter
	enqueueRejected *prometheus.CounterVec
	transportCalls  prometheus.Counter
	transportErrors prometheus.Counter
	snapshotRecords prometheus.Gauge
	recordsDropped  prometheus.Counter
}

// NewBridgeMetrics registers the bridge collectors with reg. channel becomes
// a constant label so several bridges can share a registry.
func NewBridgeMetrics(reg prometheus.Registerer, channel string) *BridgeMetrics {
	labels := prometheus.Labels{"channel": channel}
	factory := promauto.With(reg)
	return &BridgeMetrics{
		packetsEnqueued: factory.NewCounter(prometheus.CounterOpts{
			Name:        "ticknet_packets_enqueued_total",
			Help:        "Outgoing packets accepted into the tick queue.",
			ConstLabels: labels,
		}),
		enqueueRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "ticknet_enqueue_rejected_total",
			Help:        "Enqueue attempts rejected by validation, by reason.",
			ConstLabels: labels,
		}, []string{"reason"}),
		transportCalls: factory.NewCounter(prometheus.CounterOpts{
			Name:        "ticknet_transport_calls_total",
			Help:        "Aggregated payload sends issued to the channel.",
			ConstLabels: labels,
		}),
		transportErrors: factory.NewCounter(prometheus.CounterOpts{
			Name:        "ticknet_transport_errors_total",
			Help:        "Channel send failures observed at tick flush.",
			ConstLabels: labels,
		}),
		snapshotRecords: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "ticknet_snapshot_records",
			Help:        "Incoming records stabilized into the current snapshot.",
			ConstLabels: labels,
		}),
		recordsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name:        "ticknet_records_dropped_total",
			Help:        "Incoming records dropped by the receive filter chain.",
			ConstLabels: labels,
		}),
	}
}

// PacketEnqueued counts one accepted outgoing packet.
func (m *BridgeMetrics) PacketEnqueued() {
	if m != nil {
		m.packetsEnqueued.Inc()
	}
}

// EnqueueRejected counts one rejected enqueue attempt.
func (m *BridgeMetrics) EnqueueRejected(reason string) {
	if m != nil {
		m.enqueueRejected.WithLabelValues(reason).Inc()
	}
}

// TransportCalls counts the aggregated sends issued by one tick flush.
func (m *BridgeMetrics) TransportCalls(n int) {
	if m != nil {
		m.transportCalls.Add(float64(n))
	}
}

// TransportError counts one failed channel send.
func (m *BridgeMetrics) TransportError() {
	if m != nil {
		m.transportErrors.Inc()
	}
}

// SnapshotSize records the size of the snapshot produced by the latest tick.
func (m *BridgeMetrics) SnapshotSize(n int) {
	if m != nil {
		m.snapshotRecords.Set(float64(n))
	}
}

// RecordDropped counts one incoming record rejected before queueing.
func (m *BridgeMetrics) RecordDropped() {
	if m != nil {
		m.recordsDropped.Inc()
	}
}

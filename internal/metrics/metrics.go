package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ============================================
	// Bridge operation metrics
	// ============================================
	BridgeOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_operations_total",
			Help: "Bridge operations by operation and result",
		},
		[]string{"operation", "result"},
	)

	BridgeOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bridge_operation_duration_seconds",
			Help:    "Bridge operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	LockedBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_locked_balance",
		Help: "Aggregate custodied amount on the source side",
	})

	ProcessedTransfersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_processed_transfers_total",
		Help: "Transfer identifiers consumed by unlock/mint",
	})

	ReplayRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_replay_rejections_total",
		Help: "Relayed calls rejected because the identifier was already processed",
	})

	PausedStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_paused",
		Help: "Pause flag (1=paused, 0=active)",
	})

	// ============================================
	// Event publishing metrics
	// ============================================
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_events_published_total",
			Help: "Bridge events published to NATS by event type",
		},
		[]string{"event"},
	)

	EventsPublishFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_events_publish_failed_total",
			Help: "Bridge event publish failures by event type",
		},
		[]string{"event"},
	)

	NATSConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_nats_connection_status",
		Help: "NATS connection status (1=connected, 0=disconnected)",
	})

	// ============================================
	// WebSocket push metrics
	// ============================================
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_websocket_clients",
		Help: "Connected WebSocket event stream clients",
	})
)

// RecordOperation tracks one bridge operation outcome.
func RecordOperation(operation, result string) {
	BridgeOperationsTotal.WithLabelValues(operation, result).Inc()
}

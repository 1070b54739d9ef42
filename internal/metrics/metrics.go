package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "taskchat"

var (
	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ws_connections",
		Help:      "Currently open websocket connections.",
	})

	MessagesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_created_total",
		Help:      "Messages persisted, by intake path.",
	}, []string{"path"})

	BroadcastEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "broadcast_events_total",
		Help:      "Events fanned out to rooms, by event type.",
	}, []string{"type"})

	BroadcastDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "broadcast_dropped_total",
		Help:      "Events dropped because a connection's send buffer was full.",
	})

	AttachmentCleanupFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "attachment_cleanup_failures_total",
		Help:      "Best-effort attachment file deletions that failed.",
	})

	TextgenFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "textgen_failures_total",
		Help:      "Text generation calls that failed, by operation.",
	}, []string{"op"})
)

const (
	PathHTTP    = "http"
	PathSession = "ws"
)

// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests tracks completed HTTP requests.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sensorhub_http_requests_total",
		Help: "Total number of HTTP requests served",
	}, []string{"method", "status"})

	// FeedsIngested tracks persisted readings by admission path (write_key, owner, mqtt).
	FeedsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sensorhub_feeds_ingested_total",
		Help: "Total number of readings persisted",
	}, []string{"path"})

	// IngestRejections tracks readings refused before persistence.
	IngestRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sensorhub_ingest_rejections_total",
		Help: "Total number of rejected ingestion attempts",
	}, []string{"reason"})

	// BroadcastDeliveries counts newFeed messages queued to subscribers.
	BroadcastDeliveries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sensorhub_broadcast_deliveries_total",
		Help: "Total number of realtime deliveries queued to subscribers",
	})

	// BroadcastDrops counts deliveries skipped because a subscriber was slow or gone.
	BroadcastDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sensorhub_broadcast_drops_total",
		Help: "Total number of realtime deliveries dropped",
	})

	// WSConnections is the number of open realtime connections.
	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sensorhub_ws_connections",
		Help: "Number of open WebSocket connections",
	})

	// KeyVerifications tracks channel key checks by role and outcome.
	KeyVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sensorhub_key_verifications_total",
		Help: "Total number of channel key verifications",
	}, []string{"role", "result"})
)

// Result renders a boolean outcome as a label value.
func Result(ok bool) string {
	if ok {
		return "ok"
	}
	return "rejected"
}

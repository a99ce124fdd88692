package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics for monitoring ingest and sync health
var (
	TelemetryReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telemetry_messages_received_total",
			Help: "Total number of telemetry messages received from the broker",
		},
		[]string{"kind"},
	)

	TelemetryDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telemetry_messages_dropped_total",
			Help: "Total number of telemetry messages dropped before persistence",
		},
		[]string{"reason"},
	)

	LocationSamplesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "location_samples_persisted_total",
			Help: "Total number of location samples written to storage",
		},
	)

	RoutePointsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "route_points_persisted_total",
			Help: "Total number of route points appended to active deliveries",
		},
	)

	SyncBatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_batches_total",
			Help: "Total number of offline sync batches processed",
		},
	)

	SyncDeliveriesUpdatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_deliveries_updated_total",
			Help: "Total number of delivery updates applied from sync batches",
		},
	)

	DashboardClientsConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashboard_clients_connected",
			Help: "Number of currently connected dashboard websocket viewers",
		},
	)

	IdentityCacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_cache_lookups_total",
			Help: "Identity cache lookups by outcome",
		},
		[]string{"outcome"},
	)
)

// Register adds all collectors to the default registry. Call once at startup.
func Register() {
	prometheus.MustRegister(
		TelemetryReceivedTotal,
		TelemetryDroppedTotal,
		LocationSamplesTotal,
		RoutePointsTotal,
		SyncBatchesTotal,
		SyncDeliveriesUpdatedTotal,
		DashboardClientsConnected,
		IdentityCacheLookupsTotal,
	)
}

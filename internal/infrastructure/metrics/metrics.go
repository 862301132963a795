package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connection metrics
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_active_connections",
			Help: "Currently connected sockets",
		},
	)

	ConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_connections_total",
			Help: "Total accepted socket connections",
		},
	)

	DisconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_disconnects_total",
			Help: "Total socket disconnects",
		},
	)

	ConnectionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_connections_rejected_total",
			Help: "Connection attempts refused before handshake",
		},
		[]string{"reason"}, // "auth", "rate_limit_ip", "rate_limit_user", "origin"
	)

	// Event metrics
	EventsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_dispatched_total",
			Help: "Events admitted to broadcast",
		},
		[]string{"event_type", "priority"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_dropped_total",
			Help: "Events dropped before delivery",
		},
		[]string{"event_type"},
	)

	// Presence metrics
	PresenceWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_presence_write_failures_total",
			Help: "Presence store operations that failed and were skipped",
		},
	)

	StaleRecordsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_presence_stale_evicted_total",
			Help: "Presence records evicted by the safety-net sweep",
		},
	)

	// Room metrics
	ActiveRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_active_rooms",
			Help: "Rooms with at least one member",
		},
	)
)

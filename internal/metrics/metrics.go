package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Session metrics
var (
	// ActiveSessions tracks sessions currently in the registry by transport
	ActiveSessions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tvbroker_sessions_active",
			Help: "Sessions currently registered, by transport (tcp/websocket)",
		},
		[]string{"transport"},
	)

	// SessionsTotal counts every session ever registered
	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tvbroker_sessions_total",
			Help: "Total sessions registered, by transport",
		},
		[]string{"transport"},
	)

	// AcceptErrors counts failed Accept calls on the broadcast listener
	AcceptErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tvbroker_accept_errors_total",
			Help: "Total accept errors on the broadcast listener",
		},
	)
)

// Monitor metrics
var (
	// RecordsDrained counts lines read out of the queue file
	RecordsDrained = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tvbroker_records_drained_total",
			Help: "Total lines drained from the queue file",
		},
	)

	// RecordsDropped counts drained lines that were not distributed, by reason (stale/malformed)
	RecordsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tvbroker_records_dropped_total",
			Help: "Total drained lines dropped before distribution, by reason",
		},
		[]string{"reason"},
	)

	// RecordsDelivered counts records written to client sockets
	RecordsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tvbroker_records_delivered_total",
			Help: "Total records written to clients, by transport",
		},
		[]string{"transport"},
	)

	// MonitorCycleErrors counts monitor cycles that failed to drain
	MonitorCycleErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tvbroker_monitor_cycle_errors_total",
			Help: "Total monitor cycles that failed",
		},
	)

	// MonitorCycleDuration tracks drain-and-distribute latency in seconds
	MonitorCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tvbroker_monitor_cycle_duration_seconds",
			Help:    "Monitor cycle duration in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// HistoryErrors counts failed writes to the delivery history store
	HistoryErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tvbroker_history_errors_total",
			Help: "Total delivery history write failures",
		},
	)
)

// Listing metrics
var (
	// ListingRequests counts listing requests by result (ok/invalid)
	ListingRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tvbroker_listing_requests_total",
			Help: "Total directory listing requests, by result",
		},
		[]string{"result"},
	)
)

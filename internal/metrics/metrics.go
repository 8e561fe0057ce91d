package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connection metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "capycode_notify_connections_active",
			Help: "Current number of open relay connections",
		},
	)

	ConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "capycode_notify_connections_total",
			Help: "Total number of connections accepted",
		},
	)

	IdentitiesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "capycode_notify_identities_active",
			Help: "Number of user identities with at least one open connection",
		},
	)

	// Delivery metrics
	EventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capycode_notify_events_delivered_total",
			Help: "Total number of events enqueued for delivery",
		},
		[]string{"type"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capycode_notify_events_dropped_total",
			Help: "Total number of events dropped (slow or closed connection)",
		},
		[]string{"type"},
	)

	// Authentication metrics
	AuthSuccess = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "capycode_notify_auth_success_total",
			Help: "Total number of successful authentications",
		},
	)

	AuthFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "capycode_notify_auth_failures_total",
			Help: "Total number of failed authentication attempts",
		},
	)

	// Liveness metrics
	LivenessTerminations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "capycode_notify_liveness_terminations_total",
			Help: "Total number of connections terminated by the liveness monitor",
		},
	)

	// Rate limiting metrics
	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "capycode_notify_rate_limit_hits_total",
			Help: "Total number of rate-limited authentication attempts",
		},
	)
)

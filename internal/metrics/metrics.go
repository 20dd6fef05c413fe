// Package metrics holds the Prometheus collectors of the simulator.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Simulation
	TicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cop_ticks_total",
			Help: "Total number of timer routine runs",
		},
		[]string{"routine"},
	)

	TickDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cop_tick_duration_seconds",
			Help:    "Duration of one timer routine run including feed writes",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		},
		[]string{"routine"},
	)

	IncidentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cop_incidents_total",
			Help: "Total number of spawned incidents",
		},
		[]string{"type", "severity"},
	)

	FeedWriteErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cop_feed_write_errors_total",
			Help: "Total number of failed feed writes",
		},
		[]string{"kind"},
	)

	// Commands
	CommandsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cop_commands_sent_total",
			Help: "Total number of commands sent to units",
		},
	)

	CommandAcks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cop_command_acks_total",
			Help: "Total number of acknowledgement attempts by result",
		},
		[]string{"result"}, // "ok", "not_found"
	)

	// API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cop_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cop_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	AuthFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cop_auth_failures_total",
			Help: "Total number of rejected basic auth attempts",
		},
	)

	StreamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cop_stream_clients",
			Help: "Current number of connected websocket feed clients",
		},
	)
)

// RecordTick records one run of a timer routine.
func RecordTick(routine string, duration time.Duration) {
	TicksTotal.WithLabelValues(routine).Inc()
	TickDuration.WithLabelValues(routine).Observe(duration.Seconds())
}

// RecordIncident counts a spawned incident.
func RecordIncident(typ, severity string) {
	IncidentsTotal.WithLabelValues(typ, severity).Inc()
}

// RecordAck counts an acknowledgement attempt.
func RecordAck(found bool) {
	if found {
		CommandAcks.WithLabelValues("ok").Inc()
		return
	}
	CommandAcks.WithLabelValues("not_found").Inc()
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

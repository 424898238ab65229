package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Service call metrics
var (
	ServiceCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kp_service_calls_total",
			Help: "Total number of service calls sent to Kodi",
		},
		[]string{"method", "status"},
	)

	ServiceCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kp_service_call_duration_seconds",
			Help:    "Service call duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method"},
	)
)

// Card metrics
var (
	CardPlaysTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kp_card_plays_total",
			Help: "Total number of play requests handled per card",
		},
		[]string{"card", "status"},
	)

	CardEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kp_card_entries",
			Help: "Number of playable entries per card",
		},
		[]string{"card"},
	)

	CardReloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kp_card_reloads_total",
			Help: "Total number of card configuration reloads",
		},
		[]string{"card", "status"},
	)
)

// Command metrics
var (
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kp_commands_total",
			Help: "Total number of commands received over MQTT",
		},
		[]string{"type", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kp_http_requests_total",
			Help: "Total number of HTTP API requests",
		},
		[]string{"method", "route", "status"},
	)
)

// Status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// StatusOf maps an error to a status label.
func StatusOf(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RelayAuthSuccesses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "duelgrid_relay_auth_successes_total",
			Help: "Total number of accepted TURN authentications",
		})

	RelayAuthFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "duelgrid_relay_auth_failures_total",
			Help: "Total number of rejected TURN authentications",
		})
)

func InitRelay() {
	prometheus.MustRegister(
		RelayAuthSuccesses,
		RelayAuthFailures,
	)
}

// Package metrics holds the Prometheus collectors for the daemons.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	Registrations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "duelgrid_rendezvous_registrations_total",
			Help: "Total number of endpoint ids successfully registered",
		})

	Collisions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "duelgrid_rendezvous_collisions_total",
			Help: "Total number of registration attempts rejected because the id was taken",
		})

	Forwards = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "duelgrid_rendezvous_forwards_total",
			Help: "Total number of signaling frames forwarded between endpoints",
		})

	PeerAbsent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "duelgrid_rendezvous_peer_absent_total",
			Help: "Total number of forwards bounced because the target was not registered",
		})

	ActiveEndpoints = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "duelgrid_rendezvous_active_endpoints",
			Help: "Current number of registered endpoints",
		})
)

func InitRendezvous() {
	prometheus.MustRegister(
		Registrations,
		Collisions,
		Forwards,
		PeerAbsent,
		ActiveEndpoints,
	)
}

package peersync

import "github.com/prometheus/client_golang/prometheus"

var (
	publishCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gridsnake",
			Subsystem: "sync",
			Name:      "publishes_total",
			Help:      "Local snake publishes by result.",
		},
		[]string{"result"},
	)
	remoteEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gridsnake",
			Subsystem: "sync",
			Name:      "remote_events_total",
			Help:      "Inbound remote events by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(publishCalls, remoteEvents)
}

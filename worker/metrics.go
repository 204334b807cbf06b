package worker

import "github.com/prometheus/client_golang/prometheus"

var (
	ticks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gridsnake",
			Subsystem: "session",
			Name:      "ticks_total",
			Help:      "World steps taken.",
		},
	)
	respawns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gridsnake",
			Subsystem: "session",
			Name:      "respawns_total",
			Help:      "Local snake respawns by collision kind.",
		},
		[]string{"cause"},
	)
	foodEaten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gridsnake",
			Subsystem: "session",
			Name:      "food_eaten_total",
			Help:      "Food eaten by the local snake.",
		},
	)
	renderErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gridsnake",
			Subsystem: "session",
			Name:      "render_errors_total",
			Help:      "Frames the renderer failed to draw.",
		},
	)
)

func init() {
	prometheus.MustRegister(ticks, respawns, foodEaten, renderErrors)
}

package controller

import (
	"context"

	"github.com/gridsnake/engine/rules"
	"github.com/prometheus/client_golang/prometheus"
)

// InstrumentStore wraps all store methods to instrument the underlying calls.
func InstrumentStore(s Store) Store { return &metrics{s} }

var (
	storeCalls = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gridsnake",
			Subsystem: "store",
			Name:      "calls",
			Help:      "Calls processed by the store.",
		},
		[]string{"method"},
	)
)

func instrument(method string) func() {
	t := prometheus.NewTimer(storeCalls.WithLabelValues(method))
	return func() { t.ObserveDuration() }
}

func init() {
	prometheus.MustRegister(storeCalls)
}

type metrics struct{ s Store }

func (m *metrics) Claim(ctx context.Context, room, id, token string) (string, error) {
	defer instrument("Claim")()
	return m.s.Claim(ctx, room, id, token)
}

func (m *metrics) Release(ctx context.Context, room, id, token string) error {
	defer instrument("Release")()
	return m.s.Release(ctx, room, id, token)
}

func (m *metrics) PutSnake(c context.Context, room string, s rules.SnakeState) error {
	defer instrument("PutSnake")()
	return m.s.PutSnake(c, room, s)
}

func (m *metrics) RemoveSnake(c context.Context, room, id string) error {
	defer instrument("RemoveSnake")()
	return m.s.RemoveSnake(c, room, id)
}

func (m *metrics) GetSnake(c context.Context, room, id string) (rules.SnakeState, error) {
	defer instrument("GetSnake")()
	return m.s.GetSnake(c, room, id)
}

func (m *metrics) ListSnakes(c context.Context, room string) ([]rules.SnakeState, error) {
	defer instrument("ListSnakes")()
	return m.s.ListSnakes(c, room)
}

// Close closes the wrapped store when it has resources to release.
func (m *metrics) Close() error {
	if c, ok := m.s.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

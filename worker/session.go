// Package worker drives a player's game: it ticks the world at a fixed
// interval, keeps the snake's ownership claim alive and hands every frame to
// a renderer.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/gridsnake/engine/peersync"
	"github.com/gridsnake/engine/rules"
	log "github.com/sirupsen/logrus"
)

// ErrLostClaim ends a session whose snake was claimed by someone else.
var ErrLostClaim = errors.New("worker: lost snake claim")

// Renderer draws a frame. It is called once at start and after every tick.
type Renderer interface {
	Render(rules.Snapshot) error
}

// RenderFunc adapts a function to Renderer.
type RenderFunc func(rules.Snapshot) error

// Render calls f.
func (f RenderFunc) Render(s rules.Snapshot) error { return f(s) }

// Session runs one local snake. Adapter may be nil for an offline game.
type Session struct {
	World             *rules.World
	Adapter           *peersync.Adapter
	TickInterval      time.Duration
	HeartbeatInterval time.Duration
	Renderer          Renderer

	// Steer is called right before each step, e.g. by a bot.
	Steer func(*rules.World)
}

// Direction requests a new heading for the local snake. Safe from any
// goroutine.
func (s *Session) Direction(d rules.Direction) bool {
	return s.World.SetDirection(s.World.LocalID(), d)
}

// Key handles an arrow key code. Safe from any goroutine.
func (s *Session) Key(code int) bool {
	return s.World.HandleKey(code)
}

// Tick steps the world once and renders the result.
func (s *Session) Tick() rules.StepResult {
	if s.Steer != nil {
		s.Steer(s.World)
	}
	res := s.World.Step()

	ticks.Inc()
	if res.Collision != rules.CollisionNone {
		respawns.WithLabelValues(res.Collision.String()).Inc()
	}
	if res.Ate {
		foodEaten.Inc()
	}
	s.render()
	return res
}

func (s *Session) render() {
	if s.Renderer == nil {
		return
	}
	if err := s.Renderer.Render(s.World.Snapshot()); err != nil {
		renderErrors.Inc()
		log.WithError(err).WithField("SnakeID", s.World.LocalID()).Warn("render failed")
	}
}

// Run ticks until ctx is done, the claim is lost or the transport's stream
// ends.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := log.WithField("SnakeID", s.World.LocalID())
	errc := make(chan error, 2)

	if s.Adapter != nil {
		if c, ok := s.Adapter.Transport.(peersync.Claimer); ok {
			if err := c.Claim(ctx, s.World.LocalID()); err != nil {
				return err
			}
			go s.heartbeat(ctx, c, errc)
		}
		go func() { errc <- s.Adapter.Run(ctx) }()
		s.Adapter.Announce()
	}

	logger.WithField("Interval", s.interval()).Info("session started")
	s.render()

	t := time.NewTicker(s.interval())
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("session stopped")
			return ctx.Err()
		case err := <-errc:
			logger.WithError(err).Warn("session ended")
			return err
		case <-t.C:
			s.Tick()
		}
	}
}

// heartbeat holds the claim, refreshing it every HeartbeatInterval.
func (s *Session) heartbeat(ctx context.Context, c peersync.Claimer, errc chan<- error) {
	t := time.NewTicker(s.heartbeatInterval())
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if err := c.Claim(ctx, s.World.LocalID()); err != nil {
				if ctx.Err() != nil {
					return
				}
				log.WithError(err).WithField("SnakeID", s.World.LocalID()).Error("claim expired during heartbeat")
				errc <- ErrLostClaim
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) interval() time.Duration {
	if s.TickInterval <= 0 {
		return 60 * time.Millisecond
	}
	return s.TickInterval
}

func (s *Session) heartbeatInterval() time.Duration {
	if s.HeartbeatInterval <= 0 {
		return time.Second
	}
	return s.HeartbeatInterval
}

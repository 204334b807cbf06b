package peersync

import (
	"context"
	"sync"
	"time"

	"github.com/gridsnake/engine/rules"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultPublishTimeout bounds a single publish.
const DefaultPublishTimeout = 2 * time.Second

// Adapter connects a World to a Transport. Local changes go out as
// publishes, remote events come in as World updates. There is no buffering or
// conflict resolution: the last state seen for a snake id wins.
type Adapter struct {
	World          *rules.World
	Transport      Transport
	PublishTimeout time.Duration

	mu    sync.Mutex
	armed map[string]bool
}

// NewAdapter creates an adapter and registers it as the world's observer.
func NewAdapter(w *rules.World, t Transport) *Adapter {
	a := &Adapter{
		World:          w,
		Transport:      t,
		PublishTimeout: DefaultPublishTimeout,
		armed:          map[string]bool{},
	}
	w.Observe(a)
	return a
}

// LocalSnakeChanged publishes the snake. A failed publish is logged and
// dropped; the local game carries on and the next publish carries the latest
// state. The first successful publish of an id also asks the transport to
// remove that snake when this process disconnects.
func (a *Adapter) LocalSnakeChanged(s rules.SnakeState) {
	ctx, cancel := context.WithTimeout(context.Background(), a.publishTimeout())
	defer cancel()

	if err := a.Transport.Publish(ctx, s); err != nil {
		publishCalls.WithLabelValues("error").Inc()
		log.WithError(err).WithField("SnakeID", s.ID).Warn("publish failed")
		return
	}
	publishCalls.WithLabelValues("ok").Inc()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.armed[s.ID] {
		return
	}
	if err := a.Transport.OnDisconnectCleanup(ctx, s.ID); err != nil {
		log.WithError(err).WithField("SnakeID", s.ID).Warn("unable to register disconnect cleanup")
		return
	}
	a.armed[s.ID] = true
}

// RemoteUpdate mirrors a peer's snake into the world. Malformed states are
// logged and discarded.
func (a *Adapter) RemoteUpdate(s rules.SnakeState) error {
	if err := a.World.ApplyRemote(s); err != nil {
		outcome := "malformed"
		if errors.Cause(err) == rules.ErrLocalSnake {
			outcome = "local"
		}
		remoteEvents.WithLabelValues(outcome).Inc()
		log.WithError(err).WithField("SnakeID", s.ID).Warn("discarding remote state")
		return err
	}
	remoteEvents.WithLabelValues("update").Inc()
	return nil
}

// RemoteRemoved drops a peer's snake from the world.
func (a *Adapter) RemoteRemoved(id string) bool {
	removed := a.World.RemoveRemote(id)
	if removed {
		remoteEvents.WithLabelValues("removed").Inc()
		log.WithField("SnakeID", id).Info("remote snake removed")
	}
	return removed
}

// Announce publishes the local snake as it is now, so peers see it before
// the first tick.
func (a *Adapter) Announce() {
	a.World.Publish()
}

// Run subscribes to the transport and applies events until ctx is done or
// the stream ends.
func (a *Adapter) Run(ctx context.Context) error {
	events, err := a.Transport.Subscribe(ctx)
	if err != nil {
		return errors.Wrap(err, "subscribe")
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-events:
			if !ok {
				return ErrClosed
			}
			a.handle(e)
		}
	}
}

func (a *Adapter) handle(e Event) {
	if e.ID == a.World.LocalID() {
		// our own publishes echoed back
		return
	}
	switch {
	case e.Removed:
		a.RemoteRemoved(e.ID)
	case e.State != nil && e.State.ID == e.ID:
		_ = a.RemoteUpdate(*e.State)
	default:
		remoteEvents.WithLabelValues("malformed").Inc()
		log.WithField("SnakeID", e.ID).Warn("discarding event without a matching state")
	}
}

func (a *Adapter) publishTimeout() time.Duration {
	if a.PublishTimeout <= 0 {
		return DefaultPublishTimeout
	}
	return a.PublishTimeout
}

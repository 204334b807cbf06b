// Package redis is a peersync.Transport on top of the redis room store.
// Snake states live in the room hash; changes travel over the room channel.
package redis

import (
	"context"
	"sync"

	goredis "github.com/go-redis/redis"
	"github.com/gridsnake/engine/controller"
	ctlredis "github.com/gridsnake/engine/controller/redis"
	"github.com/gridsnake/engine/peersync"
	"github.com/gridsnake/engine/rules"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Transport publishes into one room of a redis store.
type Transport struct {
	store *ctlredis.Store
	room  string

	mu         sync.Mutex
	tokens     map[string]string
	cleanup    map[string]struct{}
	ps         *goredis.PubSub
	subscribed bool
	closed     bool
	done       chan struct{}
	once       sync.Once
}

// New creates a transport for room.
func New(store *ctlredis.Store, room string) *Transport {
	return &Transport{
		store:   store,
		room:    room,
		tokens:  map[string]string{},
		cleanup: map[string]struct{}{},
		done:    make(chan struct{}),
	}
}

// Claim takes or refreshes the ownership claim on id.
func (t *Transport) Claim(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return peersync.ErrClosed
	}
	return t.claim(ctx, id)
}

func (t *Transport) claim(ctx context.Context, id string) error {
	token, err := t.store.Claim(ctx, t.room, id, t.tokens[id])
	if err != nil {
		if err == controller.ErrIsClaimed {
			delete(t.tokens, id)
		}
		return err
	}
	t.tokens[id] = token
	return nil
}

// Publish implements peersync.Transport. The first publish of an id claims
// it; a snake claimed by someone else can not be published.
func (t *Transport) Publish(ctx context.Context, state rules.SnakeState) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return peersync.ErrClosed
	}
	if _, ok := t.tokens[state.ID]; !ok {
		if err := t.claim(ctx, state.ID); err != nil {
			t.mu.Unlock()
			return errors.Wrapf(err, "claim %s", state.ID)
		}
	}
	t.mu.Unlock()

	return t.store.PutSnake(ctx, t.room, state)
}

// Subscribe implements peersync.Transport.
func (t *Transport) Subscribe(ctx context.Context) (<-chan peersync.Event, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, peersync.ErrClosed
	}
	if t.subscribed {
		return nil, peersync.ErrSubscribed
	}

	// Subscribe before listing so nothing falls in between.
	ps, err := t.store.Subscribe(t.room)
	if err != nil {
		return nil, err
	}
	snakes, err := t.store.ListSnakes(ctx, t.room)
	if err != nil {
		ps.Close()
		return nil, err
	}
	t.ps = ps
	t.subscribed = true

	out := make(chan peersync.Event)
	go t.receive(ps, snakes, out)
	go func() {
		select {
		case <-ctx.Done():
			t.stop()
		case <-t.done:
		}
	}()
	return out, nil
}

func (t *Transport) receive(ps *goredis.PubSub, snakes []rules.SnakeState, out chan<- peersync.Event) {
	defer close(out)

	for _, s := range snakes {
		if !t.deliver(out, peersync.UpdateEvent(s)) {
			return
		}
	}
	for {
		msg, err := ps.ReceiveMessage()
		if err != nil {
			select {
			case <-t.done:
			default:
				log.WithError(err).WithField("Room", t.room).Warn("subscription ended")
			}
			return
		}
		c, err := ctlredis.DecodeChange(msg.Payload)
		if err != nil {
			log.WithError(err).WithField("Room", t.room).Warn("discarding change")
			continue
		}
		e := peersync.RemovedEvent(c.ID)
		if !c.Removed {
			s, err := c.State()
			if err != nil {
				log.WithError(err).WithField("SnakeID", c.ID).Warn("discarding change")
				continue
			}
			e = peersync.UpdateEvent(s)
		}
		if !t.deliver(out, e) {
			return
		}
	}
}

func (t *Transport) deliver(out chan<- peersync.Event, e peersync.Event) bool {
	select {
	case out <- e:
		return true
	case <-t.done:
		return false
	}
}

// OnDisconnectCleanup implements peersync.Transport. The snake is removed
// when the transport is closed.
func (t *Transport) OnDisconnectCleanup(_ context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return peersync.ErrClosed
	}
	t.cleanup[id] = struct{}{}
	return nil
}

func (t *Transport) stop() {
	t.once.Do(func() {
		close(t.done)
		t.mu.Lock()
		ps := t.ps
		t.mu.Unlock()
		if ps != nil {
			ps.Close()
		}
	})
}

// Close removes the snakes registered for cleanup, releases every claim and
// ends the subscription. The store is left open.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	cleanup := t.cleanup
	tokens := t.tokens
	t.mu.Unlock()

	ctx := context.Background()
	var first error
	for id := range cleanup {
		if err := t.store.RemoveSnake(ctx, t.room, id); err != nil && first == nil {
			first = err
		}
	}
	for id, token := range tokens {
		if err := t.store.Release(ctx, t.room, id, token); err != nil {
			log.WithError(err).WithField("SnakeID", id).Warn("release failed")
		}
	}
	t.stop()
	return first
}

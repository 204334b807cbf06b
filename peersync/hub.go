package peersync

import (
	"context"
	"sort"
	"sync"

	"github.com/gridsnake/engine/rules"
)

// Hub is an in-process Transport backend. Every peer connects to the same
// Hub and sees everyone else's snakes; useful for tests and for running
// several players inside one binary.
type Hub struct {
	mu     sync.Mutex
	states map[string]rules.SnakeState
	peers  map[*HubTransport]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		states: map[string]rules.SnakeState{},
		peers:  map[*HubTransport]struct{}{},
	}
}

// Connect joins the hub. Events are collected from this point on, even before
// Subscribe is called.
func (h *Hub) Connect() *HubTransport {
	t := &HubTransport{
		hub:     h,
		box:     NewMailbox(),
		cleanup: map[string]struct{}{},
	}
	h.mu.Lock()
	h.peers[t] = struct{}{}
	h.mu.Unlock()
	return t
}

// States returns the latest state of every snake on the hub, ordered by id.
func (h *Hub) States() []rules.SnakeState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sortedStates()
}

func (h *Hub) sortedStates() []rules.SnakeState {
	states := make([]rules.SnakeState, 0, len(h.states))
	for _, s := range h.states {
		states = append(states, s.Clone())
	}
	sort.Slice(states, func(i, j int) bool { return states[i].ID < states[j].ID })
	return states
}

func (h *Hub) broadcast(from *HubTransport, e Event) {
	for p := range h.peers {
		if p == from {
			continue
		}
		p.box.Put(e)
	}
}

// HubTransport is one peer's connection to a Hub.
type HubTransport struct {
	hub *Hub
	box *Mailbox

	// guarded by hub.mu
	subscribed bool
	closed     bool
	cleanup    map[string]struct{}
}

// Publish implements Transport.
func (t *HubTransport) Publish(_ context.Context, state rules.SnakeState) error {
	t.hub.mu.Lock()
	defer t.hub.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	t.hub.states[state.ID] = state.Clone()
	t.hub.broadcast(t, UpdateEvent(state))
	return nil
}

// Subscribe implements Transport.
func (t *HubTransport) Subscribe(ctx context.Context) (<-chan Event, error) {
	t.hub.mu.Lock()
	defer t.hub.mu.Unlock()

	if t.closed {
		return nil, ErrClosed
	}
	if t.subscribed {
		return nil, ErrSubscribed
	}
	t.subscribed = true

	// Snakes published before this peer connected are replayed first. Events
	// queued since Connect may repeat some of them; the latest always wins.
	for _, s := range t.hub.sortedStates() {
		t.box.Put(UpdateEvent(s))
	}

	go func() {
		select {
		case <-ctx.Done():
			t.box.Abandon()
		case <-t.box.done:
		}
	}()
	return t.box.out, nil
}

// OnDisconnectCleanup implements Transport.
func (t *HubTransport) OnDisconnectCleanup(_ context.Context, id string) error {
	t.hub.mu.Lock()
	defer t.hub.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	t.cleanup[id] = struct{}{}
	return nil
}

// Close leaves the hub and runs the registered cleanups: those snakes are
// dropped and every remaining peer is told.
func (t *HubTransport) Close() error {
	t.hub.mu.Lock()
	defer t.hub.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	delete(t.hub.peers, t)

	ids := make([]string, 0, len(t.cleanup))
	for id := range t.cleanup {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		delete(t.hub.states, id)
		t.hub.broadcast(t, RemovedEvent(id))
	}

	if t.subscribed {
		t.box.Close()
	} else {
		t.box.Abandon()
	}
	return nil
}

// Package peersync keeps the worlds of connected players in agreement. Every
// process publishes its own snake and mirrors the snakes of everyone else.
package peersync

import (
	"context"
	"errors"

	"github.com/gridsnake/engine/rules"
)

var (
	// ErrClosed is returned by transports that have been closed.
	ErrClosed = errors.New("peersync: transport closed")
	// ErrSubscribed is returned when a transport's event stream is requested
	// twice. Streams can not be restarted.
	ErrSubscribed = errors.New("peersync: already subscribed")
)

// Event is a change to a remote snake. Either State is set, or Removed is
// true.
type Event struct {
	ID      string
	State   *rules.SnakeState
	Removed bool
}

// UpdateEvent builds an Event carrying a state.
func UpdateEvent(s rules.SnakeState) Event {
	st := s.Clone()
	return Event{ID: s.ID, State: &st}
}

// RemovedEvent builds an Event announcing a snake is gone.
func RemovedEvent(id string) Event {
	return Event{ID: id, Removed: true}
}

// Transport is the publish/subscribe channel between peers.
//
// Publish is a fire-and-forget upsert of a snake's state. Subscribe returns
// the stream of everyone's changes, starting with the states already known
// to the transport; the stream closes when the transport is closed or ctx is
// done and can not be requested again. OnDisconnectCleanup asks the transport
// to remove the snake once this process goes away; the transport, not the
// caller, carries it out.
type Transport interface {
	Publish(ctx context.Context, state rules.SnakeState) error
	Subscribe(ctx context.Context) (<-chan Event, error)
	OnDisconnectCleanup(ctx context.Context, id string) error
}

// Claimer is implemented by transports that hold an expiring ownership claim
// on the snakes they publish. Claim takes or refreshes it and must be called
// more often than the claim expires.
type Claimer interface {
	Claim(ctx context.Context, id string) error
}

package peersync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gridsnake/engine/rules"
	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func newWorld(id string) *rules.World {
	food := rules.Cell{X: 40, Y: 40}
	return rules.NewWorld(id, rules.Options{
		Grid:        rules.NewGrid(450, 450, 10),
		InitialFood: &food,
	})
}

type flakyTransport struct {
	mu        sync.Mutex
	fail      bool
	published []rules.SnakeState
	cleanups  []string
}

func (f *flakyTransport) Publish(_ context.Context, s rules.SnakeState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("network down")
	}
	f.published = append(f.published, s)
	return nil
}

func (f *flakyTransport) Subscribe(context.Context) (<-chan Event, error) {
	return make(chan Event), nil
}

func (f *flakyTransport) OnDisconnectCleanup(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleanups = append(f.cleanups, id)
	return nil
}

func TestAdapter_PublishesEveryStep(t *testing.T) {
	w := newWorld("local")
	tr := &flakyTransport{}
	NewAdapter(w, tr)

	w.Step()
	w.Step()
	require.Len(t, tr.published, 2)
	require.Equal(t, rules.Cell{X: 6, Y: 0}, tr.published[1].Body[0])

	// cleanup is armed once per id
	require.Equal(t, []string{"local"}, tr.cleanups)
}

func TestAdapter_PublishFailureKeepsLocalState(t *testing.T) {
	w := newWorld("local")
	tr := &flakyTransport{fail: true}
	NewAdapter(w, tr)

	w.Step()
	w.Step()
	require.Empty(t, tr.published)
	require.Empty(t, tr.cleanups)
	require.Equal(t, rules.Cell{X: 6, Y: 0}, w.Local().Body[0])

	tr.fail = false
	w.Step()
	require.Len(t, tr.published, 1)
	require.Equal(t, rules.Cell{X: 7, Y: 0}, tr.published[0].Body[0])
	require.Equal(t, []string{"local"}, tr.cleanups)
}

func TestAdapter_RemoteEvents(t *testing.T) {
	w := newWorld("local")
	a := NewAdapter(w, &flakyTransport{})

	require.NoError(t, a.RemoteUpdate(rules.SnakeState{
		ID: "p2", Body: []rules.Cell{{X: 1, Y: 1}}, Direction: rules.Up, Score: 3,
	}))
	s, ok := w.Snake("p2")
	require.True(t, ok)
	require.Equal(t, 3, s.Score)

	require.Error(t, a.RemoteUpdate(rules.SnakeState{ID: "p3", Direction: rules.Up}))
	_, ok = w.Snake("p3")
	require.False(t, ok)

	require.True(t, a.RemoteRemoved("p2"))
	require.False(t, a.RemoteRemoved("p2"))
}

func TestAdapter_IgnoresOwnEcho(t *testing.T) {
	w := newWorld("local")
	a := NewAdapter(w, &flakyTransport{})
	echo := rules.SnakeState{ID: "local", Body: []rules.Cell{{X: 9, Y: 9}}, Direction: rules.Up}
	a.handle(UpdateEvent(echo))
	a.handle(RemovedEvent("local"))
	require.Equal(t, rules.StartingBody(5), w.Local().Body)
}

func TestAdapter_DiscardsMismatchedEvent(t *testing.T) {
	w := newWorld("local")
	a := NewAdapter(w, &flakyTransport{})
	st := state("p3", 1, 1)
	a.handle(Event{ID: "p2", State: &st})
	a.handle(Event{ID: "p4"})
	require.Equal(t, 1, w.Len())
}

func TestAdapter_TwoWorldsOverHub(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	ta, tb := hub.Connect(), hub.Connect()
	wa, wb := newWorld("a"), newWorld("b")
	aa, ab := NewAdapter(wa, ta), NewAdapter(wb, tb)

	go aa.Run(ctx)
	go ab.Run(ctx)

	aa.Announce()
	wa.SetDirection("a", rules.Down)
	wa.Step()

	require.Eventually(t, func() bool {
		s, ok := wb.Snake("a")
		return ok && s.Body[0] == rules.Cell{X: 4, Y: 1}
	}, 2*time.Second, 10*time.Millisecond)

	// b joins the board and a mirrors it
	ab.Announce()
	require.Eventually(t, func() bool {
		_, ok := wa.Snake("b")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, ta.Close())
	require.Eventually(t, func() bool {
		_, ok := wb.Snake("a")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
	require.False(t, wb.Occupied(rules.Cell{X: 4, Y: 1}))
}

func TestAdapter_RunEndsWhenStreamCloses(t *testing.T) {
	hub := NewHub()
	tr := hub.Connect()
	a := NewAdapter(newWorld("a"), tr)

	done := make(chan error, 1)
	go func() { done <- a.Run(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, tr.Close())
	select {
	case err := <-done:
		require.Equal(t, ErrClosed, pkgerrors.Cause(err))
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gridsnake/engine/peersync"
	"github.com/gridsnake/engine/rules"
	"github.com/stretchr/testify/require"
)

func newWorld(id string) *rules.World {
	food := rules.Cell{X: 40, Y: 40}
	return rules.NewWorld(id, rules.Options{
		Grid:        rules.NewGrid(450, 450, 10),
		InitialFood: &food,
	})
}

type frames struct {
	mu  sync.Mutex
	all []rules.Snapshot
	err error
}

func (f *frames) Render(s rules.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.all = append(f.all, s)
	return f.err
}

func (f *frames) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.all)
}

func TestSession_TickRenders(t *testing.T) {
	f := &frames{}
	s := &Session{World: newWorld("local"), Renderer: f}

	require.True(t, s.Key(rules.KeyDown))
	res := s.Tick()
	require.True(t, res.Moved)
	require.Equal(t, rules.Cell{X: 4, Y: 1}, res.Head)

	require.Equal(t, 1, f.count())
	require.Equal(t, rules.Cell{X: 4, Y: 1}, f.all[0].Snakes[0].Body[0])

	// reversing is refused
	require.False(t, s.Direction(rules.Up))
	require.True(t, s.Direction(rules.Left))
}

func TestSession_RenderErrorsDontStop(t *testing.T) {
	f := &frames{err: errors.New("screen gone")}
	s := &Session{World: newWorld("local"), Renderer: f}

	s.Tick()
	s.Tick()
	require.Equal(t, 2, f.count())
}

func TestSession_SteerRunsBeforeStep(t *testing.T) {
	s := &Session{
		World: newWorld("local"),
		Steer: func(w *rules.World) { w.SetDirection(w.LocalID(), rules.Down) },
	}
	require.Equal(t, rules.Cell{X: 4, Y: 1}, s.Tick().Head)
}

func TestSession_RunOffline(t *testing.T) {
	f := &frames{}
	s := &Session{World: newWorld("local"), Renderer: f, TickInterval: time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := s.Run(ctx)
	require.Equal(t, context.DeadlineExceeded, err)
	require.True(t, f.count() > 1)
}

func TestSession_TwoPlayersOverHub(t *testing.T) {
	hub := peersync.NewHub()
	ta, tb := hub.Connect(), hub.Connect()
	wa, wb := newWorld("a"), newWorld("b")
	sa := &Session{World: wa, Adapter: peersync.NewAdapter(wa, ta), TickInterval: 5 * time.Millisecond}
	sb := &Session{World: wb, Adapter: peersync.NewAdapter(wb, tb), TickInterval: 5 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sa.Run(ctx)
	go sb.Run(ctx)

	require.Eventually(t, func() bool {
		_, aSeesB := wa.Snake("b")
		_, bSeesA := wb.Snake("a")
		return aSeesB && bSeesA
	}, 2*time.Second, 5*time.Millisecond)

	// b leaves, a is told.
	require.NoError(t, tb.Close())
	require.Eventually(t, func() bool {
		_, ok := wa.Snake("b")
		return !ok
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSession_EndsWithStream(t *testing.T) {
	hub := peersync.NewHub()
	tr := hub.Connect()
	w := newWorld("a")
	s := &Session{World: w, Adapter: peersync.NewAdapter(w, tr), TickInterval: 5 * time.Millisecond}

	errc := make(chan error, 1)
	go func() { errc <- s.Run(context.Background()) }()

	require.Eventually(t, func() bool { return len(hub.States()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, tr.Close())

	select {
	case err := <-errc:
		require.Equal(t, peersync.ErrClosed, err)
	case <-time.After(2 * time.Second):
		t.Fatal("session still running")
	}
}

// claimingHub is a hub transport whose claims start failing on demand.
type claimingHub struct {
	*peersync.HubTransport
	mu     sync.Mutex
	claims int
	fail   bool
}

func (c *claimingHub) Claim(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.claims++
	if c.fail {
		return errors.New("taken")
	}
	return nil
}

func (c *claimingHub) setFail() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail = true
}

func (c *claimingHub) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.claims
}

func TestSession_HeartbeatLosesClaim(t *testing.T) {
	tr := &claimingHub{HubTransport: peersync.NewHub().Connect()}
	w := newWorld("a")
	s := &Session{
		World:             w,
		Adapter:           peersync.NewAdapter(w, tr),
		TickInterval:      5 * time.Millisecond,
		HeartbeatInterval: 5 * time.Millisecond,
	}

	errc := make(chan error, 1)
	go func() { errc <- s.Run(context.Background()) }()

	require.Eventually(t, func() bool { return tr.count() > 2 }, time.Second, 5*time.Millisecond)
	tr.setFail()

	select {
	case err := <-errc:
		require.Equal(t, ErrLostClaim, err)
	case <-time.After(2 * time.Second):
		t.Fatal("session still running")
	}
}

func TestSession_InitialClaimRefused(t *testing.T) {
	tr := &claimingHub{HubTransport: peersync.NewHub().Connect(), fail: true}
	w := newWorld("a")
	s := &Session{World: w, Adapter: peersync.NewAdapter(w, tr)}

	require.Error(t, s.Run(context.Background()))
}

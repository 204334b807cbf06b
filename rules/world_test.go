package rules

import (
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	states []SnakeState
}

func (r *recorder) LocalSnakeChanged(s SnakeState) {
	r.states = append(r.states, s)
}

func newTestWorld(food Cell) *World {
	return NewWorld("local", Options{
		Grid:        NewGrid(450, 450, 10),
		Rand:        rand.New(rand.NewSource(42)),
		InitialFood: &food,
	})
}

func TestWorld_NewWorld(t *testing.T) {
	w := newTestWorld(Cell{X: 10, Y: 10})
	local := w.Local()
	require.Equal(t, StartingBody(5), local.Body)
	require.Equal(t, Right, local.Direction)
	require.Equal(t, 0, local.Score)
	require.Equal(t, Cell{X: 10, Y: 10}, w.Food())
	require.Equal(t, 1, w.Len())
	require.True(t, w.Occupied(Cell{X: 0, Y: 0}))
}

func TestWorld_StepTranslates(t *testing.T) {
	w := newTestWorld(Cell{X: 10, Y: 10})
	for i := 0; i < 6; i++ {
		res := w.Step()
		require.True(t, res.Moved)
		require.False(t, res.Ate)
		require.Equal(t, CollisionNone, res.Collision)
	}

	require.Equal(t, []Cell{
		{X: 10, Y: 0},
		{X: 9, Y: 0},
		{X: 8, Y: 0},
		{X: 7, Y: 0},
		{X: 6, Y: 0},
	}, w.Local().Body)
	require.False(t, w.Occupied(Cell{X: 5, Y: 0}))
	require.True(t, w.Occupied(Cell{X: 6, Y: 0}))
}

func TestWorld_StepEats(t *testing.T) {
	w := newTestWorld(Cell{X: 5, Y: 0})
	rec := &recorder{}
	w.Observe(rec)

	res := w.Step()
	require.True(t, res.Ate)

	local := w.Local()
	require.Len(t, local.Body, 6)
	require.Equal(t, 1, local.Score)

	food := w.Food()
	require.NotEqual(t, Cell{X: 5, Y: 0}, food)
	require.True(t, w.Grid().Contains(food))

	require.Len(t, rec.states, 1)
	require.Equal(t, 1, rec.states[0].Score)
	require.Len(t, rec.states[0].Body, 6)
}

func TestWorld_FoodNeverRespawnsOnEatenCell(t *testing.T) {
	food := Cell{X: 5, Y: 0}
	// The spawner first offers the eaten cell again, then (7,7).
	spawner := &scriptedFood{cells: []Cell{{X: 5, Y: 0}, {X: 5, Y: 0}, {X: 7, Y: 7}}}
	w := NewWorld("local", Options{
		Grid:        NewGrid(450, 450, 10),
		Food:        spawner,
		InitialFood: &food,
	})
	w.Step()
	require.Equal(t, Cell{X: 7, Y: 7}, w.Food())
}

func TestWorld_FoodFallsBackWhenSpawnerInsists(t *testing.T) {
	food := Cell{X: 5, Y: 0}
	w := NewWorld("local", Options{
		Grid:        NewGrid(450, 450, 10),
		Food:        &scriptedFood{cells: []Cell{food}},
		InitialFood: &food,
	})
	w.Step()
	require.Equal(t, Cell{X: 6, Y: 0}, w.Food())
}

func TestWorld_StartMustFitGrid(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"default body on a 4x4 board", Options{Grid: NewGrid(40, 40, 10)}},
		{"body below the board", Options{Grid: NewGrid(450, 450, 10), StartBody: []Cell{{X: 1, Y: 45}}}},
		{"food off the board", Options{Grid: NewGrid(450, 450, 10), InitialFood: &Cell{X: -1, Y: 3}}},
	}
	for _, test := range tests {
		require.Panics(t, func() { NewWorld("local", test.opts) }, test.name)
	}

	// A start that fits a small board is fine.
	w := NewWorld("local", Options{Grid: NewGrid(40, 40, 10), StartBody: StartingBody(3)})
	require.True(t, w.Step().Moved)
}

type scriptedFood struct {
	cells []Cell
	i     int
}

func (s *scriptedFood) Spawn(Grid, Occupancy) Cell {
	c := s.cells[s.i%len(s.cells)]
	s.i++
	return c
}

func TestWorld_StepWallRespawns(t *testing.T) {
	w := newTestWorld(Cell{X: 10, Y: 10})
	rec := &recorder{}
	w.Observe(rec)
	require.True(t, w.SetDirection("local", Up))

	res := w.Step()
	require.Equal(t, CollisionWall, res.Collision)
	require.False(t, res.Moved)

	local := w.Local()
	require.Equal(t, StartingBody(5), local.Body)
	require.Equal(t, Right, local.Direction)
	require.Equal(t, 0, local.Score)

	// the respawn is published right away
	require.Len(t, rec.states, 1)
	require.Equal(t, StartingBody(5), rec.states[0].Body)
}

func TestWorld_RespawnResetsScore(t *testing.T) {
	w := newTestWorld(Cell{X: 5, Y: 0})
	w.Step()
	require.Equal(t, 1, w.Local().Score)

	w.SetDirection("local", Up)
	res := w.Step()
	require.Equal(t, CollisionWall, res.Collision)
	require.Equal(t, 0, w.Local().Score)
	require.Len(t, w.Local().Body, 5)
}

func TestWorld_StepIntoRemoteBody(t *testing.T) {
	w := newTestWorld(Cell{X: 10, Y: 10})
	require.NoError(t, w.ApplyRemote(SnakeState{
		ID:        "p2",
		Body:      []Cell{{X: 5, Y: 1}, {X: 5, Y: 0}},
		Direction: Down,
	}))

	res := w.Step()
	require.Equal(t, CollisionBody, res.Collision)
	require.Equal(t, StartingBody(5), w.Local().Body)
}

func TestWorld_SelfCollision(t *testing.T) {
	w := newTestWorld(Cell{X: 10, Y: 10})
	w.Step()
	w.Step()
	// body (6,0)..(2,0): turn down, left, up onto the body
	require.True(t, w.SetDirection("local", Down))
	w.Step()
	require.True(t, w.SetDirection("local", Left))
	w.Step()
	require.True(t, w.SetDirection("local", Up))
	res := w.Step()
	require.Equal(t, CollisionBody, res.Collision)
}

func TestWorld_SetDirection(t *testing.T) {
	w := newTestWorld(Cell{X: 10, Y: 10})
	require.False(t, w.SetDirection("local", Left))
	require.False(t, w.SetDirection("someone-else", Down))
	require.True(t, w.SetDirection("local", Down))
	require.Equal(t, Down, w.Local().Direction)
}

func TestWorld_HandleKey(t *testing.T) {
	w := newTestWorld(Cell{X: 10, Y: 10})
	require.False(t, w.HandleKey(KeyLeft))
	require.False(t, w.HandleKey(13))
	require.True(t, w.HandleKey(KeyDown))
	require.Equal(t, Down, w.Local().Direction)
}

func TestWorld_ApplyRemote(t *testing.T) {
	w := newTestWorld(Cell{X: 10, Y: 10})
	err := w.ApplyRemote(SnakeState{ID: "p2", Body: []Cell{{X: 1, Y: 1}}, Direction: Up, Score: 3})
	require.NoError(t, err)

	s, ok := w.Snake("p2")
	require.True(t, ok)
	require.Equal(t, 3, s.Score)
	require.True(t, w.Occupied(Cell{X: 1, Y: 1}))

	// replaced wholesale, old cells released
	err = w.ApplyRemote(SnakeState{ID: "p2", Body: []Cell{{X: 2, Y: 2}, {X: 2, Y: 3}}, Direction: Up, Score: 0})
	require.NoError(t, err)
	s, _ = w.Snake("p2")
	require.Equal(t, 0, s.Score)
	require.False(t, w.Occupied(Cell{X: 1, Y: 1}))
	require.True(t, w.Occupied(Cell{X: 2, Y: 3}))
}

func TestWorld_ApplyRemoteRejectsMalformed(t *testing.T) {
	w := newTestWorld(Cell{X: 10, Y: 10})
	err := w.ApplyRemote(SnakeState{ID: "p2", Body: []Cell{{X: 45, Y: 1}}, Direction: Up})
	require.Equal(t, ErrMalformedState, errors.Cause(err))
	_, ok := w.Snake("p2")
	require.False(t, ok)
	require.False(t, w.Occupied(Cell{X: 45, Y: 1}))
}

func TestWorld_ApplyRemoteRejectsLocalID(t *testing.T) {
	w := newTestWorld(Cell{X: 10, Y: 10})
	err := w.ApplyRemote(SnakeState{ID: "local", Body: []Cell{{X: 9, Y: 9}}, Direction: Up})
	require.Equal(t, ErrLocalSnake, errors.Cause(err))
	require.Equal(t, StartingBody(5), w.Local().Body)
}

func TestWorld_RemoveRemote(t *testing.T) {
	w := newTestWorld(Cell{X: 10, Y: 10})
	body := []Cell{{X: 20, Y: 20}, {X: 20, Y: 21}, {X: 20, Y: 22}}
	require.NoError(t, w.ApplyRemote(SnakeState{ID: "p2", Body: body, Direction: Up}))

	require.True(t, w.RemoveRemote("p2"))
	_, ok := w.Snake("p2")
	require.False(t, ok)
	for _, c := range body {
		require.False(t, w.Occupied(c))
	}

	require.False(t, w.RemoveRemote("p2"))
	require.False(t, w.RemoveRemote("local"))
	require.Equal(t, 1, w.Len())
}

func TestWorld_RemoteSnakesDoNotMove(t *testing.T) {
	w := newTestWorld(Cell{X: 10, Y: 10})
	body := []Cell{{X: 20, Y: 20}, {X: 20, Y: 21}}
	require.NoError(t, w.ApplyRemote(SnakeState{ID: "p2", Body: body, Direction: Up}))
	for i := 0; i < 3; i++ {
		w.Step()
	}
	s, _ := w.Snake("p2")
	require.Equal(t, body, s.Body)
}

func TestWorld_Probe(t *testing.T) {
	w := newTestWorld(Cell{X: 10, Y: 10})
	require.Equal(t, CollisionWall, w.Probe(Up))
	require.Equal(t, CollisionNone, w.Probe(Right))
	require.Equal(t, CollisionNone, w.Probe(Down))
	require.Equal(t, CollisionBody, w.Probe(Left))
	// probing does not move anything
	require.Equal(t, StartingBody(5), w.Local().Body)
}

func TestWorld_Snapshot(t *testing.T) {
	w := newTestWorld(Cell{X: 10, Y: 10})
	require.NoError(t, w.ApplyRemote(SnakeState{ID: "b", Body: []Cell{{X: 1, Y: 1}}, Direction: Up, Score: 2}))
	require.NoError(t, w.ApplyRemote(SnakeState{ID: "a", Body: []Cell{{X: 2, Y: 2}}, Direction: Up}))
	w.Step()

	snap := w.Snapshot()
	require.Equal(t, int64(1), snap.Turn)
	require.Equal(t, "local", snap.LocalID)
	require.Equal(t, Cell{X: 10, Y: 10}, snap.Food)
	require.Equal(t, 0, snap.LocalScore)
	require.Len(t, snap.Snakes, 3)
	require.Equal(t, "a", snap.Snakes[0].ID)
	require.Equal(t, "b", snap.Snakes[1].ID)
	require.Equal(t, "local", snap.Snakes[2].ID)

	// mutating the snapshot leaves the world alone
	snap.Snakes[2].Body[0] = Cell{X: 30, Y: 30}
	require.Equal(t, Cell{X: 5, Y: 0}, w.Local().Body[0])
}

func TestWorld_BodyNeverEmpty(t *testing.T) {
	w := NewWorld("local", Options{
		Grid: Grid{Width: 8, Height: 8},
		Rand: rand.New(rand.NewSource(7)),
	})
	r := rand.New(rand.NewSource(11))
	dirs := []Direction{Up, Down, Left, Right}
	for i := 0; i < 2000; i++ {
		w.SetDirection("local", dirs[r.Intn(len(dirs))])
		w.Step()
		local := w.Local()
		require.NotEmpty(t, local.Body)
		require.True(t, w.Grid().Contains(w.Food()))
		for _, c := range local.Body {
			require.True(t, w.Grid().Contains(c))
			require.True(t, w.Occupied(c))
		}
	}
}

func TestWorld_Publish(t *testing.T) {
	w := newTestWorld(Cell{X: 10, Y: 10})
	rec := &recorder{}
	w.Observe(rec)
	w.Publish()
	require.Len(t, rec.states, 1)
	require.Equal(t, "local", rec.states[0].ID)
}

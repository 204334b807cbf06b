package rules

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultStartLength is the length of a freshly spawned snake.
const DefaultStartLength = 5

// maxFoodAttempts bounds how often the spawner is asked again when it picks
// the cell that was just eaten.
const maxFoodAttempts = 32

// ErrLocalSnake is returned when a remote event targets the local snake.
// Only this process writes its own snake.
var ErrLocalSnake = errors.New("rules: remote event for the local snake")

// Observer is told about every committed change to the local snake.
type Observer interface {
	LocalSnakeChanged(SnakeState)
}

// Options configures a World. Zero values get defaults.
type Options struct {
	Grid           Grid
	StartBody      []Cell
	StartDirection Direction
	Food           FoodSpawner
	Rand           Random
	// InitialFood places the first food instead of asking the spawner.
	InitialFood *Cell
}

// StepResult describes what a tick did to the local snake.
type StepResult struct {
	Turn      int64
	Head      Cell
	Moved     bool
	Ate       bool
	Collision CollisionKind
}

// Snapshot is a read-only copy of the board for renderers.
type Snapshot struct {
	Turn       int64        `json:"turn"`
	Grid       Grid         `json:"grid"`
	LocalID    string       `json:"localId"`
	Snakes     []SnakeState `json:"snakes"`
	Food       Cell         `json:"food"`
	LocalScore int          `json:"localScore"`
}

// World owns every snake on the board, the food and the occupancy index.
// Exactly one snake is local: it is advanced by Step. All other snakes are
// mirrors of remote events and never move on their own.
//
// A single mutex covers a tick's read-modify-publish sequence and every
// remote event, so ticks and inbound events interleave but never overlap.
type World struct {
	mu sync.Mutex

	grid      Grid
	localID   string
	snakes    map[string]*Snake
	food      Cell
	occupied  Occupancy
	spawner   FoodSpawner
	startBody []Cell
	startDir  Direction
	turn      int64
	observer  Observer
}

// NewWorld creates a board holding a fresh local snake and one food.
func NewWorld(localID string, opts Options) *World {
	if opts.Grid.Width <= 0 || opts.Grid.Height <= 0 {
		opts.Grid = NewGrid(450, 450, 10)
	}
	if len(opts.StartBody) == 0 {
		opts.StartBody = StartingBody(DefaultStartLength)
	}
	if !opts.StartDirection.Valid() {
		opts.StartDirection = Right
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Food == nil {
		opts.Food = RandomFood{Rand: opts.Rand}
	}

	// A start that doesn't fit would respawn into a wall forever.
	for _, c := range opts.StartBody {
		if !opts.Grid.Contains(c) {
			panic(fmt.Sprintf("rules: start cell %s outside %dx%d grid", c, opts.Grid.Width, opts.Grid.Height))
		}
	}
	if opts.InitialFood != nil && !opts.Grid.Contains(*opts.InitialFood) {
		panic(fmt.Sprintf("rules: initial food %s outside %dx%d grid", *opts.InitialFood, opts.Grid.Width, opts.Grid.Height))
	}

	w := &World{
		grid:      opts.Grid,
		localID:   localID,
		snakes:    map[string]*Snake{},
		occupied:  Occupancy{},
		spawner:   opts.Food,
		startBody: cloneCells(opts.StartBody),
		startDir:  opts.StartDirection,
	}

	local := NewSnake(localID, w.startBody, w.startDir)
	w.snakes[localID] = local
	w.occupied.Add(local.body...)

	if opts.InitialFood != nil {
		w.food = *opts.InitialFood
	} else {
		w.food = w.spawner.Spawn(w.grid, w.occupied)
	}

	log.WithFields(log.Fields{
		"SnakeID": localID,
		"Width":   w.grid.Width,
		"Height":  w.grid.Height,
		"Food":    w.food,
	}).Info("world created")
	return w
}

// Observe registers the observer of local snake changes.
func (w *World) Observe(o Observer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.observer = o
}

// Grid returns the board dimensions.
func (w *World) Grid() Grid { return w.grid }

// LocalID returns the id of the snake driven by this process.
func (w *World) LocalID() string { return w.localID }

// SetDirection requests a heading change for the local snake. Requests for
// any other snake and reversals are ignored. Several requests before a tick
// collapse to the last accepted one.
func (w *World) SetDirection(id string, d Direction) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if id != w.localID {
		return false
	}
	return w.local().SetDirection(d)
}

// HandleKey maps an arrow key code to a heading change of the local snake.
func (w *World) HandleKey(code int) bool {
	d, ok := KeyDirection(code)
	if !ok {
		return false
	}
	return w.SetDirection(w.localID, d)
}

// Step advances the local snake by one cell.
//
// A collision respawns the local snake at the start position with a score of
// zero instead of moving it. Eating grows the snake and respawns the food in
// the same step. Either way the observer sees only the final state.
func (w *World) Step() StepResult {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.turn++
	local := w.local()
	head := local.PeekNextHead()
	grew := head.Equal(w.food)

	kind := CheckCollision(head, w.grid, ObstaclesFor(local, w.occupied, grew))
	if kind != CollisionNone {
		log.WithFields(log.Fields{
			"SnakeID": w.localID,
			"Turn":    w.turn,
			"Head":    head,
			"Cause":   kind,
			"Score":   local.score,
		}).Info("local snake died, respawning")
		w.respawnLocal()
		w.notify(local)
		return StepResult{Turn: w.turn, Head: local.Head(), Collision: kind}
	}

	tail := local.Tail()
	local.Advance(head, grew)
	w.occupied.Add(head)
	if !grew {
		w.occupied.Remove(tail)
	} else {
		w.food = w.spawnFood(head)
		log.WithFields(log.Fields{
			"SnakeID": w.localID,
			"Turn":    w.turn,
			"Score":   local.score,
			"Food":    w.food,
		}).Debug("snake ate")
	}
	w.notify(local)
	return StepResult{Turn: w.turn, Head: head, Moved: true, Ate: grew}
}

// Probe reports what moving the local snake one cell towards d would run
// into, without moving it.
func (w *World) Probe(d Direction) CollisionKind {
	w.mu.Lock()
	defer w.mu.Unlock()

	local := w.local()
	head := d.Step(local.Head())
	return CheckCollision(head, w.grid, ObstaclesFor(local, w.occupied, head.Equal(w.food)))
}

// ApplyRemote replaces, or creates, a remote snake with the reported state.
// Peers are trusted: nothing but the grid bounds is checked.
func (w *World) ApplyRemote(state SnakeState) error {
	if err := state.Validate(w.grid); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if state.ID == w.localID {
		return errors.Wrapf(ErrLocalSnake, "snake %s", state.ID)
	}

	s, ok := w.snakes[state.ID]
	if ok {
		w.occupied.Remove(s.body...)
	} else {
		s = &Snake{id: state.ID}
		w.snakes[state.ID] = s
	}
	s.Reset(state.Body, state.Direction, state.Score)
	w.occupied.Add(s.body...)
	return nil
}

// RemoveRemote drops a remote snake and its cells. It reports whether the
// snake existed. The local snake can not be removed.
func (w *World) RemoveRemote(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if id == w.localID {
		return false
	}
	s, ok := w.snakes[id]
	if !ok {
		return false
	}
	w.occupied.Remove(s.body...)
	delete(w.snakes, id)
	return true
}

// Local returns the state of the local snake.
func (w *World) Local() SnakeState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.local().State()
}

// Snake returns the state of any snake on the board.
func (w *World) Snake(id string) (SnakeState, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	s, ok := w.snakes[id]
	if !ok {
		return SnakeState{}, false
	}
	return s.State(), true
}

// Len is the number of snakes on the board, the local one included.
func (w *World) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.snakes)
}

// Food returns the current food cell.
func (w *World) Food() Cell {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.food
}

// Occupied reports whether any snake covers c.
func (w *World) Occupied(c Cell) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.occupied.Contains(c)
}

// Snapshot copies the board for rendering. Snakes are ordered by id.
func (w *World) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	snakes := make([]SnakeState, 0, len(w.snakes))
	for _, s := range w.snakes {
		snakes = append(snakes, s.State())
	}
	sort.Slice(snakes, func(i, j int) bool { return snakes[i].ID < snakes[j].ID })

	return Snapshot{
		Turn:       w.turn,
		Grid:       w.grid,
		LocalID:    w.localID,
		Snakes:     snakes,
		Food:       w.food,
		LocalScore: w.local().score,
	}
}

// Publish hands the current local state to the observer, used to announce
// the snake before the first tick.
func (w *World) Publish() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.notify(w.local())
}

func (w *World) local() *Snake {
	s, ok := w.snakes[w.localID]
	if !ok {
		panic("rules: local snake " + w.localID + " is missing from the world")
	}
	return s
}

func (w *World) respawnLocal() {
	local := w.local()
	w.occupied.Remove(local.body...)
	local.Reset(w.startBody, w.startDir, 0)
	w.occupied.Add(local.body...)
}

func (w *World) spawnFood(eaten Cell) Cell {
	var c Cell
	for i := 0; i < maxFoodAttempts; i++ {
		c = w.spawner.Spawn(w.grid, w.occupied)
		if !c.Equal(eaten) {
			return c
		}
	}
	// Unlucky draws: take the next cell in row order.
	if w.grid.Area() > 1 {
		i := (eaten.Y*w.grid.Width + eaten.X + 1) % w.grid.Area()
		c = Cell{X: i % w.grid.Width, Y: i / w.grid.Width}
	}
	return c
}

func (w *World) notify(s *Snake) {
	if w.observer == nil {
		return
	}
	w.observer.LocalSnakeChanged(s.State())
}

package worker

import (
	"math/rand"

	"github.com/gridsnake/engine/rules"
)

var turns = []rules.Direction{rules.Up, rules.Down, rules.Left, rules.Right}

// Bot steers a snake without a player: towards the food when that is safe,
// otherwise straight on, otherwise any safe way. Boxed in, it gives up and
// keeps going.
type Bot struct {
	Rand *rand.Rand
}

// NewBot creates a bot with its own random source.
func NewBot(seed int64) *Bot {
	return &Bot{Rand: rand.New(rand.NewSource(seed))}
}

// Steer picks the next direction of the world's local snake.
func (b *Bot) Steer(w *rules.World) {
	local := w.Local()
	head := local.Body[0]
	food := w.Food()

	var safe, closer []rules.Direction
	for _, d := range turns {
		if d == local.Direction.Opposite() {
			continue
		}
		if w.Probe(d) != rules.CollisionNone {
			continue
		}
		safe = append(safe, d)
		if distance(d.Step(head), food) < distance(head, food) {
			closer = append(closer, d)
		}
	}

	var choice rules.Direction
	switch {
	case len(closer) > 0:
		choice = closer[b.Rand.Intn(len(closer))]
	case contains(safe, local.Direction):
		choice = local.Direction
	case len(safe) > 0:
		choice = safe[b.Rand.Intn(len(safe))]
	default:
		return
	}
	w.SetDirection(w.LocalID(), choice)
}

func contains(ds []rules.Direction, d rules.Direction) bool {
	for _, x := range ds {
		if x == d {
			return true
		}
	}
	return false
}

func distance(a, b rules.Cell) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

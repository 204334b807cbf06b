package testsuite

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gridsnake/engine/controller"
	"github.com/gridsnake/engine/rules"
	uuid "github.com/satori/go.uuid"
	"github.com/stretchr/testify/require"
)

func snake(id string, score int, cells ...rules.Cell) rules.SnakeState {
	return rules.SnakeState{ID: id, Body: cells, Direction: rules.Right, Score: score}
}

func testStoreClaim(t *testing.T, s controller.Store) {
	room := uuid.NewV4().String()
	ctx := context.Background()

	// Claim random id.
	tok, err := s.Claim(ctx, room, "p1", "")
	require.Nil(t, err)
	require.NotEmpty(t, tok)

	// Claim with valid token, no error same token returned.
	tok2, err := s.Claim(ctx, room, "p1", tok)
	require.Nil(t, err)
	require.Equal(t, tok, tok2)

	// Claim without the token is refused.
	_, err = s.Claim(ctx, room, "p1", "")
	require.Equal(t, controller.ErrIsClaimed, err)

	// Same id in another room is independent.
	_, err = s.Claim(ctx, room+"-other", "p1", "")
	require.Nil(t, err)

	// Release without valid token returns error.
	err = s.Release(ctx, room, "p1", "")
	require.Equal(t, controller.ErrIsClaimed, err)

	// Release with valid token no error.
	err = s.Release(ctx, room, "p1", tok)
	require.Nil(t, err)

	// Release where claim doesn't exist returns no error.
	err = s.Release(ctx, room, "missing", "")
	require.Nil(t, err)

	// A returning player may bring its own token.
	tok3, err := s.Claim(ctx, room, "p1", "chosen-token")
	require.Nil(t, err)
	require.Equal(t, "chosen-token", tok3)
}

func testStoreClaimExpiry(t *testing.T, s controller.Store, advance func(time.Duration)) {
	room := uuid.NewV4().String()
	ctx := context.Background()

	controller.ClaimExpiry = 100 * time.Millisecond
	defer func() { controller.ClaimExpiry = 15 * time.Second }()

	tok, err := s.Claim(ctx, room, "p1", "")
	require.Nil(t, err)

	_, err = s.Claim(ctx, room, "p1", "")
	require.Equal(t, controller.ErrIsClaimed, err)

	advance(250 * time.Millisecond)

	// Expired, anyone may claim it now.
	tok2, err := s.Claim(ctx, room, "p1", "")
	require.Nil(t, err)
	require.NotEqual(t, tok, tok2)

	// The old owner lost it.
	err = s.Release(ctx, room, "p1", tok)
	require.Equal(t, controller.ErrIsClaimed, err)
}

func testStoreSnakes(t *testing.T, s controller.Store) {
	room := uuid.NewV4().String()
	ctx := context.Background()

	// Empty room.
	snakes, err := s.ListSnakes(ctx, room)
	require.Nil(t, err)
	require.Len(t, snakes, 0)

	// NotFound error thrown.
	_, err = s.GetSnake(ctx, room, "p1")
	require.Equal(t, controller.ErrNotFound, err)

	b := snake("b", 0, rules.Cell{X: 1, Y: 1}, rules.Cell{X: 0, Y: 1})
	a := snake("a", 4, rules.Cell{X: 7, Y: 3})
	require.Nil(t, s.PutSnake(ctx, room, b))
	require.Nil(t, s.PutSnake(ctx, room, a))

	got, err := s.GetSnake(ctx, room, "b")
	require.Nil(t, err)
	require.Equal(t, b, got)

	// Listed in id order.
	snakes, err = s.ListSnakes(ctx, room)
	require.Nil(t, err)
	require.Equal(t, []rules.SnakeState{a, b}, snakes)

	// Last write wins.
	b2 := snake("b", 1, rules.Cell{X: 2, Y: 1}, rules.Cell{X: 1, Y: 1}, rules.Cell{X: 0, Y: 1})
	require.Nil(t, s.PutSnake(ctx, room, b2))
	got, err = s.GetSnake(ctx, room, "b")
	require.Nil(t, err)
	require.Equal(t, b2, got)

	// Other rooms don't see it.
	snakes, err = s.ListSnakes(ctx, room+"-other")
	require.Nil(t, err)
	require.Len(t, snakes, 0)

	// Remove it.
	require.Nil(t, s.RemoveSnake(ctx, room, "b"))
	_, err = s.GetSnake(ctx, room, "b")
	require.Equal(t, controller.ErrNotFound, err)
	snakes, err = s.ListSnakes(ctx, room)
	require.Nil(t, err)
	require.Equal(t, []rules.SnakeState{a}, snakes)

	// Removing twice is fine.
	require.Nil(t, s.RemoveSnake(ctx, room, "b"))
}

func testStoreConcurrentClaims(t *testing.T, s controller.Store) {
	room := uuid.NewV4().String()
	ctx := context.Background()

	var ok uint32 // How many got the claim.
	var wg sync.WaitGroup
	wg.Add(20)

	for i := 0; i < 20; i++ {
		go func() {
			if _, err := s.Claim(ctx, room, "p1", ""); err == nil {
				atomic.AddUint32(&ok, 1)
			}
			wg.Done()
		}()
	}

	wg.Wait()

	require.Equal(t, uint32(1), ok)
}

// Suite will execute the store testsuite. advance must make at least the
// given duration pass for the store's claim expiry.
func Suite(t *testing.T, s controller.Store, pretest func(), advance func(time.Duration)) {
	s = controller.InstrumentStore(s)
	t.Run("Claim", func(t *testing.T) { pretest(); testStoreClaim(t, s) })
	t.Run("ClaimExpiry", func(t *testing.T) { pretest(); testStoreClaimExpiry(t, s, advance) })
	t.Run("Snakes", func(t *testing.T) { pretest(); testStoreSnakes(t, s) })
	t.Run("ConcurrentClaims", func(t *testing.T) { pretest(); testStoreConcurrentClaims(t, s) })
}

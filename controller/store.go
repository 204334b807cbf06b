package controller

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/gridsnake/engine/rules"
	uuid "github.com/satori/go.uuid"
)

var (
	// ClaimExpiry is the time after which an unrefreshed snake claim expires.
	ClaimExpiry = 15 * time.Second
	// ErrNotFound is returned when a snake is not found.
	ErrNotFound = errors.New("controller: snake not found")
	// ErrIsClaimed is returned when a snake id is owned by another token.
	ErrIsClaimed = errors.New("controller: snake is claimed")
)

// Store is the interface to the backend holding the latest state of every
// snake in a room, plus the claims that make sure only one player writes a
// given snake id.
type Store interface {
	Claim(ctx context.Context, room, id, token string) (string, error)
	Release(ctx context.Context, room, id, token string) error
	PutSnake(ctx context.Context, room string, s rules.SnakeState) error
	RemoveSnake(ctx context.Context, room, id string) error
	GetSnake(ctx context.Context, room, id string) (rules.SnakeState, error)
	ListSnakes(ctx context.Context, room string) ([]rules.SnakeState, error)
}

// NewToken returns a fresh claim token.
func NewToken() string {
	return uuid.NewV4().String()
}

// SortSnakes orders states by id, the order every store lists them in.
func SortSnakes(states []rules.SnakeState) {
	sort.Slice(states, func(i, j int) bool { return states[i].ID < states[j].ID })
}

// InMemStore returns an in memory implementation of the Store interface.
func InMemStore() Store {
	return &inmem{
		rooms:  map[string]map[string]rules.SnakeState{},
		claims: map[string]*claim{},
	}
}

type claim struct {
	token   string
	expires time.Time
}

type inmem struct {
	rooms  map[string]map[string]rules.SnakeState
	claims map[string]*claim
	lock   sync.Mutex
}

func claimKey(room, id string) string {
	return room + "/" + id
}

func (in *inmem) Claim(ctx context.Context, room, id, token string) (string, error) {
	in.lock.Lock()
	defer in.lock.Unlock()

	key := claimKey(room, id)
	now := time.Now()
	c, ok := in.claims[key]
	if ok {
		if token != "" && c.token == token {
			c.expires = now.Add(ClaimExpiry)
			return c.token, nil
		}
		if c.expires.After(now) {
			return "", ErrIsClaimed
		}
		delete(in.claims, key)
	}
	if token == "" {
		token = NewToken()
	}
	in.claims[key] = &claim{
		token:   token,
		expires: now.Add(ClaimExpiry),
	}
	return token, nil
}

func (in *inmem) Release(ctx context.Context, room, id, token string) error {
	in.lock.Lock()
	defer in.lock.Unlock()

	key := claimKey(room, id)
	c, ok := in.claims[key]
	if !ok {
		return nil
	}
	if c.token == token || c.expires.Before(time.Now()) {
		delete(in.claims, key)
		return nil
	}
	return ErrIsClaimed
}

func (in *inmem) PutSnake(ctx context.Context, room string, s rules.SnakeState) error {
	in.lock.Lock()
	defer in.lock.Unlock()

	snakes, ok := in.rooms[room]
	if !ok {
		snakes = map[string]rules.SnakeState{}
		in.rooms[room] = snakes
	}
	snakes[s.ID] = s.Clone()
	return nil
}

func (in *inmem) RemoveSnake(ctx context.Context, room, id string) error {
	in.lock.Lock()
	defer in.lock.Unlock()

	snakes, ok := in.rooms[room]
	if !ok {
		return nil
	}
	delete(snakes, id)
	if len(snakes) == 0 {
		delete(in.rooms, room)
	}
	return nil
}

func (in *inmem) GetSnake(ctx context.Context, room, id string) (rules.SnakeState, error) {
	in.lock.Lock()
	defer in.lock.Unlock()

	if s, ok := in.rooms[room][id]; ok {
		return s.Clone(), nil
	}
	return rules.SnakeState{}, ErrNotFound
}

func (in *inmem) ListSnakes(ctx context.Context, room string) ([]rules.SnakeState, error) {
	in.lock.Lock()
	defer in.lock.Unlock()

	states := make([]rules.SnakeState, 0, len(in.rooms[room]))
	for _, s := range in.rooms[room] {
		states = append(states, s.Clone())
	}
	SortSnakes(states)
	return states, nil
}

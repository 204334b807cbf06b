// Package redis keeps room state in redis: a hash per room holding the latest
// state of every snake, an expiring key per claim and a pub/sub channel per
// room announcing every change.
package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis"
	"github.com/gridsnake/engine/controller"
	"github.com/gridsnake/engine/rules"
	"github.com/pkg/errors"
)

// claimScript takes or refreshes a claim when it is free or already ours.
var claimScript = redis.NewScript(`
local cur = redis.call("GET", KEYS[1])
if cur == false or cur == ARGV[1] then
	redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
	return 1
end
return 0
`)

// releaseScript drops a claim when it is free or ours.
var releaseScript = redis.NewScript(`
local cur = redis.call("GET", KEYS[1])
if cur == false or cur == ARGV[1] then
	redis.call("DEL", KEYS[1])
	return 1
end
return 0
`)

// Change is the message published on a room's channel.
type Change struct {
	ID      string              `json:"id"`
	Removed bool                `json:"removed,omitempty"`
	Snake   *rules.CompactState `json:"snake,omitempty"`
}

// State expands the carried snake.
func (c Change) State() (rules.SnakeState, error) {
	if c.Snake == nil {
		return rules.SnakeState{}, errors.Errorf("redis: change for %s carries no snake", c.ID)
	}
	return c.Snake.Expand()
}

// DecodeChange parses a channel message payload.
func DecodeChange(payload string) (Change, error) {
	var c Change
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return Change{}, errors.Wrap(err, "redis: bad change message")
	}
	return c, nil
}

// SnakesKey is the hash holding a room's snakes.
func SnakesKey(room string) string { return "snakes:" + room }

// ChangesChannel is the pub/sub channel of a room.
func ChangesChannel(room string) string { return "snakes:" + room + ":changes" }

func claimKey(room, id string) string { return "claims:" + room + ":" + id }

// Store is a controller.Store backed by redis.
type Store struct {
	client *redis.Client
}

// New wraps an existing client.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

// NewStore will create a new instance of an underlying redis client, so it
// should not be re-created across "threads".
// - connectURL see: github.com/go-redis/redis/options.go for URL specifics
// The client is immediately tested for connectivity.
func NewStore(connectURL string) (*Store, error) {
	o, err := redis.ParseURL(connectURL)
	if err != nil {
		return nil, errors.Wrap(err, "unable to parse redis URL")
	}

	client := redis.NewClient(o)

	// Validate it's connected
	if err := client.Ping().Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "unable to connect")
	}

	return New(client), nil
}

// Client exposes the underlying client.
func (rs *Store) Client() *redis.Client { return rs.client }

// Close closes the underlying client.
func (rs *Store) Close() error { return rs.client.Close() }

// Claim takes the snake id for token, or refreshes it when token already
// holds it. An empty token is replaced by a new one.
func (rs *Store) Claim(ctx context.Context, room, id, token string) (string, error) {
	if token == "" {
		token = controller.NewToken()
	}
	ms := int64(controller.ClaimExpiry / time.Millisecond)
	if ms < 1 {
		ms = 1
	}
	ok, err := runScript(rs.client, claimScript, claimKey(room, id), token, ms)
	if err != nil {
		return "", errors.Wrap(err, "claim failed")
	}
	if !ok {
		return "", controller.ErrIsClaimed
	}
	return token, nil
}

// Release drops the claim if token holds it.
func (rs *Store) Release(ctx context.Context, room, id, token string) error {
	ok, err := runScript(rs.client, releaseScript, claimKey(room, id), token)
	if err != nil {
		return errors.Wrap(err, "release failed")
	}
	if !ok {
		return controller.ErrIsClaimed
	}
	return nil
}

// PutSnake stores the state and announces it on the room channel.
func (rs *Store) PutSnake(ctx context.Context, room string, s rules.SnakeState) error {
	c := s.Compact()
	value, err := json.Marshal(c)
	if err != nil {
		return err
	}
	msg, err := json.Marshal(Change{ID: s.ID, Snake: &c})
	if err != nil {
		return err
	}
	_, err = rs.client.TxPipelined(func(pipe redis.Pipeliner) error {
		pipe.HSet(SnakesKey(room), s.ID, string(value))
		pipe.Publish(ChangesChannel(room), string(msg))
		return nil
	})
	return errors.Wrapf(err, "put snake %s", s.ID)
}

// RemoveSnake deletes the state and announces the removal.
func (rs *Store) RemoveSnake(ctx context.Context, room, id string) error {
	msg, err := json.Marshal(Change{ID: id, Removed: true})
	if err != nil {
		return err
	}
	_, err = rs.client.TxPipelined(func(pipe redis.Pipeliner) error {
		pipe.HDel(SnakesKey(room), id)
		pipe.Publish(ChangesChannel(room), string(msg))
		return nil
	})
	return errors.Wrapf(err, "remove snake %s", id)
}

// GetSnake returns the latest state of one snake.
func (rs *Store) GetSnake(ctx context.Context, room, id string) (rules.SnakeState, error) {
	value, err := rs.client.HGet(SnakesKey(room), id).Result()
	if err == redis.Nil {
		return rules.SnakeState{}, controller.ErrNotFound
	}
	if err != nil {
		return rules.SnakeState{}, err
	}
	return decodeSnake(value)
}

// ListSnakes returns every snake of the room ordered by id.
func (rs *Store) ListSnakes(ctx context.Context, room string) ([]rules.SnakeState, error) {
	values, err := rs.client.HGetAll(SnakesKey(room)).Result()
	if err != nil {
		return nil, err
	}
	states := make([]rules.SnakeState, 0, len(values))
	for _, v := range values {
		s, err := decodeSnake(v)
		if err != nil {
			return nil, err
		}
		states = append(states, s)
	}
	controller.SortSnakes(states)
	return states, nil
}

// Subscribe opens a subscription to the room's changes. The subscription is
// confirmed before returning, so no change published afterwards is missed.
func (rs *Store) Subscribe(room string) (*redis.PubSub, error) {
	ps := rs.client.Subscribe(ChangesChannel(room))
	if _, err := ps.Receive(); err != nil {
		ps.Close()
		return nil, errors.Wrap(err, "subscribe failed")
	}
	return ps, nil
}

func decodeSnake(value string) (rules.SnakeState, error) {
	var c rules.CompactState
	if err := json.Unmarshal([]byte(value), &c); err != nil {
		return rules.SnakeState{}, errors.Wrap(err, "bad stored snake")
	}
	return c.Expand()
}

// runScript evaluates one of the claim scripts, which answer 1 or 0.
func runScript(c *redis.Client, script *redis.Script, key string, args ...interface{}) (bool, error) {
	res, err := script.Run(c, []string{key}, args...).Result()
	if err != nil {
		return false, err
	}
	n, ok := res.(int64)
	if !ok {
		return false, errors.Errorf("unexpected script result %v", res)
	}
	return n == 1, nil
}

// Package filestore keeps each room as an append-only journal of JSON lines,
// one file per room, replayed when the room is first touched.
package filestore

import (
	"context"
	"net/url"
	"os/user"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/gridsnake/engine/controller"
	"github.com/gridsnake/engine/rules"
	log "github.com/sirupsen/logrus"
)

// compactAfter is how many entries a room journal takes before it is
// rewritten down to one line per snake.
var compactAfter = 1024

func defaultDir() string {
	return path.Join(homeDir(), ".gridsnake/rooms")
}

func homeDir() string {
	usr, err := user.Current()
	if err != nil {
		return "."
	}
	return usr.HomeDir
}

// NewFileStore returns a file based store implementation (1 file per room).
func NewFileStore(directory string) *Store {
	if directory == "" {
		directory = defaultDir()
	}

	return &Store{
		rooms:     map[string]map[string]rules.SnakeState{},
		writers:   map[string]writer{},
		appended:  map[string]int{},
		claims:    map[string]*claim{},
		directory: directory,
	}
}

type claim struct {
	token   string
	expires time.Time
}

// Store is a controller.Store journaled to disk. Claims only live in memory.
type Store struct {
	rooms     map[string]map[string]rules.SnakeState
	writers   map[string]writer
	appended  map[string]int
	claims    map[string]*claim
	lock      sync.Mutex
	directory string
}

func claimKey(room, id string) string { return room + "/" + id }

// Claim takes the snake id for token, or refreshes it when token already
// holds it.
func (fs *Store) Claim(ctx context.Context, room, id, token string) (string, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	now := time.Now()
	key := claimKey(room, id)

	c, ok := fs.claims[key]
	if ok {
		// We have a claim, if it's expired just delete it and continue as
		// if nothing happened.
		if c.expires.Before(now) {
			delete(fs.claims, key)
		} else {
			// Not expired and ours, bump the expiration.
			if token != "" && c.token == token {
				c.expires = now.Add(controller.ClaimExpiry)
				return c.token, nil
			}
			return "", controller.ErrIsClaimed
		}
	}
	if token == "" {
		token = controller.NewToken()
	}
	fs.claims[key] = &claim{
		token:   token,
		expires: now.Add(controller.ClaimExpiry),
	}
	return token, nil
}

// Release drops the claim if token holds it.
func (fs *Store) Release(ctx context.Context, room, id, token string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	key := claimKey(room, id)
	c, ok := fs.claims[key]
	// No claim? Don't care.
	if !ok {
		return nil
	}
	// Ours or expired, either way it can go.
	if c.expires.Before(time.Now()) || c.token == token {
		delete(fs.claims, key)
		return nil
	}
	return controller.ErrIsClaimed
}

// PutSnake journals the state, then caches it.
func (fs *Store) PutSnake(ctx context.Context, room string, s rules.SnakeState) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	snakes, err := fs.requireRoom(room)
	if err != nil {
		return err
	}
	w, err := fs.requireHandle(room)
	if err != nil {
		return err
	}
	if err := writePut(w, s); err != nil {
		return err
	}
	snakes[s.ID] = s.Clone()
	fs.appendedTo(room, snakes)
	return nil
}

// RemoveSnake journals the removal of a known snake.
func (fs *Store) RemoveSnake(ctx context.Context, room, id string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	snakes, err := fs.requireRoom(room)
	if err != nil {
		return err
	}
	if _, ok := snakes[id]; !ok {
		return nil
	}
	w, err := fs.requireHandle(room)
	if err != nil {
		return err
	}
	if err := writeRemove(w, id); err != nil {
		return err
	}
	delete(snakes, id)
	fs.appendedTo(room, snakes)
	return nil
}

// GetSnake returns the latest state of one snake.
func (fs *Store) GetSnake(ctx context.Context, room, id string) (rules.SnakeState, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	snakes, err := fs.requireRoom(room)
	if err != nil {
		return rules.SnakeState{}, err
	}
	s, ok := snakes[id]
	if !ok {
		return rules.SnakeState{}, controller.ErrNotFound
	}
	return s.Clone(), nil
}

// ListSnakes returns every snake of the room ordered by id.
func (fs *Store) ListSnakes(ctx context.Context, room string) ([]rules.SnakeState, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	snakes, err := fs.requireRoom(room)
	if err != nil {
		return nil, err
	}
	states := make([]rules.SnakeState, 0, len(snakes))
	for _, s := range snakes {
		states = append(states, s.Clone())
	}
	controller.SortSnakes(states)
	return states, nil
}

// Close closes every open journal.
func (fs *Store) Close() error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	var first error
	for room, w := range fs.writers {
		if err := w.Close(); err != nil {
			log.WithError(err).WithField("Room", room).Error("Error while closing file writer")
			if first == nil {
				first = err
			}
		}
		delete(fs.writers, room)
	}
	return first
}

func (fs *Store) requireRoom(room string) (map[string]rules.SnakeState, error) {
	// Do nothing if room already loaded.
	if snakes, ok := fs.rooms[room]; ok {
		return snakes, nil
	}

	snakes, lines, err := readJournal(getFilePath(fs.directory, room))
	if err != nil {
		return nil, err
	}
	fs.rooms[room] = snakes
	if lines > len(snakes) {
		fs.compact(room, snakes)
	}
	return snakes, nil
}

func (fs *Store) appendedTo(room string, snakes map[string]rules.SnakeState) {
	fs.appended[room]++
	if fs.appended[room] >= compactAfter {
		fs.compact(room, snakes)
	}
}

// compact rewrites the room journal as one put per snake. A failed rewrite
// leaves the old journal in place, which still replays to the same room.
func (fs *Store) compact(room string, snakes map[string]rules.SnakeState) {
	ids := make([]string, 0, len(snakes))
	for id := range snakes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	err := rewriteJournal(fs.directory, getFilePath(fs.directory, room), func(w writer) error {
		for _, id := range ids {
			if err := writePut(w, snakes[id]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.WithError(err).WithField("Room", room).Warn("unable to compact journal")
		return
	}

	// The append handle points at the replaced file.
	if w, ok := fs.writers[room]; ok {
		if err := w.Close(); err != nil {
			log.WithError(err).WithField("Room", room).Warn("Error while closing file writer")
		}
		delete(fs.writers, room)
	}
	fs.appended[room] = 0
	log.WithFields(log.Fields{"Room": room, "Snakes": len(ids)}).Debug("journal compacted")
}

func (fs *Store) requireHandle(room string) (writer, error) {
	if w, ok := fs.writers[room]; ok {
		return w, nil
	}

	handle, err := openFileWriter(fs.directory, getFilePath(fs.directory, room))
	if err != nil {
		return nil, err
	}

	fs.writers[room] = handle
	return handle, nil
}

func getFilePath(directory string, room string) string {
	return path.Join(directory, url.PathEscape(room)) + ".snakes"
}

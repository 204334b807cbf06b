package commands

import (
	"context"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"github.com/gridsnake/engine/config"
	"github.com/gridsnake/engine/controller"
	ctlredis "github.com/gridsnake/engine/controller/redis"
	"github.com/gridsnake/engine/peersync"
	psredis "github.com/gridsnake/engine/peersync/redis"
	"github.com/gridsnake/engine/peersync/socket"
	"github.com/gridsnake/engine/rules"
	"github.com/gridsnake/engine/worker"
)

// link is a connected transport and the snake id it may publish.
type link struct {
	id        string
	transport peersync.Transport
	close     func() error
}

func relayURL(room string) string {
	return strings.TrimRight(relayAddr, "/") + "/rooms/" + url.PathEscape(room) + "/socket"
}

// connect joins the room through redis when --redis is set, the relay
// otherwise. An empty id lets the backend pick one.
func connect(ctx context.Context, id string) (*link, error) {
	if redisURL != "" {
		store, err := ctlredis.NewStore(redisURL)
		if err != nil {
			return nil, err
		}
		if id == "" {
			id = controller.NewToken()
		}
		t := psredis.New(store, room)
		return &link{id: id, transport: t, close: func() error {
			err := t.Close()
			store.Close()
			return err
		}}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	t, err := socket.Dial(ctx, relayURL(room), id, "")
	if err != nil {
		return nil, err
	}
	return &link{id: t.ID(), transport: t, close: t.Close}, nil
}

// newWorld builds a world sized by the config. Narrow boards get a shorter
// starting snake.
func newWorld(id string, seed int64, freeFood bool) *rules.World {
	r := rand.New(rand.NewSource(seed))
	var food rules.FoodSpawner = rules.RandomFood{Rand: r}
	if freeFood {
		food = rules.FreeCellFood{Rand: r}
	}
	grid := rules.NewGrid(config.CanvasWidth, config.CanvasHeight, config.CellWidth)
	length := rules.DefaultStartLength
	if grid.Width < length {
		length = grid.Width
	}
	return rules.NewWorld(id, rules.Options{
		Grid:      grid,
		StartBody: rules.StartingBody(length),
		Food:      food,
		Rand:      r,
	})
}

// newSession wires a world to a link, or runs it offline when l is nil.
func newSession(w *rules.World, l *link) *worker.Session {
	s := &worker.Session{
		World:             w,
		TickInterval:      config.TickInterval,
		HeartbeatInterval: config.HeartbeatInterval,
	}
	if l != nil {
		s.Adapter = peersync.NewAdapter(w, l.transport)
	}
	return s
}

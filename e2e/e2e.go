// Package e2e runs whole rooms in process: a relay with its api on an
// httptest server, and players connected to it over websockets.
package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"time"

	"github.com/gridsnake/engine/api"
	"github.com/gridsnake/engine/controller"
	"github.com/gridsnake/engine/peersync"
	"github.com/gridsnake/engine/peersync/socket"
	"github.com/gridsnake/engine/rules"
	"github.com/gridsnake/engine/worker"
)

type cluster struct {
	store controller.Store
	api   *api.Server
	srv   *httptest.Server
}

func newCluster() *cluster {
	store := controller.InMemStore()
	a := api.New("", store, controller.NewServer(store))
	return &cluster{
		store: store,
		api:   a,
		srv:   httptest.NewServer(a.Handler()),
	}
}

func (c *cluster) close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c.api.Shutdown(ctx)
	c.srv.Close()
}

func (c *cluster) socketURL(room string) string {
	return "ws" + strings.TrimPrefix(c.srv.URL, "http") + "/rooms/" + url.PathEscape(room) + "/socket"
}

// snakes lists a room through the api, the way the status command does.
func (c *cluster) snakes(room string) ([]rules.SnakeState, error) {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("%s/rooms/%s/snakes", c.srv.URL, url.PathEscape(room)))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var res struct {
		Snakes []rules.SnakeState `json:"snakes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, err
	}
	return res.Snakes, nil
}

type player struct {
	session   *worker.Session
	transport *socket.Transport
	cancel    func()
	done      chan error
}

// join connects a player whose snake starts heading right along row y.
func (c *cluster) join(room string, y int, tick time.Duration) (*player, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	t, err := socket.Dial(ctx, c.socketURL(room), "", "")
	if err != nil {
		return nil, err
	}

	w := rules.NewWorld(t.ID(), rules.Options{
		Grid:      rules.NewGrid(450, 450, 10),
		StartBody: []rules.Cell{{X: 4, Y: y}, {X: 3, Y: y}, {X: 2, Y: y}},
	})
	s := &worker.Session{
		World:        w,
		Adapter:      peersync.NewAdapter(w, t),
		TickInterval: tick,
	}

	runCtx, stop := context.WithCancel(context.Background())
	p := &player{session: s, transport: t, cancel: stop, done: make(chan error, 1)}
	go func() { p.done <- s.Run(runCtx) }()
	return p, nil
}

// leave stops the session and disconnects.
func (p *player) leave() error {
	p.cancel()
	<-p.done
	return p.transport.Close()
}

// Package socket is a peersync.Transport speaking to the controller relay
// over a websocket.
package socket

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/gridsnake/engine/controller"
	"github.com/gridsnake/engine/peersync"
	"github.com/gridsnake/engine/rules"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const writeWait = 10 * time.Second

// Transport is one relay connection. It can only publish the snake id the
// relay handed it.
type Transport struct {
	ws    *websocket.Conn
	id    string
	token string
	box   *peersync.Mailbox

	writeMu sync.Mutex

	mu         sync.Mutex
	subscribed bool
	closed     bool
	ended      bool
}

// Dial connects to a relay room socket, e.g. ws://host/rooms/lobby/socket.
// With an empty id the relay assigns one; id and token together reclaim a
// snake after a reconnect. A snake held by someone else yields
// controller.ErrIsClaimed.
func Dial(ctx context.Context, rawurl, id, token string) (*Transport, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return nil, errors.Wrap(err, "bad relay url")
	}
	q := u.Query()
	if id != "" {
		q.Set("id", id)
	}
	if token != "" {
		q.Set("token", token)
	}
	u.RawQuery = q.Encode()

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusConflict {
			return nil, controller.ErrIsClaimed
		}
		return nil, errors.Wrap(err, "dial relay")
	}

	if deadline, ok := ctx.Deadline(); ok {
		ws.SetReadDeadline(deadline)
	}
	var hello controller.Envelope
	if err := ws.ReadJSON(&hello); err != nil {
		ws.Close()
		return nil, errors.Wrap(err, "read hello")
	}
	if hello.Type != controller.MsgHello {
		ws.Close()
		return nil, errors.Errorf("expected hello, got %q", hello.Type)
	}
	ws.SetReadDeadline(time.Time{})

	t := &Transport{
		ws:    ws,
		id:    hello.ID,
		token: hello.Token,
		box:   peersync.NewMailbox(),
	}
	for _, s := range hello.Snakes {
		t.box.Put(peersync.UpdateEvent(s))
	}
	go t.read()
	return t, nil
}

// ID is the snake id this connection owns.
func (t *Transport) ID() string { return t.id }

// Token proves ownership of ID when reconnecting.
func (t *Transport) Token() string { return t.token }

func (t *Transport) read() {
	logger := log.WithField("SnakeID", t.id)
	for {
		var e controller.Envelope
		if err := t.ws.ReadJSON(&e); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				logger.WithError(err).Debug("relay connection ended")
			}
			break
		}
		switch e.Type {
		case controller.MsgUpdate:
			if e.State == nil {
				t.box.Put(peersync.Event{ID: e.ID})
				continue
			}
			t.box.Put(peersync.UpdateEvent(*e.State))
		case controller.MsgRemoved:
			t.box.Put(peersync.RemovedEvent(e.ID))
		case controller.MsgError:
			logger.WithField("Reason", e.Reason).Warn("relay refused message")
		default:
			logger.WithField("Type", e.Type).Warn("unknown relay message")
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.ended = true
	if t.subscribed {
		t.box.Close()
	} else {
		t.box.Abandon()
	}
}

func (t *Transport) write(ctx context.Context, e controller.Envelope) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return peersync.ErrClosed
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeWait)
	}
	t.ws.SetWriteDeadline(deadline)
	return t.ws.WriteJSON(e)
}

// Publish implements peersync.Transport.
func (t *Transport) Publish(ctx context.Context, state rules.SnakeState) error {
	if state.ID != t.id {
		return errors.Errorf("socket: connection owns %s, not %s", t.id, state.ID)
	}
	return t.write(ctx, controller.Envelope{Type: controller.MsgPublish, State: &state})
}

// Subscribe implements peersync.Transport.
func (t *Transport) Subscribe(ctx context.Context) (<-chan peersync.Event, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || t.ended {
		return nil, peersync.ErrClosed
	}
	if t.subscribed {
		return nil, peersync.ErrSubscribed
	}
	t.subscribed = true

	go func() {
		select {
		case <-ctx.Done():
			t.box.Abandon()
		case <-t.box.Done():
		}
	}()
	return t.box.Out(), nil
}

// OnDisconnectCleanup implements peersync.Transport. The relay removes the
// snake when this connection goes away, including when it stops answering.
func (t *Transport) OnDisconnectCleanup(ctx context.Context, id string) error {
	return t.write(ctx, controller.Envelope{Type: controller.MsgCleanup, ID: id})
}

// Close says goodbye to the relay and closes the connection.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	t.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	t.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	t.writeMu.Unlock()
	return t.ws.Close()
}

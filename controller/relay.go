package controller

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/gridsnake/engine/config"
	"github.com/gridsnake/engine/rules"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Relay message types.
const (
	MsgHello   = "hello"
	MsgPublish = "publish"
	MsgUpdate  = "update"
	MsgCleanup = "cleanup"
	MsgRemoved = "removed"
	MsgError   = "error"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// Envelope is every message exchanged with the relay.
type Envelope struct {
	Type   string             `json:"type"`
	ID     string             `json:"id,omitempty"`
	Token  string             `json:"token,omitempty"`
	State  *rules.SnakeState  `json:"state,omitempty"`
	Snakes []rules.SnakeState `json:"snakes,omitempty"`
	Reason string             `json:"reason,omitempty"`
}

var (
	relayConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "gridsnake",
			Subsystem: "relay",
			Name:      "connections",
			Help:      "Open relay connections.",
		},
	)
	relayMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gridsnake",
			Subsystem: "relay",
			Name:      "messages",
			Help:      "Messages received by the relay.",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(relayConnections, relayMessages)
}

// Server relays snake states between the players of a room over websockets.
// Each connection owns exactly one snake id, claimed in the Store for as long
// as the connection answers pings. Published states must fit Grid.
type Server struct {
	Store        Store
	Grid         rules.Grid
	PingInterval time.Duration
	MsgRate      rate.Limit
	MsgBurst     int

	upgrader websocket.Upgrader

	mu    sync.Mutex
	rooms map[string]map[*peer]struct{}
}

type peer struct {
	room    string
	id      string
	token   string
	ws      *websocket.Conn
	send    chan Envelope
	cleanup bool
	limiter *rate.Limiter
}

// NewServer creates a relay over the store using the configured defaults.
func NewServer(store Store) *Server {
	return &Server{
		Store:        store,
		Grid:         rules.NewGrid(config.CanvasWidth, config.CanvasHeight, config.CellWidth),
		PingInterval: config.RelayPingInterval,
		MsgRate:      config.RelayMsgRate,
		MsgBurst:     config.RelayMsgBurstRate,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		rooms: map[string]map[*peer]struct{}{},
	}
}

// Handle upgrades the request and serves the connection until it goes away.
// The client may ask for a snake id with ?id= and prove it owns it with
// ?token=; otherwise it is handed a new id.
func (s *Server) Handle(w http.ResponseWriter, r *http.Request, room string) {
	id := r.URL.Query().Get("id")
	token := r.URL.Query().Get("token")
	if id == "" {
		id = NewToken()
	}

	token, err := s.Store.Claim(r.Context(), room, id, token)
	if err == ErrIsClaimed {
		http.Error(w, "snake id is taken", http.StatusConflict)
		return
	}
	if err != nil {
		log.WithError(err).WithField("Room", room).Error("claim failed")
		http.Error(w, "claim failed", http.StatusInternalServerError)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).WithField("Room", room).Warn("upgrade failed")
		s.release(room, id, token)
		return
	}

	p := &peer{
		room:    room,
		id:      id,
		token:   token,
		ws:      ws,
		send:    make(chan Envelope, sendBuffer),
		limiter: rate.NewLimiter(s.MsgRate, s.MsgBurst),
	}
	logger := log.WithFields(log.Fields{"Room": room, "SnakeID": id})

	if err := s.join(p); err != nil {
		logger.WithError(err).Error("unable to list room")
		ws.Close()
		s.release(room, id, token)
		return
	}
	relayConnections.Inc()
	logger.Info("peer connected")

	go s.writePump(p)
	s.readPump(p)

	s.leave(p)
	relayConnections.Dec()
	logger.WithField("Cleanup", p.cleanup).Info("peer disconnected")
}

// Close drops every connection.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, peers := range s.rooms {
		for p := range peers {
			p.ws.Close()
		}
	}
}

// join registers the peer and queues its hello. Both happen under the lock so
// no update reaches the peer ahead of the snakes it is based on.
func (s *Server) join(p *peer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snakes, err := s.Store.ListSnakes(context.Background(), p.room)
	if err != nil {
		return err
	}
	peers, ok := s.rooms[p.room]
	if !ok {
		peers = map[*peer]struct{}{}
		s.rooms[p.room] = peers
	}
	peers[p] = struct{}{}
	p.send <- Envelope{Type: MsgHello, ID: p.id, Token: p.token, Snakes: snakes}
	return nil
}

func (s *Server) leave(p *peer) {
	s.mu.Lock()
	delete(s.rooms[p.room], p)
	if len(s.rooms[p.room]) == 0 {
		delete(s.rooms, p.room)
	}
	close(p.send)
	s.mu.Unlock()

	if p.cleanup {
		if err := s.Store.RemoveSnake(context.Background(), p.room, p.id); err != nil {
			log.WithError(err).WithFields(log.Fields{"Room": p.room, "SnakeID": p.id}).Error("cleanup failed")
		}
		s.broadcast(p, Envelope{Type: MsgRemoved, ID: p.id})
	}
	s.release(p.room, p.id, p.token)
}

func (s *Server) release(room, id, token string) {
	if err := s.Store.Release(context.Background(), room, id, token); err != nil {
		log.WithError(err).WithFields(log.Fields{"Room": room, "SnakeID": id}).Warn("release failed")
	}
}

// broadcast queues e for every other peer of the room. A peer whose queue is
// full is disconnected.
func (s *Server) broadcast(from *peer, e Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for p := range s.rooms[from.room] {
		if p == from {
			continue
		}
		select {
		case p.send <- e:
		default:
			log.WithFields(log.Fields{"Room": p.room, "SnakeID": p.id}).Warn("peer too slow, dropping")
			p.ws.Close()
		}
	}
}

func (s *Server) reply(p *peer, e Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case p.send <- e:
	default:
	}
}

func (s *Server) readPump(p *peer) {
	logger := log.WithFields(log.Fields{"Room": p.room, "SnakeID": p.id})
	deadline := 2 * s.PingInterval

	p.ws.SetReadLimit(maxMessageSize)
	p.ws.SetReadDeadline(time.Now().Add(deadline))
	p.ws.SetPongHandler(func(string) error {
		if _, err := s.Store.Claim(context.Background(), p.room, p.id, p.token); err != nil {
			logger.WithError(err).Warn("lost claim")
			return err
		}
		return p.ws.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		var e Envelope
		if err := p.ws.ReadJSON(&e); err != nil {
			if _, ok := err.(*websocket.CloseError); !ok {
				logger.WithError(err).Debug("read failed")
			}
			return
		}
		if !p.limiter.Allow() {
			relayMessages.WithLabelValues("dropped").Inc()
			continue
		}
		relayMessages.WithLabelValues(e.Type).Inc()

		switch e.Type {
		case MsgPublish:
			if e.State == nil || e.State.ID != p.id {
				s.reply(p, Envelope{Type: MsgError, Reason: "can only publish own snake " + p.id})
				continue
			}
			// Stored states are replayed to every later peer, so nothing
			// malformed gets in.
			if err := e.State.Validate(s.Grid); err != nil {
				relayMessages.WithLabelValues("malformed").Inc()
				logger.WithError(err).Warn("rejecting malformed snake")
				s.reply(p, Envelope{Type: MsgError, Reason: err.Error()})
				continue
			}
			if err := s.Store.PutSnake(context.Background(), p.room, *e.State); err != nil {
				logger.WithError(err).Error("unable to store snake")
				s.reply(p, Envelope{Type: MsgError, Reason: "store failed"})
				continue
			}
			s.broadcast(p, Envelope{Type: MsgUpdate, ID: p.id, State: e.State})
		case MsgCleanup:
			if e.ID != p.id {
				s.reply(p, Envelope{Type: MsgError, Reason: "can only clean up own snake " + p.id})
				continue
			}
			p.cleanup = true
		default:
			logger.WithField("Type", e.Type).Warn("unknown message")
		}
	}
}

func (s *Server) writePump(p *peer) {
	ticker := time.NewTicker(s.PingInterval)
	defer func() {
		ticker.Stop()
		p.ws.Close()
	}()

	for {
		select {
		case e, ok := <-p.send:
			p.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				p.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := p.ws.WriteJSON(e); err != nil {
				return
			}
		case <-ticker.C:
			p.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Package api serves the HTTP side of the relay: the room websocket plus
// read-only views of the room state.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gridsnake/engine/controller"
	"github.com/gridsnake/engine/rules"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
)

// Server is the HTTP server in front of a store and its relay.
type Server struct {
	hs    *http.Server
	store controller.Store
	relay *controller.Server
}

// New builds the server. It does not listen until WaitForExit.
func New(addr string, store controller.Store, relay *controller.Server) *Server {
	s := &Server{store: store, relay: relay}

	router := httprouter.New()
	router.GET("/health", s.health)
	router.GET("/rooms/:room/snakes", s.listSnakes)
	router.GET("/rooms/:room/snakes/:id", s.getSnake)
	router.GET("/rooms/:room/socket", s.socket)

	s.hs = &http.Server{
		Addr:    addr,
		Handler: cors.Default().Handler(router),
	}
	return s
}

// Handler is the routed handler, for mounting elsewhere.
func (s *Server) Handler() http.Handler { return s.hs.Handler }

// WaitForExit listens until the server is shut down.
func (s *Server) WaitForExit() {
	log.Infof("gridsnake relay listening on %s", s.hs.Addr)
	err := s.hs.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Errorf("Error while listening: %v", err)
	}
}

// Shutdown stops accepting requests and drops the relay's connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.relay.Close()
	return s.hs.Shutdown(ctx)
}

type snakesResponse struct {
	Room   string             `json:"room"`
	Snakes []rules.SnakeState `json:"snakes"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Write([]byte("ok"))
}

func (s *Server) listSnakes(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	room := ps.ByName("room")
	snakes, err := s.store.ListSnakes(r.Context(), room)
	if err != nil {
		log.WithError(err).WithField("Room", room).Error("unable to list snakes")
		http.Error(w, "unable to list snakes", http.StatusInternalServerError)
		return
	}
	writeJSON(w, snakesResponse{Room: room, Snakes: snakes})
}

func (s *Server) getSnake(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	room, id := ps.ByName("room"), ps.ByName("id")
	snake, err := s.store.GetSnake(r.Context(), room, id)
	if err == controller.ErrNotFound {
		http.Error(w, "snake not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.WithError(err).WithFields(log.Fields{"Room": room, "SnakeID": id}).Error("unable to get snake")
		http.Error(w, "unable to get snake", http.StatusInternalServerError)
		return
	}
	writeJSON(w, snake)
}

func (s *Server) socket(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.relay.Handle(w, r, ps.ByName("room"))
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("unable to write response")
	}
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/tschausepp/internal/models"
)

const (
	readLimit    = 16 << 10
	writeTimeout = 5 * time.Second
	flushTimeout = time.Second
)

// Lobby is what the transport needs from the room registry.
type Lobby interface {
	Connect(conn uuid.UUID, token string) error
	Disconnect(conn uuid.UUID)
	Handle(ctx context.Context, conn uuid.UUID, msg models.ClientMessage)
	Stats() map[string]int
}

// Server serves the WebSocket endpoint and health checks.
type Server struct {
	lobby   Lobby
	hub     *Hub
	origins []string
	log     logrus.FieldLogger
}

// NewServer wires a lobby to a hub. origins are accepted in addition to the
// request's own host.
func NewServer(lobby Lobby, hub *Hub, origins []string, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{lobby: lobby, hub: hub, origins: origins, log: log}
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.ServeWS)
	mux.HandleFunc("GET /healthz", s.Healthz)
	return mux
}

// Healthz reports room and connection counts.
func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	stats := s.lobby.Stats()
	body := map[string]any{
		"status":      "ok",
		"rooms":       stats["rooms"],
		"seated":      stats["connections"],
		"connections": s.hub.Len(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.WithError(err).Warn("writing health response")
	}
}

// ServeWS upgrades the request and runs the connection until either side
// closes it. An optional reconnect_token query parameter reclaims a held seat.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.origins})
	if err != nil {
		s.log.WithError(err).Warn("websocket accept")
		return
	}
	c.SetReadLimit(readLimit)

	id := uuid.New()
	log := s.log.WithField("conn", id)
	cl := s.hub.register(id)
	log.Debug("connection opened")

	ctx, cancel := context.WithCancel(r.Context())
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		s.writePump(ctx, c, cl)
	}()

	// Connect errors are already answered with a plain greeting.
	_ = s.lobby.Connect(id, r.URL.Query().Get("reconnect_token"))

	err = s.readLoop(ctx, c, id)
	s.lobby.Disconnect(id)
	cancel()
	<-pumpDone
	s.hub.unregister(id)
	s.flush(c, cl)

	switch status := websocket.CloseStatus(err); {
	case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
		log.Debug("connection closed by client")
	case errors.Is(err, context.Canceled):
		log.Debug("connection closed by server")
	default:
		log.WithError(err).Info("connection lost")
	}
	c.Close(websocket.StatusNormalClosure, "")
}

func (s *Server) readLoop(ctx context.Context, c *websocket.Conn, id uuid.UUID) error {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			continue
		}
		var msg models.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			s.log.WithError(err).WithField("conn", id).Debug("ignoring malformed frame")
			continue
		}
		s.lobby.Handle(ctx, id, msg)
	}
}

func (s *Server) writePump(ctx context.Context, c *websocket.Conn, cl *client) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-cl.send:
			if err := s.write(ctx, c, msg); err != nil {
				s.log.WithError(err).WithField("conn", cl.id).Debug("write failed")
				return
			}
		}
	}
}

func (s *Server) write(ctx context.Context, c *websocket.Conn, msg models.ServerMessage) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, c, msg)
}

// flush writes whatever is still queued, e.g. the reconnect token issued on
// disconnect. Failures are expected when the peer is already gone.
func (s *Server) flush(c *websocket.Conn, cl *client) {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	for {
		select {
		case msg := <-cl.send:
			if err := wsjson.Write(ctx, c, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

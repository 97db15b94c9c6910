// Package simfeed is a synthetic scoreboard feed for development and load
// testing. It serves the same WebSocket protocol a real scoreboard does:
// clients send {"action":"Register","paths":[...]} and receive
// {"state":{key:value,...}} deltas for every key matching a registered
// pattern, starting with a full replay of the matching snapshot.
package simfeed

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rcrderby/crg-overlays/internal/adapters/feed"
	"github.com/rcrderby/crg-overlays/pkg/logger"
)

// Server configuration constants.
const (
	defaultWSPath    = "/WS/"
	writeTimeout     = 10 * time.Second
	clientSendBuffer = 256
)

// registerMessage mirrors the inbound registration action.
type registerMessage struct {
	Action string   `json:"action"`
	Paths  []string `json:"paths"`
}

// stateMessage is the outbound delta payload.
type stateMessage struct {
	State map[string]any `json:"state"`
}

// client is one connected overlay.
type client struct {
	id   string
	conn *websocket.Conn
	send chan map[string]any

	mu  sync.Mutex
	res []*regexp.Regexp
}

func (c *client) matches(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, re := range c.res {
		if re.MatchString(key) {
			return true
		}
	}
	return false
}

// Server holds the simulated scoreboard state and its connected clients.
type Server struct {
	log      logger.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	snapshot map[string]any
	clients  map[string]*client
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// NewServer creates an empty simulated scoreboard.
func NewServer(opts ...Option) *Server {
	s := &Server{
		snapshot: make(map[string]any),
		clients:  make(map[string]*client),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get().Named("simfeed")
	}
	return s
}

// Register attaches the WebSocket endpoint to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc(defaultWSPath, s.handleWS)
}

// Apply merges a delta batch into the snapshot and pushes each changed key
// to every client whose registration matches it. Nil values retract keys.
func (s *Server) Apply(batch map[string]any) {
	s.mu.Lock()
	for key, value := range batch {
		if value == nil {
			delete(s.snapshot, key)
		} else {
			s.snapshot[key] = value
		}
	}
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		out := make(map[string]any)
		for key, value := range batch {
			if c.matches(key) {
				out[key] = value
			}
		}
		if len(out) == 0 {
			continue
		}
		select {
		case c.send <- out:
		default:
			s.log.Warn(context.Background(), "client send buffer full; dropping batch",
				logger.String("client", c.id))
		}
	}
}

// SnapshotLen returns the number of keys currently held.
func (s *Server) SnapshotLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snapshot)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan map[string]any, clientSendBuffer),
	}

	s.mu.Lock()
	s.clients[c.id] = c
	n := len(s.clients)
	s.mu.Unlock()
	s.log.Info(r.Context(), "overlay connected",
		logger.String("client", c.id), logger.Int("clients", n))

	go s.writeLoop(c)
	s.readLoop(r.Context(), c)

	s.mu.Lock()
	delete(s.clients, c.id)
	n = len(s.clients)
	s.mu.Unlock()
	close(c.send)
	_ = conn.Close()
	s.log.Info(r.Context(), "overlay disconnected",
		logger.String("client", c.id), logger.Int("clients", n))
}

func (s *Server) readLoop(ctx context.Context, c *client) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg registerMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Action != "Register" {
			continue
		}

		res := make([]*regexp.Regexp, 0, len(msg.Paths))
		for _, p := range msg.Paths {
			res = append(res, feed.PatternRegexp(p))
		}
		c.mu.Lock()
		c.res = res
		c.mu.Unlock()
		s.log.Debug(ctx, "registration received",
			logger.String("client", c.id), logger.Int("patterns", len(msg.Paths)))

		// A registration replays the matching snapshot, same as a real
		// scoreboard.
		s.mu.Lock()
		replay := make(map[string]any)
		for key, value := range s.snapshot {
			if c.matches(key) {
				replay[key] = value
			}
		}
		s.mu.Unlock()
		if len(replay) > 0 {
			select {
			case c.send <- replay:
			default:
			}
		}
	}
}

func (s *Server) writeLoop(c *client) {
	for batch := range c.send {
		data, err := json.Marshal(stateMessage{State: batch})
		if err != nil {
			continue
		}
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

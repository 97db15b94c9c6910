package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rcrderby/crg-overlays/internal/adapters/mq/queue"
	"github.com/rcrderby/crg-overlays/internal/adapters/state"
	"github.com/rcrderby/crg-overlays/pkg/logger"
	"github.com/rcrderby/crg-overlays/pkg/metrics"
)

// Default client configuration constants.
const (
	defaultRetryInterval    = time.Second
	defaultHandshakeTimeout = 5 * time.Second
	defaultWriteTimeout     = 10 * time.Second
	pingInterval            = 30 * time.Second
)

// registerAction is the outbound registration message the scoreboard expects.
type registerAction struct {
	Action string   `json:"action"`
	Paths  []string `json:"paths"`
}

// stateMessage is the inbound delta payload. Values arrive as JSON scalars;
// null retracts a key.
type stateMessage struct {
	State map[string]any `json:"state"`
}

// WSClient implements Client over the scoreboard's WebSocket endpoint.
type WSClient struct {
	url              string
	retryInterval    time.Duration
	handshakeTimeout time.Duration
	log              logger.Logger

	store *state.Store
	q     *queue.InMemoryQueue

	mu           sync.Mutex
	regs         []*registration
	autoRegister bool
	conn         *websocket.Conn
	connected    bool
	onConnState  func(up bool)

	started bool
	stopCh  chan struct{}
	done    chan struct{}
}

// Option applies a configuration option to the WSClient.
type Option func(*WSClient)

// WithRetryInterval sets the reconnect poll interval.
func WithRetryInterval(d time.Duration) Option {
	return func(c *WSClient) {
		if d > 0 {
			c.retryInterval = d
		}
	}
}

// WithHandshakeTimeout bounds a single connect attempt.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *WSClient) {
		if d > 0 {
			c.handshakeTimeout = d
		}
	}
}

// WithQueueCapacity sets the delta queue capacity.
func WithQueueCapacity(n int) Option {
	return func(c *WSClient) {
		if n > 0 {
			c.q = queue.NewInMemoryQueue(queue.WithCapacity(n))
		}
	}
}

// WithConnStateListener registers a callback invoked on every connection
// state change. The projector uses it to enter hydration mode.
func WithConnStateListener(fn func(up bool)) Option {
	return func(c *WSClient) { c.onConnState = fn }
}

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(c *WSClient) {
		if log != nil {
			c.log = log
		}
	}
}

// NewWSClient creates a client for the given scoreboard WebSocket URL.
func NewWSClient(url string, opts ...Option) *WSClient {
	c := &WSClient{
		url:              url,
		retryInterval:    defaultRetryInterval,
		handshakeTimeout: defaultHandshakeTimeout,
		store:            state.NewStore(),
		q:                queue.NewInMemoryQueue(),
		stopCh:           make(chan struct{}),
		done:             make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Get().Named("feed")
	}
	return c
}

// Start launches the connection retry loop and the dispatch loop.
func (c *WSClient) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	go c.dispatchLoop(ctx)
	go c.manageLoop(ctx)
}

// Stop closes the connection and halts both loops.
func (c *WSClient) Stop() {
	c.mu.Lock()
	started := c.started
	c.started = false
	conn := c.conn
	c.mu.Unlock()

	if !started {
		return
	}
	select {
	case <-c.stopCh:
	default:
		close(c.stopCh)
	}
	if conn != nil {
		_ = conn.Close()
	}
	_ = c.q.Close()
	<-c.done
}

// AutoRegister makes the client re-send registrations on every (re)connect.
func (c *WSClient) AutoRegister() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoRegister = true
}

// Register subscribes handler to all keys matching the patterns.
func (c *WSClient) Register(patterns []string, h Handler) string {
	reg := &registration{
		id:       uuid.NewString(),
		patterns: patterns,
		handler:  h,
	}
	for _, p := range patterns {
		reg.res = append(reg.res, PatternRegexp(p))
	}

	c.mu.Lock()
	c.regs = append(c.regs, reg)
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		c.send(conn, registerAction{Action: "Register", Paths: patterns})
	}
	return reg.id
}

// Unregister drops a registration by id.
func (c *WSClient) Unregister(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, reg := range c.regs {
		if reg.id == id {
			c.regs = append(c.regs[:i], c.regs[i+1:]...)
			return
		}
	}
}

// State returns the raw snapshot mirror.
func (c *WSClient) State() state.Snapshot {
	return c.store
}

// manageLoop dials the scoreboard until it is reachable, reads until the
// connection drops, and starts over. Absence of the scoreboard is a normal
// retry state.
func (c *WSClient) manageLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		default:
		}

		dialer := websocket.Dialer{HandshakeTimeout: c.handshakeTimeout}
		conn, _, err := dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			metrics.RecordFeedReconnect()
			c.log.Debug(ctx, "scoreboard not reachable; retrying",
				logger.String("url", c.url),
				logger.Error(err),
			)
			select {
			case <-time.After(c.retryInterval):
				continue
			case <-ctx.Done():
				return
			case <-c.stopCh:
				return
			}
		}

		c.log.Info(ctx, "connected to scoreboard feed", logger.String("url", c.url))
		c.setConn(conn, true)
		c.resendRegistrations(conn)

		pingStop := make(chan struct{})
		go c.pingLoop(conn, pingStop)
		c.readLoop(ctx, conn)
		close(pingStop)

		c.setConn(nil, false)
		_ = conn.Close()
		c.log.Warn(ctx, "scoreboard feed disconnected; will retry")
	}
}

func (c *WSClient) setConn(conn *websocket.Conn, up bool) {
	c.mu.Lock()
	c.conn = conn
	c.connected = up
	listener := c.onConnState
	c.mu.Unlock()

	metrics.UpdateFeedConnected(up)
	if listener != nil {
		listener(up)
	}
}

func (c *WSClient) resendRegistrations(conn *websocket.Conn) {
	c.mu.Lock()
	auto := c.autoRegister
	var paths []string
	for _, reg := range c.regs {
		paths = append(paths, reg.patterns...)
	}
	c.mu.Unlock()

	if !auto || len(paths) == 0 {
		return
	}
	c.send(conn, registerAction{Action: "Register", Paths: paths})
}

func (c *WSClient) send(conn *websocket.Conn, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.log.Error(context.Background(), "marshal outbound message", logger.Error(err))
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(defaultWriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.log.Warn(context.Background(), "write to scoreboard failed", logger.Error(err))
	}
}

func (c *WSClient) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(defaultWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg stateMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn(ctx, "undecodable feed message", logger.Error(err))
			continue
		}
		if msg.State == nil {
			continue
		}
		metrics.RecordFeedMessage()

		for key, raw := range msg.State {
			if !c.q.Enqueue(ctx, queue.Delta{Key: key, Value: stringify(raw)}) {
				c.log.Warn(ctx, "delta queue full; dropping delta", logger.String("key", key))
			}
		}
	}
}

// dispatchLoop is the single writer of the snapshot and the only goroutine
// that invokes handlers, which preserves feed delivery order end to end.
func (c *WSClient) dispatchLoop(ctx context.Context) {
	defer close(c.done)

	for d := range c.q.Dequeue(ctx) {
		if !c.store.Set(d.Key, d.Value) {
			metrics.RecordDeltaNoop()
			continue
		}
		metrics.UpdateRawStateSize(c.store.Len())

		c.mu.Lock()
		regs := make([]*registration, len(c.regs))
		copy(regs, c.regs)
		c.mu.Unlock()

		for _, reg := range regs {
			if reg.matches(d.Key) {
				reg.handler(d.Key, d.Value)
			}
		}
	}
}

// stringify folds JSON scalar values to the feed's string domain. Null
// becomes the empty string, which retracts the key.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}

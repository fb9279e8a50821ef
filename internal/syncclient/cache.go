// Package syncclient is the remote task provider: a local cache of the
// sync server's task list that implements task.Storage over the
// WebSocket protocol.
//
// The protocol has no guaranteed request/response pairing, so reads
// that miss the cache send a request and then give the server a short,
// fixed window to refill the cache.
package syncclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/opentask/taskin/internal/syncproto"
	"github.com/opentask/taskin/internal/task"
)

// timeNow is a package-level var to allow test injection.
var timeNow = time.Now

var (
	// ErrNotConnected is returned by writes while no connection is open.
	ErrNotConnected = errors.New("not connected to server")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("cache is closed")
)

const writeWait = 10 * time.Second

// Config configures a Cache. Zero durations take their defaults.
type Config struct {
	URL                  string
	AutoReconnect        bool
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int // 0 means unlimited
	HeartbeatInterval    time.Duration
	HeartbeatTimeout     time.Duration
	ResponseDelay        time.Duration // FindTask wait after a cache miss
	RequestTimeout       time.Duration // GetAllTasks wait for the list
	PollInterval         time.Duration
	Logger               *log.Logger
}

// DefaultConfig returns the standard timings for url.
func DefaultConfig(url string) Config {
	return Config{
		URL:               url,
		AutoReconnect:     true,
		ReconnectDelay:    5 * time.Second,
		HeartbeatInterval: 10 * time.Second,
		HeartbeatTimeout:  30 * time.Second,
		ResponseDelay:     500 * time.Millisecond,
		RequestTimeout:    5 * time.Second,
		PollInterval:      100 * time.Millisecond,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig(c.URL)
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = def.ReconnectDelay
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = def.HeartbeatInterval
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = def.HeartbeatTimeout
	}
	if c.ResponseDelay <= 0 {
		c.ResponseDelay = def.ResponseDelay
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
}

// Cache mirrors the server's task list.
type Cache struct {
	cfg    Config
	logger *log.Logger
	dialer *websocket.Dialer

	mu         sync.Mutex
	tasks      []task.Task
	generation int // bumped on every full list
	conn       *websocket.Conn
	stopBeat   chan struct{}
	closed     bool
	attempts   int
	lastErr    string
	lastPong   time.Time
	retryTimer *time.Timer

	writeMu sync.Mutex
}

// New creates a disconnected cache.
func New(cfg Config) *Cache {
	cfg.applyDefaults()
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{Prefix: "syncclient"})
	}
	return &Cache{
		cfg:    cfg,
		logger: logger,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// Connect dials the server. When the first attempt fails and
// AutoReconnect is set, retries continue in the background.
func (c *Cache) Connect(ctx context.Context) error {
	err := c.dial(ctx)
	if err != nil {
		c.mu.Lock()
		c.lastErr = err.Error()
		if !c.closed && c.cfg.AutoReconnect {
			c.scheduleReconnectLocked()
		}
		c.mu.Unlock()
	}
	return err
}

func (c *Cache) dial(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.mu.Unlock()

	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", c.cfg.URL, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return ErrClosed
	}
	c.conn = conn
	c.attempts = 0
	c.lastErr = ""
	c.lastPong = timeNow()
	stop := make(chan struct{})
	c.stopBeat = stop
	c.mu.Unlock()

	c.logger.Info("connected", "url", c.cfg.URL)
	go c.readLoop(conn)
	go c.heartbeat(conn, stop)

	if err := c.send(syncproto.TypeList, nil); err != nil {
		c.logger.Debug("initial list request failed", "err", err)
	}
	return nil
}

// Close disconnects and stops reconnecting.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.retryTimer != nil {
		c.retryTimer.Stop()
	}
	conn := c.detachLocked()
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	c.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), timeNow().Add(writeWait))
	c.writeMu.Unlock()
	return conn.Close()
}

// detachLocked forgets the current connection and stops its heartbeat.
func (c *Cache) detachLocked() *websocket.Conn {
	conn := c.conn
	c.conn = nil
	if c.stopBeat != nil {
		close(c.stopBeat)
		c.stopBeat = nil
	}
	return conn
}

// Connected reports whether a connection is open.
func (c *Cache) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// LastError returns the most recent connection or server error text.
func (c *Cache) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// ReconnectAttempts returns the attempts made since the last success.
func (c *Cache) ReconnectAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

func (c *Cache) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.disconnected(conn, err)
			return
		}
		msg, err := syncproto.Parse(data)
		if err != nil {
			c.logger.Debug("ignoring malformed message", "err", err)
			continue
		}
		c.handle(msg)
	}
}

// disconnected runs once per lost connection and schedules a reconnect.
func (c *Cache) disconnected(conn *websocket.Conn, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != conn {
		return
	}
	c.detachLocked()
	conn.Close()
	c.logger.Info("disconnected", "err", cause)
	if !c.closed && c.cfg.AutoReconnect {
		c.scheduleReconnectLocked()
	}
}

func (c *Cache) scheduleReconnectLocked() {
	if limit := c.cfg.MaxReconnectAttempts; limit > 0 && c.attempts >= limit {
		c.lastErr = "max reconnection attempts reached"
		c.logger.Warn(c.lastErr, "attempts", c.attempts)
		return
	}
	c.attempts++
	c.logger.Debug("reconnecting", "in", c.cfg.ReconnectDelay, "attempt", c.attempts)
	c.retryTimer = time.AfterFunc(c.cfg.ReconnectDelay, c.reconnect)
}

func (c *Cache) reconnect() {
	ctx, cancel := context.WithTimeout(context.Background(), c.dialer.HandshakeTimeout)
	defer cancel()
	if err := c.dial(ctx); err != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return
		}
		c.lastErr = err.Error()
		c.scheduleReconnectLocked()
	}
}

// heartbeat sends an application ping every interval and drops the
// connection when no pong arrived within the timeout.
func (c *Cache) heartbeat(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		c.mu.Lock()
		silent := timeNow().Sub(c.lastPong)
		c.mu.Unlock()
		if silent > c.cfg.HeartbeatTimeout {
			c.logger.Warn("heartbeat timeout", "silent", silent)
			c.disconnected(conn, errors.New("heartbeat timeout"))
			return
		}
		if err := c.send(syncproto.TypePing, nil); err != nil {
			c.logger.Debug("ping failed", "err", err)
		}
	}
}

func (c *Cache) send(t syncproto.Type, payload any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	msg, err := syncproto.New(t, payload, syncproto.NewRequestID())
	if err != nil {
		return err
	}
	data, err := msg.Encode(timeNow().UnixMilli())
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(timeNow().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("sending %s: %w", t, err)
	}
	return nil
}

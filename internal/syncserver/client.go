package syncserver

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// sendBuffer is the outbound queue length of one client. A client
	// whose queue is full is dropped.
	sendBuffer = 64

	writeWait      = 10 * time.Second
	maxMessageSize = 1 << 20
)

// client is one registered connection. Only writePump writes data frames
// to conn, which keeps per-client delivery in queue order.
type client struct {
	id          string
	conn        *websocket.Conn
	send        chan []byte
	connectedAt time.Time

	lastActivity atomic.Int64 // unix nanoseconds
	alive        atomic.Bool

	mu        sync.Mutex
	closed    bool
	closeCode int
	closeText string
}

func newClient(conn *websocket.Conn) *client {
	now := timeNow()
	c := &client{
		id:          uuid.NewString(),
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		connectedAt: now,
		closeCode:   websocket.CloseNormalClosure,
	}
	c.lastActivity.Store(now.UnixNano())
	c.alive.Store(true)
	return c
}

func (c *client) touch() {
	c.lastActivity.Store(timeNow().UnixNano())
}

// enqueue queues a frame without blocking. It reports false when the
// client is closed or its queue is full.
func (c *client) enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// close ends the queue; writePump flushes what is queued, sends a close
// frame with code and text, and closes the connection.
func (c *client) close(code int, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.closeCode, c.closeText = code, text
	close(c.send)
}

// terminate drops the connection without a closing handshake.
func (c *client) terminate() {
	c.close(websocket.CloseAbnormalClosure, "")
	_ = c.conn.Close()
}

func (c *client) ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, timeNow().Add(writeWait))
}

func (c *client) writePump() {
	defer c.conn.Close()
	for frame := range c.send {
		_ = c.conn.SetWriteDeadline(timeNow().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
	}
	if c.closeCode != websocket.CloseAbnormalClosure {
		msg := websocket.FormatCloseMessage(c.closeCode, c.closeText)
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, timeNow().Add(writeWait))
	}
}

// serve registers conn, sends it the current task list, then reads its
// messages in arrival order until the connection ends.
func (s *Server) serve(ctx context.Context, conn *websocket.Conn) {
	c := newClient(conn)

	s.mu.Lock()
	if !s.running || len(s.clients) >= s.opts.MaxClients {
		running := s.running
		s.mu.Unlock()
		code, text := websocket.ClosePolicyViolation, "Server is full"
		if !running {
			code, text = websocket.CloseGoingAway, "Server shutting down"
		}
		s.logger.Warn("rejecting connection", "remote", conn.RemoteAddr().String(), "reason", text)
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), timeNow().Add(writeWait))
		_ = conn.Close()
		return
	}
	s.clients[c.id] = c
	n := len(s.clients)
	s.conns.Add(2)
	s.mu.Unlock()

	s.logger.Info("client connected", "id", c.id, "clients", n)

	go func() {
		defer s.conns.Done()
		c.writePump()
	}()
	defer s.conns.Done()
	defer s.remove(c)

	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		c.alive.Store(true)
		c.touch()
		return nil
	})

	s.sendInitial(ctx, c)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("client read failed", "id", c.id, "err", err)
			}
			return
		}
		c.touch()
		s.handleMessage(ctx, c, data)
	}
}

// remove unregisters c and closes it.
func (s *Server) remove(c *client) {
	s.mu.Lock()
	_, registered := s.clients[c.id]
	if registered {
		delete(s.clients, c.id)
	}
	n := len(s.clients)
	s.mu.Unlock()

	c.close(websocket.CloseNormalClosure, "")
	if registered {
		s.logger.Info("client disconnected", "id", c.id, "clients", n)
	}
}

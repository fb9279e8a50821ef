// Package syncserver pushes task changes to connected WebSocket clients.
//
// Each Server owns its client registry; nothing is process-global, so
// several servers can run side by side. Reads and writes go through an
// injected task.Storage and transitions through a lifecycle.Manager.
package syncserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/opentask/taskin/internal/lifecycle"
	"github.com/opentask/taskin/internal/task"
)

// timeNow is a package-level var to allow test injection.
var timeNow = time.Now

// ErrAlreadyRunning is returned by Start on a running server.
var ErrAlreadyRunning = errors.New("server is already running")

// Options configures a Server.
type Options struct {
	Host              string
	Port              int // 0 picks a free port
	MaxClients        int
	HeartbeatInterval time.Duration
	Logger            *log.Logger
}

// DefaultOptions returns the standard listen address and limits.
func DefaultOptions() Options {
	return Options{
		Host:              "localhost",
		Port:              3001,
		MaxClients:        100,
		HeartbeatInterval: 30 * time.Second,
	}
}

// Status is the payload of GET /status.
type Status struct {
	Running bool    `json:"running"`
	Clients int     `json:"clients"`
	Host    string  `json:"host"`
	Port    int     `json:"port"`
	Uptime  float64 `json:"uptime"` // seconds
}

// Server is the synchronization server.
type Server struct {
	store    task.Storage
	manager  *lifecycle.Manager
	opts     Options
	logger   *log.Logger
	upgrader websocket.Upgrader
	router   *gin.Engine

	mu        sync.Mutex
	clients   map[string]*client
	running   bool
	startedAt time.Time
	listener  net.Listener
	httpSrv   *http.Server
	stopBeat  chan struct{}
	beatDone  chan struct{}
	serveDone chan struct{}

	conns sync.WaitGroup
}

// New creates a server. Zero-valued options take their defaults.
func New(store task.Storage, manager *lifecycle.Manager, opts Options) *Server {
	def := DefaultOptions()
	if opts.Host == "" {
		opts.Host = def.Host
	}
	if opts.MaxClients <= 0 {
		opts.MaxClients = def.MaxClients
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = def.HeartbeatInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{Prefix: "sync"})
	}

	s := &Server{
		store:   store,
		manager: manager,
		opts:    opts,
		logger:  logger,
		clients: make(map[string]*client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/", s.handleUpgrade)
	router.GET("/ws", s.handleUpgrade)
	router.GET("/status", s.handleStatus)
	s.router = router
	return s
}

// Handler exposes the HTTP routes, for mounting under another server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and begins the heartbeat. It
// returns once the listener is bound. ctx is the base context of every
// request handled by the server.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}

	addr := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	s.listener = ln
	s.httpSrv = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.running = true
	s.startedAt = timeNow()
	s.stopBeat = make(chan struct{})
	s.beatDone = make(chan struct{})
	s.serveDone = make(chan struct{})

	go func(srv *http.Server, done chan struct{}) {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("serve failed", "err", err)
		}
	}(s.httpSrv, s.serveDone)
	go s.heartbeat(s.opts.HeartbeatInterval, s.stopBeat, s.beatDone)

	s.logger.Info("sync server started", "addr", "ws://"+ln.Addr().String())
	return nil
}

// Stop cancels the heartbeat, closes every client and the listener. It
// returns once the port is released and the client goroutines are done,
// or when ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	clients := make([]*client, 0, len(s.clients))
	for id, c := range s.clients {
		clients = append(clients, c)
		delete(s.clients, id)
	}
	srv, stop, beatDone, serveDone := s.httpSrv, s.stopBeat, s.beatDone, s.serveDone
	s.mu.Unlock()

	close(stop)
	<-beatDone

	for _, c := range clients {
		c.close(websocket.CloseGoingAway, "Server shutting down")
	}

	err := srv.Shutdown(ctx)
	select {
	case <-serveDone:
	case <-ctx.Done():
		return ctx.Err()
	}

	waited := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.logger.Info("sync server stopped")
	return err
}

// Addr returns the bound address, or "" when not running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return ""
	}
	return s.listener.Addr().String()
}

// Status reports whether the server runs and how many clients it holds.
func (s *Server) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Running: s.running,
		Clients: len(s.clients),
		Host:    s.opts.Host,
		Port:    s.opts.Port,
	}
	if s.running {
		if tcp, ok := s.listener.Addr().(*net.TCPAddr); ok {
			st.Port = tcp.Port
		}
		st.Uptime = timeNow().Sub(s.startedAt).Seconds()
	}
	return st
}

// ClientCount returns the number of registered clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.Status())
}

func (s *Server) handleUpgrade(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Debug("upgrade failed", "remote", c.Request.RemoteAddr, "err", err)
		return
	}
	s.serve(c.Request.Context(), conn)
}

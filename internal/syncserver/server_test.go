package syncserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/opentask/taskin/internal/lifecycle"
	"github.com/opentask/taskin/internal/syncproto"
	"github.com/opentask/taskin/internal/task"
)

// --- Test helpers ---

type memStore struct {
	mu     sync.Mutex
	tasks  []task.Task
	writes int
}

func newMemStore() *memStore {
	return &memStore{tasks: []task.Task{
		{ID: "001", Title: "Setup project", Status: task.StatusPending, Type: task.TypeFeat},
		{ID: "002", Title: "Write docs", Status: task.StatusDone, Type: task.TypeDocs},
	}}
}

func (s *memStore) FindTask(_ context.Context, id string) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if task.SameID(t.ID, id) {
			return t.Clone(), nil
		}
	}
	return nil, task.NotFound(id)
}

func (s *memStore) GetAllTasks(context.Context) ([]task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]task.Task(nil), s.tasks...), nil
}

func (s *memStore) UpdateTask(_ context.Context, t *task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		if task.SameID(s.tasks[i].ID, t.ID) {
			s.tasks[i] = *t.Clone()
			s.writes++
			return nil
		}
	}
	return task.NotFound(t.ID)
}

func (s *memStore) status(id string) task.Status {
	t, _ := s.FindTask(context.Background(), id)
	return t.Status
}

func startServer(t *testing.T, store task.Storage, opts Options) *Server {
	t.Helper()
	opts.Host = "127.0.0.1"
	opts.Port = 0
	if opts.HeartbeatInterval == 0 {
		opts.HeartbeatInterval = time.Hour
	}
	s := New(store, lifecycle.NewManager(store), opts)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s
}

type testConn struct {
	conn *websocket.Conn
	msgs chan syncproto.Message
	err  error // read error, valid once msgs is closed
}

func dial(t *testing.T, s *Server) *testConn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+s.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	tc := &testConn{conn: conn, msgs: make(chan syncproto.Message, 32)}
	go func() {
		defer close(tc.msgs)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				tc.err = err
				return
			}
			msg, err := syncproto.Parse(data)
			if err != nil {
				tc.err = err
				return
			}
			tc.msgs <- msg
		}
	}()
	return tc
}

func (tc *testConn) next(t *testing.T, want syncproto.Type) syncproto.Message {
	t.Helper()
	select {
	case msg, ok := <-tc.msgs:
		if !ok {
			t.Fatalf("connection closed while waiting for %s: %v", want, tc.err)
		}
		if msg.Type != want {
			t.Fatalf("got %s (%s), want %s", msg.Type, msg.Payload, want)
		}
		return msg
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for %s", want)
	}
	return syncproto.Message{}
}

func (tc *testConn) send(t *testing.T, typ syncproto.Type, payload any) {
	t.Helper()
	msg, err := syncproto.New(typ, payload, "req-"+string(typ))
	if err != nil {
		t.Fatal(err)
	}
	data, _ := msg.Encode(0)
	if err := tc.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// closed waits for the read loop to end and returns its error.
func (tc *testConn) closed(t *testing.T) error {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case _, ok := <-tc.msgs:
			if !ok {
				return tc.err
			}
		case <-deadline:
			t.Fatal("connection still open")
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (s *Server) aliveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.clients {
		if c.alive.Load() {
			n++
		}
	}
	return n
}

// --- Tests ---

func TestConnect_SendsTaskListToNewClientOnly(t *testing.T) {
	s := startServer(t, newMemStore(), Options{})
	a := dial(t, s)
	msg := a.next(t, syncproto.TypeTasks)
	tasks, err := msg.Tasks()
	if err != nil || len(tasks) != 2 {
		t.Fatalf("tasks = %v, %v", tasks, err)
	}
	if msg.Timestamp == 0 {
		t.Error("timestamp not set")
	}

	b := dial(t, s)
	b.next(t, syncproto.TypeTasks)

	// A must not see B's initial list: its next message is the pong.
	a.send(t, syncproto.TypePing, nil)
	a.next(t, syncproto.TypePong)
}

func TestUpdate_BroadcastsToEveryClient(t *testing.T) {
	store := newMemStore()
	s := startServer(t, store, Options{})
	a, b := dial(t, s), dial(t, s)
	a.next(t, syncproto.TypeTasks)
	b.next(t, syncproto.TypeTasks)

	a.send(t, syncproto.TypeUpdate, task.Task{ID: "001", Title: "Setup project", Status: task.StatusBlocked, Type: task.TypeFeat})

	for name, c := range map[string]*testConn{"A": a, "B": b} {
		msg := c.next(t, syncproto.TypeTaskUpdated)
		got, err := msg.Task()
		if err != nil || got.Status != task.StatusBlocked {
			t.Errorf("%s received %+v, %v", name, got, err)
		}
	}
	if store.status("001") != task.StatusBlocked {
		t.Errorf("stored status = %s", store.status("001"))
	}
}

func TestTransitions_BroadcastAndErrors(t *testing.T) {
	store := newMemStore()
	s := startServer(t, store, Options{})
	a, b := dial(t, s), dial(t, s)
	a.next(t, syncproto.TypeTasks)
	b.next(t, syncproto.TypeTasks)

	a.send(t, syncproto.TypeStart, syncproto.TaskRef{TaskID: "001"})
	for _, c := range []*testConn{a, b} {
		got, _ := c.next(t, syncproto.TypeTaskUpdated).Task()
		if got.Status != task.StatusInProgress {
			t.Errorf("status = %s, want in-progress", got.Status)
		}
	}

	// A second start fails and only the sender hears about it.
	a.send(t, syncproto.TypeStart, syncproto.TaskRef{TaskID: "001"})
	msg := a.next(t, syncproto.TypeError)
	var ep syncproto.ErrorPayload
	if err := msg.Decode(&ep); err != nil || !strings.Contains(ep.Message, "already in progress") {
		t.Errorf("error payload = %+v, %v", ep, err)
	}
	if msg.RequestID != "req-start" {
		t.Errorf("RequestID = %q", msg.RequestID)
	}
	b.send(t, syncproto.TypePing, nil)
	b.next(t, syncproto.TypePong)

	a.send(t, syncproto.TypePause, syncproto.TaskRef{TaskID: "001"})
	got, _ := a.next(t, syncproto.TypeTaskUpdated).Task()
	if got.Status != task.StatusPending {
		t.Errorf("after pause status = %s", got.Status)
	}
	b.next(t, syncproto.TypeTaskUpdated)

	a.send(t, syncproto.TypeFinish, syncproto.TaskRef{TaskID: "task-001"})
	got, _ = a.next(t, syncproto.TypeTaskUpdated).Task()
	if got.Status != task.StatusDone {
		t.Errorf("after finish status = %s", got.Status)
	}
	b.next(t, syncproto.TypeTaskUpdated)
	if store.status("001") != task.StatusDone {
		t.Errorf("stored status = %s", store.status("001"))
	}
}

func TestFind(t *testing.T) {
	s := startServer(t, newMemStore(), Options{})
	a := dial(t, s)
	a.next(t, syncproto.TypeTasks)

	a.send(t, syncproto.TypeFind, syncproto.TaskRef{TaskID: "2"})
	got, err := a.next(t, syncproto.TypeTaskFound).Task()
	if err != nil || got.ID != "002" {
		t.Errorf("found = %+v, %v", got, err)
	}

	a.send(t, syncproto.TypeFind, syncproto.TaskRef{TaskID: "999"})
	if msg := a.next(t, syncproto.TypeTaskFound); !msg.IsNull() {
		t.Errorf("payload = %s, want null", msg.Payload)
	}
}

func TestList(t *testing.T) {
	s := startServer(t, newMemStore(), Options{})
	a := dial(t, s)
	a.next(t, syncproto.TypeTasks)
	a.send(t, syncproto.TypeList, nil)
	msg := a.next(t, syncproto.TypeTasks)
	if msg.RequestID != "req-list" {
		t.Errorf("RequestID = %q", msg.RequestID)
	}
}

func TestProtocolErrors_KeepConnectionOpen(t *testing.T) {
	s := startServer(t, newMemStore(), Options{})
	a := dial(t, s)
	a.next(t, syncproto.TypeTasks)

	if err := a.conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatal(err)
	}
	a.next(t, syncproto.TypeError)

	if err := a.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus"}`)); err != nil {
		t.Fatal(err)
	}
	var ep syncproto.ErrorPayload
	if err := a.next(t, syncproto.TypeError).Decode(&ep); err != nil || ep.Message != "unknown message type: bogus" {
		t.Errorf("error payload = %+v, %v", ep, err)
	}

	a.send(t, syncproto.TypeStart, nil)
	a.next(t, syncproto.TypeError)

	a.send(t, syncproto.TypePing, nil)
	a.next(t, syncproto.TypePong)
	if s.ClientCount() != 1 {
		t.Errorf("ClientCount = %d, want 1", s.ClientCount())
	}
}

func TestCapacity_RejectsWithPolicyViolation(t *testing.T) {
	s := startServer(t, newMemStore(), Options{MaxClients: 1})
	a := dial(t, s)
	a.next(t, syncproto.TypeTasks)

	b := dial(t, s)
	err := b.closed(t)
	var ce *websocket.CloseError
	if !errors.As(err, &ce) || ce.Code != websocket.ClosePolicyViolation || ce.Text != "Server is full" {
		t.Errorf("close error = %v, want 1008 Server is full", err)
	}
	if s.ClientCount() != 1 {
		t.Errorf("ClientCount = %d, want 1", s.ClientCount())
	}
}

func TestHeartbeat_RemovesUnresponsiveClient(t *testing.T) {
	s := startServer(t, newMemStore(), Options{})
	a := dial(t, s)
	a.next(t, syncproto.TypeTasks)

	// B never reads, so it never answers pings.
	silent, _, err := websocket.DefaultDialer.Dial("ws://"+s.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer silent.Close()
	waitFor(t, "two clients", func() bool { return s.ClientCount() == 2 })

	for i := 0; i < 3; i++ {
		s.sweep()
		waitFor(t, "A's pong", func() bool { return s.aliveCount() == 1 })
	}
	if s.ClientCount() != 1 {
		t.Fatalf("ClientCount = %d, want 1", s.ClientCount())
	}

	a.send(t, syncproto.TypePing, nil)
	a.next(t, syncproto.TypePong)
}

func TestStatusEndpoint(t *testing.T) {
	s := startServer(t, newMemStore(), Options{})
	a := dial(t, s)
	a.next(t, syncproto.TypeTasks)

	resp, err := http.Get("http://" + s.Addr() + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()
	var st Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	_, port, _ := net.SplitHostPort(s.Addr())
	if !st.Running || st.Clients != 1 || st.Host != "127.0.0.1" || port == "0" || st.Port == 0 {
		t.Errorf("status = %+v", st)
	}
}

func TestStop_ClosesClientsAndReleasesPort(t *testing.T) {
	store := newMemStore()
	s := New(store, lifecycle.NewManager(store), Options{Host: "127.0.0.1", HeartbeatInterval: time.Hour})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start err = %v, want ErrAlreadyRunning", err)
	}
	addr := s.Addr()
	a := dial(t, s)
	a.next(t, syncproto.TypeTasks)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	var ce *websocket.CloseError
	if err := a.closed(t); !errors.As(err, &ce) || ce.Code != websocket.CloseGoingAway {
		t.Errorf("close error = %v, want 1001", err)
	}
	if s.Addr() != "" || s.Status().Running {
		t.Error("server still reports running")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		t.Fatalf("port not released: %v", err)
	}
	ln.Close()

	if err := s.Stop(ctx); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}

func TestRegistryIsPerInstance(t *testing.T) {
	s1 := startServer(t, newMemStore(), Options{})
	s2 := startServer(t, newMemStore(), Options{})
	a := dial(t, s1)
	a.next(t, syncproto.TypeTasks)
	if s1.ClientCount() != 1 || s2.ClientCount() != 0 {
		t.Errorf("counts = %d, %d", s1.ClientCount(), s2.ClientCount())
	}
}

func TestBroadcast_OrderPerClient(t *testing.T) {
	s := startServer(t, newMemStore(), Options{})
	a := dial(t, s)
	a.next(t, syncproto.TypeTasks)

	for i := 0; i < 10; i++ {
		if err := s.Broadcast(syncproto.TypeTaskCreated, task.Task{ID: task.FormatID(i + 10)}); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 10; i++ {
		got, _ := a.next(t, syncproto.TypeTaskCreated).Task()
		if got.ID != task.FormatID(i+10) {
			t.Fatalf("message %d id = %s", i, got.ID)
		}
	}
}

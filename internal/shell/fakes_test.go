package shell

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/gorilla/websocket"

	"dockhand/internal/runtime"
)

// fakeConn is an in-memory Conn. The test feeds client frames through
// send/close and inspects everything the server wrote.
type fakeConn struct {
	in      chan []byte
	closeCh chan struct{}
	once    sync.Once

	autoPong bool // answer pings immediately

	mu          sync.Mutex
	frames      [][]byte
	pongHandler func(string) error
	pings       int
	closeCalls  int
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:      make(chan []byte, 16),
		closeCh: make(chan struct{}),
	}
}

func (c *fakeConn) send(data []byte) { c.in <- data }

func (c *fakeConn) sendJSON(t *testing.T, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal client frame: %v", err)
	}
	c.send(data)
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-c.in:
		return websocket.TextMessage, data, nil
	case <-c.closeCh:
		return 0, nil, net.ErrClosed
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-c.closeCh:
		return net.ErrClosed
	default:
	}
	c.mu.Lock()
	c.frames = append(c.frames, append([]byte(nil), data...))
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) WriteControl(messageType int, _ []byte, _ time.Time) error {
	select {
	case <-c.closeCh:
		return net.ErrClosed
	default:
	}
	if messageType == websocket.PingMessage {
		c.mu.Lock()
		c.pings++
		handler := c.pongHandler
		auto := c.autoPong
		c.mu.Unlock()
		if auto && handler != nil {
			_ = handler("")
		}
	}
	return nil
}

func (c *fakeConn) SetPongHandler(h func(string) error) {
	c.mu.Lock()
	c.pongHandler = h
	c.mu.Unlock()
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closeCalls++
	c.mu.Unlock()
	c.once.Do(func() { close(c.closeCh) })
	return nil
}

func (c *fakeConn) pingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pings
}

func (c *fakeConn) closed() bool {
	select {
	case <-c.closeCh:
		return true
	default:
		return false
	}
}

// writtenFrames decodes every server frame into a generic map.
func (c *fakeConn) writtenFrames(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.frames))
	for _, raw := range c.frames {
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			t.Fatalf("server frame is not JSON: %q", raw)
		}
		out = append(out, m)
	}
	return out
}

// fakeStream is an in-memory exec stream: the test feeds container
// output through emit/end and inspects stdin writes.
type fakeStream struct {
	out     chan []byte
	closeCh chan struct{}
	once    sync.Once

	mu            sync.Mutex
	writes        [][]byte
	writeAttempts int
	closeCalls    int
	writeErr      error
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		out:     make(chan []byte, 16),
		closeCh: make(chan struct{}),
	}
}

func (s *fakeStream) emit(data string) { s.out <- []byte(data) }

// end simulates the container-side process exiting.
func (s *fakeStream) end() { s.once.Do(func() { close(s.closeCh) }) }

func (s *fakeStream) Read(p []byte) (int, error) {
	select {
	case data := <-s.out:
		return copy(p, data), nil
	case <-s.closeCh:
		return 0, io.EOF
	}
}

func (s *fakeStream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeAttempts++
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	s.writes = append(s.writes, append([]byte(nil), p...))
	return len(p), nil
}

// attempts counts every Write call, including ones that failed.
func (s *fakeStream) attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeAttempts
}

func (s *fakeStream) CloseWrite() error { return nil }

func (s *fakeStream) Close() error {
	s.mu.Lock()
	s.closeCalls++
	s.mu.Unlock()
	s.once.Do(func() { close(s.closeCh) })
	return nil
}

func (s *fakeStream) stdin(t *testing.T) []string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.writes))
	for i, w := range s.writes {
		out[i] = string(w)
	}
	return out
}

// fakeExecRuntime implements runtime.Client for bridge tests.
type fakeExecRuntime struct {
	inspect    container.InspectResponse
	inspectErr error
	stream     *fakeStream

	execCreates atomic.Int32
}

func (f *fakeExecRuntime) Ping(context.Context) error { return nil }

func (f *fakeExecRuntime) ListContainers(context.Context, bool) ([]container.Summary, error) {
	return nil, nil
}

func (f *fakeExecRuntime) ListImages(context.Context) ([]image.Summary, error) {
	return nil, nil
}

func (f *fakeExecRuntime) Inspect(context.Context, string) (container.InspectResponse, error) {
	if f.inspectErr != nil {
		return container.InspectResponse{}, f.inspectErr
	}
	return f.inspect, nil
}

func (f *fakeExecRuntime) Start(context.Context, string) error  { return nil }
func (f *fakeExecRuntime) Stop(context.Context, string) error   { return nil }
func (f *fakeExecRuntime) Remove(context.Context, string) error { return nil }

func (f *fakeExecRuntime) StatsOnce(context.Context, string) (container.StatsResponse, error) {
	return container.StatsResponse{}, nil
}

func (f *fakeExecRuntime) Logs(context.Context, string, int) (string, error) { return "", nil }

func (f *fakeExecRuntime) CreateExec(context.Context, string, []string) (string, error) {
	f.execCreates.Add(1)
	return "exec-1", nil
}

func (f *fakeExecRuntime) AttachExec(context.Context, string) (runtime.ExecStream, error) {
	if f.stream == nil {
		return nil, errors.New("no stream configured")
	}
	return f.stream, nil
}

func (f *fakeExecRuntime) BuildImage(context.Context, io.Reader, []string) error { return nil }

// waitFor polls until cond is true or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func runningInspect(id, name string) container.InspectResponse {
	return container.InspectResponse{
		ContainerJSONBase: &container.ContainerJSONBase{
			ID:    id,
			Name:  "/" + name,
			State: &container.State{Status: "running", Running: true},
		},
	}
}

package shell

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"dockhand"
	"dockhand/internal/logging"
	"dockhand/internal/runtime"
)

// writeWait bounds how long a single frame write may block.
const writeWait = 10 * time.Second

// Conn is the slice of a WebSocket connection the session layer uses.
// *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Session is one live browser connection and, once bound, its exec
// stream. The connection handle is owned by the session for its
// lifetime; the exec stream is set at most once.
type Session struct {
	ID        string
	Principal dockhand.Principal

	conn Conn
	log  *slog.Logger

	// alive is flipped true by pong responses and swept false by the
	// registry heartbeat.
	alive atomic.Bool

	mu          sync.Mutex
	containerID string
	stream      runtime.ExecStream

	closeOnce sync.Once
	done      chan struct{}

	// writeMu serializes data frame writes; control frames (ping, close)
	// may be written concurrently per the WebSocket library's contract.
	writeMu sync.Mutex
}

func newSession(conn Conn, principal dockhand.Principal) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		Principal: principal,
		conn:      conn,
		done:      make(chan struct{}),
	}
	s.log = logging.Component("shell").With("session", s.ID)
	s.alive.Store(true)
	conn.SetPongHandler(func(string) error {
		s.alive.Store(true)
		return nil
	})
	return s
}

// bind records the target container and exec stream. It fails if the
// session is already bound; a session never rebinds.
func (s *Session) bind(containerID string, stream runtime.ExecStream) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream != nil {
		return fmt.Errorf("session already bound to container %s", s.containerID)
	}
	s.containerID = containerID
	s.stream = stream
	return nil
}

func (s *Session) boundStream() runtime.ExecStream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream
}

func (s *Session) writeFrame(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Session) sendOutput(chunk string) error {
	return s.writeFrame(outputFrame{Output: chunk, Timestamp: frameTimestamp()})
}

func (s *Session) sendError(msg string) {
	if err := s.writeFrame(errorFrame{Error: msg, Timestamp: frameTimestamp()}); err != nil {
		s.log.Debug("error frame not delivered", "err", err)
	}
}

func (s *Session) sendNotice(msg string) {
	if err := s.writeFrame(noticeFrame{Message: msg, Timestamp: frameTimestamp()}); err != nil {
		s.log.Debug("notice frame not delivered", "err", err)
	}
}

// Close tears the session down gracefully: exec stream closed, close
// handshake attempted, connection closed. Safe to call from multiple
// teardown paths; only the first caller does the work.
func (s *Session) Close() {
	s.teardown(true)
}

// Terminate tears the session down without a close handshake. Used when
// the peer has stopped responding and a handshake cannot succeed.
func (s *Session) Terminate() {
	s.teardown(false)
}

func (s *Session) teardown(graceful bool) {
	s.closeOnce.Do(func() {
		close(s.done)
		if stream := s.boundStream(); stream != nil {
			if err := stream.Close(); err != nil {
				s.log.Debug("close exec stream", "err", err)
			}
		}
		if graceful {
			deadline := time.Now().Add(writeWait)
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = s.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		}
		_ = s.conn.Close()
	})
}

// closing reports whether teardown has started.
func (s *Session) closing() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

package shell

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"dockhand/internal/auth"
	"dockhand/internal/runtime"
)

// defaultShell is the command spawned inside the target container.
var defaultShell = []string{"/bin/sh"}

// Bridge multiplexes browser WebSocket connections onto container exec
// streams. One Handle call serves one connection from accept to
// teardown; sessions are fully independent of each other.
type Bridge struct {
	Runtime  runtime.Client
	Auth     *auth.Gate
	Registry *Registry

	// ShellCommand overrides the exec command; defaults to /bin/sh.
	ShellCommand []string
}

// Handle drives one connection through the session state machine:
// authenticate, await the init message, validate the container, open the
// exec stream, then relay until either side ends. Every failure path
// sends a final explanatory frame before closing; nothing is retried.
func (b *Bridge) Handle(ctx context.Context, conn Conn, token string) {
	if token == "" {
		writeErrorFrame(conn, "Missing authentication token")
		_ = conn.Close()
		return
	}
	principal, err := b.Auth.Verify(token)
	if err != nil {
		writeErrorFrame(conn, "Invalid or expired token")
		_ = conn.Close()
		return
	}

	s := b.Registry.Admit(conn, principal)
	defer b.Registry.Release(s)
	defer s.Close()

	// Tie teardown to daemon shutdown.
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()

	s.log.Info("session authenticated", "user", principal.Subject)

	// Authenticated: the first message must name the target container.
	_, first, err := conn.ReadMessage()
	if err != nil {
		return
	}
	var init initMessage
	if err := json.Unmarshal(first, &init); err != nil {
		s.sendError("Invalid message format")
		return
	}
	if init.ContainerID == "" {
		s.sendError("Missing containerId")
		return
	}

	stream, name, err := b.openExec(ctx, init)
	if err != nil {
		s.sendError(err.Error())
		return
	}
	if err := s.bind(init.ContainerID, stream); err != nil {
		// Cannot happen on this control flow; a bound session never
		// reaches openExec again. Close the orphan stream regardless.
		_ = stream.Close()
		s.sendError("Invalid message format")
		return
	}

	s.log.Info("shell bound", "container", init.ContainerID)
	if err := s.sendOutput(fmt.Sprintf("Shell connected to container: %s\n", name)); err != nil {
		return
	}

	go b.pumpOutput(s, stream)
	b.pumpInput(s, stream)
}

// openExec validates the container is running and opens an interactive
// exec stream against it. The returned name is what the welcome frame
// shows: the client-supplied display name, the runtime's container name,
// or the bare ID.
func (b *Bridge) openExec(ctx context.Context, init initMessage) (runtime.ExecStream, string, error) {
	info, err := b.Runtime.Inspect(ctx, init.ContainerID)
	if err != nil {
		return nil, "", fmt.Errorf("Container %s not found or not accessible: %v", init.ContainerID, err)
	}
	if info.State == nil || !info.State.Running {
		status := "unknown"
		if info.State != nil {
			status = info.State.Status
		}
		return nil, "", fmt.Errorf("Container %s is not running (status: %s)", init.ContainerID, status)
	}

	cmd := b.ShellCommand
	if len(cmd) == 0 {
		cmd = defaultShell
	}
	execID, err := b.Runtime.CreateExec(ctx, init.ContainerID, cmd)
	if err != nil {
		return nil, "", fmt.Errorf("Container %s not found or not accessible: %v", init.ContainerID, err)
	}
	stream, err := b.Runtime.AttachExec(ctx, execID)
	if err != nil {
		return nil, "", fmt.Errorf("Container %s not found or not accessible: %v", init.ContainerID, err)
	}

	name := init.ContainerName
	if name == "" {
		name = containerDisplayName(info.Name)
	}
	if name == "" {
		name = init.ContainerID
	}
	return stream, name, nil
}

// pumpOutput forwards container stream chunks to the client in the sizes
// received until the stream ends or errors. Stream end is a normal
// teardown with a notice; a read error is terminal with an error frame.
func (b *Bridge) pumpOutput(s *Session, stream runtime.ExecStream) {
	buf := make([]byte, 4096)
	for {
		n, err := stream.Read(buf)
		if n > 0 {
			if werr := s.sendOutput(string(buf[:n])); werr != nil {
				s.Close()
				return
			}
		}
		if err != nil {
			if s.closing() {
				return
			}
			if err == io.EOF {
				s.sendNotice("Shell session ended")
			} else {
				s.sendError(fmt.Sprintf("Shell error: %v", err))
			}
			s.Close()
			return
		}
	}
}

// pumpInput forwards client frames to the exec stream as stdin with a
// trailing newline. Client close or error ends the session without an
// error frame; a failed stdin write is logged and swallowed so one bad
// write doesn't kill the relay.
func (b *Bridge) pumpInput(s *Session, stream runtime.ExecStream) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closing() && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("client read error", "err", err)
			}
			s.Close()
			return
		}
		in := decodeInput(data)
		if _, err := stream.Write([]byte(in.Stdin + "\n")); err != nil {
			s.log.Warn("stdin write failed", "err", err)
		}
	}
}

// writeErrorFrame sends a terminal error frame on a connection that has
// no session yet (pre-auth failures).
func writeErrorFrame(conn Conn, msg string) {
	data, err := json.Marshal(errorFrame{Error: msg, Timestamp: frameTimestamp()})
	if err != nil {
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Debug("pre-auth error frame not delivered", "err", err)
	}
	deadline := time.Now().Add(writeWait)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, ""), deadline)
}

// containerDisplayName strips the leading slash Docker prefixes onto
// container names.
func containerDisplayName(raw string) string {
	if len(raw) > 0 && raw[0] == '/' {
		return raw[1:]
	}
	return raw
}

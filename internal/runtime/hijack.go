package runtime

import (
	"github.com/docker/docker/api/types"
)

// hijackedStream adapts Docker's hijacked exec connection to ExecStream.
// Reads go through the buffered reader (it may already hold bytes the
// runtime sent before the hijack completed); writes go straight to the
// underlying connection.
type hijackedStream struct {
	resp types.HijackedResponse
}

func (h *hijackedStream) Read(p []byte) (int, error) {
	return h.resp.Reader.Read(p)
}

func (h *hijackedStream) Write(p []byte) (int, error) {
	return h.resp.Conn.Write(p)
}

func (h *hijackedStream) CloseWrite() error {
	return h.resp.CloseWrite()
}

func (h *hijackedStream) Close() error {
	h.resp.Close()
	return nil
}

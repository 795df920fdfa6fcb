// Package runtime wraps the Docker control API behind the narrow
// surface the daemon needs: listing and inspecting containers, lifecycle
// operations, one-shot stats, log retrieval, image builds, and
// interactive exec streams over a hijacked connection.
package runtime

import (
	"context"
	"io"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
)

// IsNotFound reports whether err means the container (or exec instance)
// does not exist. Wrapped errors are unwrapped.
func IsNotFound(err error) bool {
	return errdefs.IsNotFound(err)
}

// ExecStream is the duplex byte channel of a started exec instance.
// Reads return whatever the container process writes, in the chunk sizes
// the runtime delivers them; writes go to the process stdin.
type ExecStream interface {
	io.Reader
	io.Writer
	// CloseWrite half-closes the stdin side, letting the process see EOF.
	CloseWrite() error
	Close() error
}

// Client is the runtime control surface consumed by the shell bridge,
// the sync loop, and the HTTP API. Implementations must be safe for
// concurrent use: sessions and the sync loop share one client.
type Client interface {
	// Ping reports whether the runtime control endpoint is reachable.
	Ping(ctx context.Context) error

	ListContainers(ctx context.Context, all bool) ([]container.Summary, error)
	ListImages(ctx context.Context) ([]image.Summary, error)
	Inspect(ctx context.Context, id string) (container.InspectResponse, error)
	Start(ctx context.Context, id string) error
	Stop(ctx context.Context, id string) error
	Remove(ctx context.Context, id string) error

	// StatsOnce returns a single non-streaming resource usage snapshot.
	StatsOnce(ctx context.Context, id string) (container.StatsResponse, error)

	// Logs returns up to tail lines of combined stdout/stderr output.
	Logs(ctx context.Context, id string, tail int) (string, error)

	// CreateExec creates an interactive exec instance (tty, stdin/out/err
	// attached) and returns its identifier.
	CreateExec(ctx context.Context, id string, cmd []string) (string, error)

	// AttachExec starts the exec instance and hijacks the connection,
	// returning the raw duplex stream.
	AttachExec(ctx context.Context, execID string) (ExecStream, error)

	// BuildImage builds an image from a tar build context.
	BuildImage(ctx context.Context, buildContext io.Reader, tags []string) error
}

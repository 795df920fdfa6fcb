package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// Docker implements Client against a Docker daemon.
type Docker struct {
	api client.APIClient
}

// NewDocker connects to the Docker daemon. An empty host uses the
// client's environment defaults (DOCKER_HOST, /var/run/docker.sock).
func NewDocker(host string) (*Docker, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	api, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to docker daemon: %w", err)
	}
	return &Docker{api: api}, nil
}

// NewDockerFromAPI wraps an existing API client.
func NewDockerFromAPI(api client.APIClient) *Docker {
	return &Docker{api: api}
}

func (d *Docker) Ping(ctx context.Context) error {
	if _, err := d.api.Ping(ctx); err != nil {
		return fmt.Errorf("ping docker daemon: %w", err)
	}
	return nil
}

func (d *Docker) ListContainers(ctx context.Context, all bool) ([]container.Summary, error) {
	list, err := d.api.ContainerList(ctx, container.ListOptions{All: all})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	return list, nil
}

func (d *Docker) ListImages(ctx context.Context) ([]image.Summary, error) {
	list, err := d.api.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	return list, nil
}

func (d *Docker) Inspect(ctx context.Context, id string) (container.InspectResponse, error) {
	info, err := d.api.ContainerInspect(ctx, id)
	if err != nil {
		return container.InspectResponse{}, fmt.Errorf("inspect container %s: %w", id, err)
	}
	return info, nil
}

func (d *Docker) Start(ctx context.Context, id string) error {
	if err := d.api.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return fmt.Errorf("start container %s: %w", id, err)
	}
	return nil
}

func (d *Docker) Stop(ctx context.Context, id string) error {
	if err := d.api.ContainerStop(ctx, id, container.StopOptions{}); err != nil {
		return fmt.Errorf("stop container %s: %w", id, err)
	}
	return nil
}

func (d *Docker) Remove(ctx context.Context, id string) error {
	if err := d.api.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("remove container %s: %w", id, err)
	}
	return nil
}

// StatsOnce fetches one stats sample with streaming disabled and decodes
// the single JSON document the daemon returns.
func (d *Docker) StatsOnce(ctx context.Context, id string) (container.StatsResponse, error) {
	resp, err := d.api.ContainerStats(ctx, id, false)
	if err != nil {
		return container.StatsResponse{}, fmt.Errorf("stats for container %s: %w", id, err)
	}
	defer resp.Body.Close()

	var stats container.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return container.StatsResponse{}, fmt.Errorf("decode stats for container %s: %w", id, err)
	}
	return stats, nil
}

// Logs fetches combined stdout/stderr. Non-tty container output arrives
// multiplexed, so it is demuxed before returning; tty output is passed
// through as-is.
func (d *Docker) Logs(ctx context.Context, id string, tail int) (string, error) {
	rc, err := d.api.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       strconv.Itoa(tail),
	})
	if err != nil {
		return "", fmt.Errorf("logs for container %s: %w", id, err)
	}
	defer rc.Close()

	info, err := d.api.ContainerInspect(ctx, id)
	if err != nil {
		return "", fmt.Errorf("inspect container %s: %w", id, err)
	}

	var buf bytes.Buffer
	if info.Config != nil && info.Config.Tty {
		if _, err := io.Copy(&buf, rc); err != nil {
			return "", fmt.Errorf("read logs for container %s: %w", id, err)
		}
	} else {
		if _, err := stdcopy.StdCopy(&buf, &buf, rc); err != nil {
			return "", fmt.Errorf("read logs for container %s: %w", id, err)
		}
	}
	return buf.String(), nil
}

func (d *Docker) CreateExec(ctx context.Context, id string, cmd []string) (string, error) {
	resp, err := d.api.ContainerExecCreate(ctx, id, container.ExecOptions{
		Tty:          true,
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
		Cmd:          cmd,
	})
	if err != nil {
		return "", fmt.Errorf("create exec in container %s: %w", id, err)
	}
	return resp.ID, nil
}

func (d *Docker) AttachExec(ctx context.Context, execID string) (ExecStream, error) {
	attach, err := d.api.ContainerExecAttach(ctx, execID, container.ExecAttachOptions{Tty: true})
	if err != nil {
		return nil, fmt.Errorf("attach exec %s: %w", execID, err)
	}
	return &hijackedStream{resp: attach}, nil
}

func (d *Docker) BuildImage(ctx context.Context, buildContext io.Reader, tags []string) error {
	resp, err := d.api.ImageBuild(ctx, buildContext, build.ImageBuildOptions{Tags: tags})
	if err != nil {
		return fmt.Errorf("build image: %w", err)
	}
	defer resp.Body.Close()
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("build image: read response: %w", err)
	}
	return nil
}

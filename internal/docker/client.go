package docker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
	specs "github.com/opencontainers/image-spec/specs-go/v1"
)

// APIClient defines the subset of Docker API methods we use.
// This allows for mocking in tests.
type APIClient interface {
	Ping(ctx context.Context) (types.Ping, error)
	ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *specs.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerExecCreate(ctx context.Context, container string, config container.ExecOptions) (types.IDResponse, error)
	ContainerExecAttach(ctx context.Context, execID string, config container.ExecStartOptions) (types.HijackedResponse, error)
	ContainerExecInspect(ctx context.Context, execID string) (container.ExecInspect, error)
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	Close() error
}

// Client wraps the official Docker client with the few operations needed
// to run commands inside a long-lived container.
type Client struct {
	api    APIClient
	logger *slog.Logger
}

// NewClient creates a new Docker client instance from the environment.
func NewClient() (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Client{api: cli, logger: slog.Default()}, nil
}

// NewClientWithAPI wraps an existing APIClient.
func NewClientWithAPI(api APIClient) *Client {
	return &Client{api: api, logger: slog.Default()}
}

// Close closes the underlying docker client connection.
func (c *Client) Close() error {
	return c.api.Close()
}

// CheckDaemon verifies that the Docker daemon is running and reachable.
func (c *Client) CheckDaemon(ctx context.Context) error {
	if _, err := c.api.Ping(ctx); err != nil {
		return fmt.Errorf("docker daemon is not reachable: %w", err)
	}
	return nil
}

// PullImage pulls a Docker image from the registry.
func (c *Client) PullImage(ctx context.Context, imageRef string, platform string) error {
	reader, err := c.api.ImagePull(ctx, imageRef, image.PullOptions{Platform: platform})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", imageRef, err)
	}
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	for {
		var msg jsonmessage.JSONMessage
		if err := decoder.Decode(&msg); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to read pull progress: %w", err)
		}
		if msg.Error != nil {
			return fmt.Errorf("pull failed: %s", msg.Error.Message)
		}
	}

	return nil
}

// ContainerSpec describes the idle container commands are executed in.
type ContainerSpec struct {
	Image    string
	Platform string // os/arch[/variant], empty for the daemon default
	HostDir  string
	Workdir  string
}

// ParsePlatform turns "linux/arm64/v8" into an OCI platform. An empty
// string yields nil.
func ParsePlatform(s string) (*specs.Platform, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, "/")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("invalid platform %q, expected os/arch[/variant]", s)
	}
	p := &specs.Platform{OS: parts[0], Architecture: parts[1]}
	if len(parts) == 3 {
		p.Variant = parts[2]
	}
	return p, nil
}

// RunContainer pulls (best effort) and starts an idle container with
// spec.HostDir bind-mounted at spec.Workdir. It returns the container ID.
func (c *Client) RunContainer(ctx context.Context, spec ContainerSpec) (string, error) {
	platform, err := ParsePlatform(spec.Platform)
	if err != nil {
		return "", err
	}

	// a locally built image may not exist in any registry
	if err := c.PullImage(ctx, spec.Image, spec.Platform); err != nil {
		c.logger.Warn("Image pull failed, using local image", "image", spec.Image, "error", err)
	}

	resp, err := c.api.ContainerCreate(ctx,
		&container.Config{
			Image:      spec.Image,
			Tty:        true,
			OpenStdin:  true,
			WorkingDir: spec.Workdir,
			Cmd:        []string{"/bin/sh"},
		},
		&container.HostConfig{
			Binds: []string{
				fmt.Sprintf("%s:%s", spec.HostDir, spec.Workdir),
			},
		}, nil, platform, "")
	if err != nil {
		return "", fmt.Errorf("failed to create container: %w", err)
	}

	if err := c.api.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("failed to start container: %w", err)
	}

	return resp.ID, nil
}

// ExecResult holds the demultiplexed output and exit status of an exec.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Exec executes cmd in workdir inside a running container. A non-zero exit
// code is reported through ExecResult, not as an error.
func (c *Client) Exec(ctx context.Context, containerID, workdir string, cmd []string) (*ExecResult, error) {
	execConfig := container.ExecOptions{
		Cmd:          cmd,
		WorkingDir:   workdir,
		AttachStdout: true,
		AttachStderr: true,
	}

	respID, err := c.api.ContainerExecCreate(ctx, containerID, execConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create exec: %w", err)
	}

	resp, err := c.api.ContainerExecAttach(ctx, respID.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to attach exec: %w", err)
	}
	defer resp.Close()

	var outBuf, errBuf bytes.Buffer
	if _, err := stdcopy.StdCopy(&outBuf, &errBuf, resp.Reader); err != nil {
		return nil, fmt.Errorf("failed to copy exec output: %w", err)
	}

	inspect, err := c.api.ContainerExecInspect(ctx, respID.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect exec: %w", err)
	}

	return &ExecResult{
		Stdout:   outBuf.String(),
		Stderr:   errBuf.String(),
		ExitCode: inspect.ExitCode,
	}, nil
}

// StopContainer stops and removes the container.
func (c *Client) StopContainer(ctx context.Context, containerID string) error {
	// removal below is forced, so a failed stop is not fatal
	_ = c.api.ContainerStop(ctx, containerID, container.StopOptions{})
	return c.api.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true})
}

package executor

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"herwigbench/internal/config"
	"herwigbench/internal/docker"
)

// Docker runs every command as an exec inside one container that has the
// host run directory mounted.
type Docker struct {
	client      *docker.Client
	containerID string
	hostDir     string
	workdir     string
}

// NewDocker connects to the daemon and starts the container.
func NewDocker(ctx context.Context, cfg config.Docker, runDir string) (*Docker, error) {
	cli, err := docker.NewClient()
	if err != nil {
		return nil, err
	}
	d, err := startDocker(ctx, cli, cfg, runDir)
	if err != nil {
		cli.Close()
		return nil, err
	}
	return d, nil
}

func startDocker(ctx context.Context, cli *docker.Client, cfg config.Docker, runDir string) (*Docker, error) {
	if err := cli.CheckDaemon(ctx); err != nil {
		return nil, err
	}

	hostDir, err := filepath.Abs(runDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve run directory: %w", err)
	}

	id, err := cli.RunContainer(ctx, docker.ContainerSpec{
		Image:    cfg.Image,
		Platform: cfg.Platform,
		HostDir:  hostDir,
		Workdir:  cfg.Workdir,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("Started executor container", "id", id, "image", cfg.Image, "mount", hostDir)

	return &Docker{client: cli, containerID: id, hostDir: hostDir, workdir: cfg.Workdir}, nil
}

func (d *Docker) Run(ctx context.Context, c Command) (*Result, error) {
	workdir, err := d.containerPath(c.Dir)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := d.client.Exec(ctx, d.containerID, workdir, append([]string{c.Name}, c.Args...))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &Result{ExitCode: -1, Elapsed: time.Since(start)}, fmt.Errorf("command %q aborted: %w", c.String(), ctxErr)
		}
		return nil, err
	}

	res := &Result{
		Stdout:   out.Stdout,
		Stderr:   out.Stderr,
		ExitCode: out.ExitCode,
		Elapsed:  time.Since(start),
	}
	if res.ExitCode != 0 {
		return res, &CommandError{Command: c.String(), ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	return res, nil
}

// containerPath maps a host directory below the mounted run directory to
// its path inside the container.
func (d *Docker) containerPath(hostDir string) (string, error) {
	if hostDir == "" {
		return d.workdir, nil
	}
	abs, err := filepath.Abs(hostDir)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(d.hostDir, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("directory %s is outside the mounted run directory %s", hostDir, d.hostDir)
	}
	return filepath.ToSlash(filepath.Join(d.workdir, rel)), nil
}

// Close stops and removes the container.
func (d *Docker) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err := d.client.StopContainer(ctx, d.containerID)
	if cerr := d.client.Close(); err == nil {
		err = cerr
	}
	return err
}

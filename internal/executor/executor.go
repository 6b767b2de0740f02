package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"herwigbench/internal/config"
)

// Command is one invocation of the external program.
type Command struct {
	Name string
	Args []string
	// Dir is the host working directory.
	Dir string
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result is the captured outcome of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Elapsed  time.Duration
}

// CommandError is returned when a command ran but exited unsuccessfully.
type CommandError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command %q exited with code %d", e.Command, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + lastLines(s, 5)
	}
	return msg
}

// Executor runs commands to completion.
type Executor interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
	Close() error
}

// New builds the executor selected by cfg.Executor.Type.
func New(ctx context.Context, cfg *config.Config) (Executor, error) {
	switch cfg.Executor.Type {
	case "", "local":
		return NewLocal(), nil
	case "docker":
		return NewDocker(ctx, cfg.Executor.Docker, cfg.Herwig.RunDir)
	default:
		return nil, fmt.Errorf("unsupported executor type: %s", cfg.Executor.Type)
	}
}

func lastLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

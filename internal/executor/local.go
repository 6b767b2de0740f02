package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// Local runs commands as child processes of this one.
type Local struct {
	// execCommand allows mocking in tests.
	execCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
}

func NewLocal() *Local {
	return &Local{execCommand: exec.CommandContext}
}

func (l *Local) Run(ctx context.Context, c Command) (*Result, error) {
	cmd := l.execCommand(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := &Result{
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
		Elapsed: time.Since(start),
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			res.ExitCode = -1
			return res, fmt.Errorf("command %q aborted: %w", c.String(), ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, &CommandError{Command: c.String(), ExitCode: res.ExitCode, Stderr: res.Stderr}
		}
		res.ExitCode = -1
		return res, fmt.Errorf("failed to run %q: %w", c.String(), err)
	}

	return res, nil
}

func (l *Local) Close() error { return nil }

package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHelperProcess stands in for the Herwig binary.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	args = args[1:]

	wd, _ := os.Getwd()
	fmt.Printf("cwd=%s args=%s\n", wd, strings.Join(args[1:], " "))

	switch args[1] {
	case "fail":
		fmt.Fprintln(os.Stderr, "Error: could not read input file")
		os.Exit(3)
	case "sleep":
		time.Sleep(10 * time.Second)
	}
	os.Exit(0)
}

func helperLocal() *Local {
	return &Local{
		execCommand: func(ctx context.Context, name string, args ...string) *exec.Cmd {
			cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
			cmd := exec.CommandContext(ctx, os.Args[0], cs...)
			cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
			return cmd
		},
	}
}

func TestLocal_Run(t *testing.T) {
	dir := t.TempDir()
	l := helperLocal()

	res, err := l.Run(context.Background(), Command{Name: "Herwig", Args: []string{"read", "LHC.in"}, Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, res.Stdout, "args=read LHC.in")
	assert.Contains(t, res.Stdout, "cwd=")
	assert.Greater(t, res.Elapsed, time.Duration(0))
}

func TestLocal_RunFailure(t *testing.T) {
	l := helperLocal()

	res, err := l.Run(context.Background(), Command{Name: "Herwig", Args: []string{"fail"}, Dir: t.TempDir()})
	require.Error(t, err)

	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 3, cmdErr.ExitCode)
	assert.Contains(t, cmdErr.Error(), "could not read input file")
	assert.Equal(t, 3, res.ExitCode)
	assert.Contains(t, res.Stderr, "could not read input file")
}

func TestLocal_RunCancelled(t *testing.T) {
	l := helperLocal()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	res, err := l.Run(ctx, Command{Name: "Herwig", Args: []string{"sleep"}, Dir: t.TempDir()})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, -1, res.ExitCode)
}

func TestLocal_MissingBinary(t *testing.T) {
	l := NewLocal()

	_, err := l.Run(context.Background(), Command{Name: "definitely-not-herwig-binary", Args: []string{"read"}})
	require.Error(t, err)

	var cmdErr *CommandError
	assert.False(t, errors.As(err, &cmdErr))
}

func TestCommandString(t *testing.T) {
	c := Command{Name: "Herwig", Args: []string{"run", "LHC.run", "-N", "2000", "-j", "1"}}
	assert.Equal(t, "Herwig run LHC.run -N 2000 -j 1", c.String())
}

func TestCommandError_TruncatesStderr(t *testing.T) {
	var lines []string
	for i := 0; i < 20; i++ {
		lines = append(lines, fmt.Sprintf("line %d", i))
	}
	err := &CommandError{Command: "Herwig read x", ExitCode: 1, Stderr: strings.Join(lines, "\n")}
	assert.Contains(t, err.Error(), "line 19")
	assert.NotContains(t, err.Error(), "line 14\n")
}

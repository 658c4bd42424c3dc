//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

//go:generate mockgen -source=runner.go -destination=mocks/mock_runner.go -package=mocks

// Command is a single external tool invocation.
type Command struct {
	// Name is the executable name or path.
	Name string
	// Args are passed to the executable in order.
	Args []string
	// Dir is the working directory; empty means the current one.
	Dir string
}

// String renders the command line for logs.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, c.Name)

	for _, arg := range c.Args {
		if strings.ContainsAny(arg, " \t\"'") {
			arg = fmt.Sprintf("%q", arg)
		}

		parts = append(parts, arg)
	}

	return strings.Join(parts, " ")
}

// Result holds the captured outcome of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Combined returns stdout followed by stderr, trimmed.
func (r Result) Combined() string {
	return strings.TrimSpace(strings.TrimSpace(r.Stdout) + "\n" + strings.TrimSpace(r.Stderr))
}

// Runner invokes external tools. Every call blocks until the tool finishes,
// except Start, which only waits for the process to be spawned.
type Runner interface {
	// LookPath resolves an executable the way the shell would.
	LookPath(file string) (string, error)
	// Run executes cmd and captures its output. A non-zero exit status is
	// reported as an error wrapping ErrNonZeroExit with the Result filled in.
	Run(ctx context.Context, cmd Command) (Result, error)
	// Start spawns cmd without waiting for it to finish.
	Start(ctx context.Context, cmd Command) error
}

var (
	// ErrNonZeroExit is returned when a tool finished with a failing status.
	ErrNonZeroExit = errors.New("tool exited with non-zero status")
	// ErrToolNotFound is returned when a tool cannot be located.
	ErrToolNotFound = errors.New("tool not found")
)

// ExecRunner runs commands through os/exec.
type ExecRunner struct {
	// Stream, when set, receives a live copy of tool output.
	Stream io.Writer
}

// NewExecRunner creates a runner; stream may be nil.
func NewExecRunner(stream io.Writer) *ExecRunner {
	return &ExecRunner{Stream: stream}
}

// LookPath resolves file through PATH.
func (r *ExecRunner) LookPath(file string) (string, error) {
	path, err := exec.LookPath(file)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %w", file, ErrToolNotFound, err)
	}

	return path, nil
}

// Run executes cmd synchronously.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	var stdout, stderr bytes.Buffer

	//nolint:gosec // G204: invoking configured build tools is the purpose of this runner.
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Stdout = r.tee(&stdout)
	c.Stderr = r.tee(&stderr)

	err := c.Run()

	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err == nil {
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()

		return result, fmt.Errorf("%s: %w (exit code %d)", cmd.Name, ErrNonZeroExit, result.ExitCode)
	}

	if errors.Is(err, exec.ErrNotFound) {
		return result, fmt.Errorf("%s: %w: %w", cmd.Name, ErrToolNotFound, err)
	}

	return result, fmt.Errorf("run %s: %w", cmd.Name, err)
}

// Start spawns cmd and reaps it in the background.
// The process is detached from ctx so it outlives the packager.
func (r *ExecRunner) Start(_ context.Context, cmd Command) error {
	//nolint:gosec,noctx // G204: launching the installed app is intended; it must outlive ctx.
	c := exec.Command(cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir

	if err := c.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("%s: %w: %w", cmd.Name, ErrToolNotFound, err)
		}

		return fmt.Errorf("start %s: %w", cmd.Name, err)
	}

	go func() {
		_ = c.Wait()
	}()

	return nil
}

func (r *ExecRunner) tee(buf *bytes.Buffer) io.Writer {
	if r.Stream == nil {
		return buf
	}

	return io.MultiWriter(buf, r.Stream)
}

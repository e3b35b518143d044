// Package runner executes the external tools of the packaging pipeline.
package runner

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/wippyai/wasm-pack/errors"
	"go.uber.org/zap"
)

// stderrTailSize bounds how much of a tool's stderr is kept for error reports.
const stderrTailSize = 8 << 10

// Executor runs external commands. Run forwards the child's stdout to the
// configured writer; Read captures and returns it. Both always forward
// stderr and keep its tail for failure reports.
type Executor interface {
	Run(ctx context.Context, name string, args ...string) error
	Read(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExitError describes a command that could not be started or exited non-zero.
type ExitError struct {
	Err      error
	Command  string
	Stderr   string
	ExitCode int
}

func (e *ExitError) Error() string {
	if e.ExitCode < 0 {
		return fmt.Sprintf("executing %s: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("non-zero exit code %d executing:\n  %s", e.ExitCode, e.Command)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// StageError attributes a command failure to a pipeline stage. Exit errors
// keep their command line, exit code and stderr tail.
func StageError(stage errors.Stage, err error) error {
	if err == nil {
		return nil
	}
	var exit *ExitError
	if stderrors.As(err, &exit) {
		return errors.SubprocessFailed(stage, exit.Command, exit.ExitCode, exit.Stderr, exit.Err)
	}
	return errors.Wrap(stage, errors.KindSubprocessFailed, err, "")
}

// Runner is an Executor backed by os/exec.
type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *zap.Logger
	Dir    string
	Env    []string
}

// New creates a Runner executing commands in dir.
func New(dir string) *Runner {
	return &Runner{Dir: dir}
}

// WithDir returns a copy of r executing commands in dir.
func (r *Runner) WithDir(dir string) *Runner {
	c := *r
	c.Dir = dir
	return &c
}

// Run executes a command with stdout forwarded.
func (r *Runner) Run(ctx context.Context, name string, args ...string) error {
	_, err := r.exec(ctx, r.stdout(), name, args)
	return err
}

// Read executes a command and returns its stdout.
func (r *Runner) Read(ctx context.Context, name string, args ...string) ([]byte, error) {
	var out bytes.Buffer
	if _, err := r.exec(ctx, &out, name, args); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func (r *Runner) exec(ctx context.Context, stdout io.Writer, name string, args []string) (int, error) {
	command := CommandLine(name, args...)
	r.logger().Debug("exec", zap.String("cmd", command), zap.String("dir", r.Dir))

	tail := &tailBuffer{max: stderrTailSize}
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	cmd.Stdin = nil
	cmd.Stdout = stdout
	cmd.Stderr = io.MultiWriter(r.stderr(), tail)

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	exitErr := &ExitError{Err: err, Command: command, Stderr: tail.String(), ExitCode: -1}
	var ee *exec.ExitError
	if stderrors.As(err, &ee) {
		exitErr.ExitCode = ee.ExitCode()
	}
	r.logger().Debug("exec failed", zap.String("cmd", command), zap.Int("code", exitErr.ExitCode))
	return exitErr.ExitCode, exitErr
}

func (r *Runner) stdout() io.Writer {
	if r.Stdout != nil {
		return r.Stdout
	}
	return os.Stdout
}

func (r *Runner) stderr() io.Writer {
	if r.Stderr != nil {
		return r.Stderr
	}
	return os.Stderr
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return zap.NewNop()
}

// CommandLine renders a command for logs and error messages.
func CommandLine(name string, args ...string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	buf []byte
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if len(p) >= t.max {
		t.buf = append(t.buf[:0], p[len(p)-t.max:]...)
		return n, nil
	}
	if over := len(t.buf) + len(p) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	t.buf = append(t.buf, p...)
	return n, nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}

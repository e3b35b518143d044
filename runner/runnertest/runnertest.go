// Package runnertest provides a scripted runner.Executor for tests.
package runnertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/wippyai/wasm-pack/runner"
)

// Call records one command invocation.
type Call struct {
	Name string
	Args []string
	Read bool
}

// String renders the call as a command line.
func (c Call) String() string {
	return runner.CommandLine(c.Name, c.Args...)
}

// Handler scripts the behavior of one tool. It returns the captured stdout
// and an error; Run invocations discard the output.
type Handler func(ctx context.Context, args []string) ([]byte, error)

// Fake is a runner.Executor that dispatches on the command name.
// Unknown commands fail with an ExitError of code 127.
type Fake struct {
	handlers map[string]Handler
	calls    []Call
	mu       sync.Mutex
}

// New creates an empty Fake.
func New() *Fake {
	return &Fake{handlers: make(map[string]Handler)}
}

// Handle registers the handler for a command name.
func (f *Fake) Handle(name string, h Handler) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[name] = h
	return f
}

// Output registers a handler that always prints out.
func (f *Fake) Output(name string, out string) *Fake {
	return f.Handle(name, func(context.Context, []string) ([]byte, error) {
		return []byte(out), nil
	})
}

// Fail registers a handler that exits with code and stderr.
func (f *Fake) Fail(name string, code int, stderr string) *Fake {
	return f.Handle(name, func(_ context.Context, args []string) ([]byte, error) {
		return nil, &runner.ExitError{
			Err:      fmt.Errorf("exit status %d", code),
			Command:  runner.CommandLine(name, args...),
			Stderr:   stderr,
			ExitCode: code,
		}
	})
}

// Run implements runner.Executor.
func (f *Fake) Run(ctx context.Context, name string, args ...string) error {
	_, err := f.dispatch(ctx, name, args, false)
	return err
}

// Read implements runner.Executor.
func (f *Fake) Read(ctx context.Context, name string, args ...string) ([]byte, error) {
	return f.dispatch(ctx, name, args, true)
}

// Calls returns the recorded invocations in order.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Count returns how many times name was invoked.
func (f *Fake) Count(name string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Name == name {
			n++
		}
	}
	return n
}

func (f *Fake) dispatch(ctx context.Context, name string, args []string, read bool) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Name: name, Args: append([]string(nil), args...), Read: read})
	h, ok := f.handlers[name]
	f.mu.Unlock()

	if !ok {
		return nil, &runner.ExitError{
			Err:      fmt.Errorf("%s: command not found", name),
			Command:  runner.CommandLine(name, args...),
			ExitCode: 127,
		}
	}
	return h(ctx, args)
}

var _ runner.Executor = (*Fake)(nil)

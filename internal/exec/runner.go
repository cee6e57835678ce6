// Package exec provides a testable command execution abstraction.
// Task processes are spawned through the Runner interface so the
// engine can be exercised with a MockRunner in tests.
package exec

import (
	"bytes"
	"context"
	"io"
	osexec "os/exec"
	"runtime"
	"sync"
	"time"
)

// Spec describes one task process invocation.
type Spec struct {
	// Command is the shell command line to execute.
	Command string

	// Dir is the working directory for the process.
	Dir string

	// Env is the full environment for the process (never inherited
	// implicitly; the caller decides visibility).
	Env []string

	// Stdout and Stderr, when non-nil, receive the live streams in
	// addition to the captured log.
	Stdout io.Writer
	Stderr io.Writer
}

// Result is the outcome of a completed (or started, for persistent
// processes) invocation.
type Result struct {
	ExitCode int
	Duration time.Duration

	// Log is the combined stdout/stderr capture in arrival order.
	Log []byte
}

// Runner executes task commands.
type Runner interface {
	// Run executes the spec and blocks until the process exits.
	// A nonzero exit is reported via Result.ExitCode, not err; err is
	// reserved for spawn failures and context cancellation.
	Run(ctx context.Context, spec Spec) (Result, error)

	// Start launches the spec without waiting for exit. The returned
	// wait function blocks until the process terminates. Used for
	// persistent tasks, which satisfy their dependents on start.
	Start(ctx context.Context, spec Spec) (wait func() Result, err error)
}

// OSRunner implements Runner using os/exec and the platform shell.
type OSRunner struct{}

// NewOSRunner creates a new OS-based command runner.
func NewOSRunner() *OSRunner {
	return &OSRunner{}
}

func shellCommand(ctx context.Context, spec Spec) *osexec.Cmd {
	var cmd *osexec.Cmd
	if runtime.GOOS == "windows" {
		cmd = osexec.CommandContext(ctx, "cmd", "/C", spec.Command)
	} else {
		cmd = osexec.CommandContext(ctx, "sh", "-c", spec.Command)
	}
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	return cmd
}

// syncWriter serializes writes from the stdout and stderr pipes into
// one capture buffer.
type syncWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
	tee io.Writer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.tee != nil {
		w.tee.Write(p)
	}
	return w.buf.Write(p)
}

func (w *syncWriter) bytes() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]byte(nil), w.buf.Bytes()...)
}

// Run executes the spec and blocks until the process exits.
func (r *OSRunner) Run(ctx context.Context, spec Spec) (Result, error) {
	wait, err := r.Start(ctx, spec)
	if err != nil {
		return Result{}, err
	}
	res := wait()
	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	return res, nil
}

// Start launches the spec without waiting for exit.
func (r *OSRunner) Start(ctx context.Context, spec Spec) (func() Result, error) {
	cmd := shellCommand(ctx, spec)
	capture := &syncWriter{}
	cmd.Stdout = io.MultiWriter(capture, nilSafe(spec.Stdout))
	cmd.Stderr = io.MultiWriter(capture, nilSafe(spec.Stderr))

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	wait := func() Result {
		err := cmd.Wait()
		res := Result{
			Duration: time.Since(start),
			Log:      capture.bytes(),
		}
		if err != nil {
			if exitErr, ok := err.(*osexec.ExitError); ok {
				res.ExitCode = exitErr.ExitCode()
			} else {
				res.ExitCode = 1
			}
		}
		return res
	}
	return wait, nil
}

func nilSafe(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

// MockRunner implements Runner for testing.
type MockRunner struct {
	mu sync.Mutex

	// Calls records all invocations in order.
	Calls []Spec

	// Responses maps a command line to its scripted response. Commands
	// without a scripted response succeed with empty output.
	Responses map[string]MockResponse
}

// MockResponse defines the response for a mocked command.
type MockResponse struct {
	ExitCode int
	Log      []byte
	Err      error

	// Block, when non-nil, is closed by the test to let the command
	// "finish". Used to simulate long-running and persistent tasks.
	Block chan struct{}
}

// NewMockRunner creates a new mock runner.
func NewMockRunner() *MockRunner {
	return &MockRunner{Responses: make(map[string]MockResponse)}
}

// AddResponse sets the response for a command line.
func (m *MockRunner) AddResponse(command string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[command] = resp
}

// CallCount returns how many times command was invoked.
func (m *MockRunner) CallCount(command string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if c.Command == command {
			n++
		}
	}
	return n
}

func (m *MockRunner) record(spec Spec) MockResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, spec)
	return m.Responses[spec.Command]
}

func (m *MockRunner) Run(ctx context.Context, spec Spec) (Result, error) {
	resp := m.record(spec)
	if resp.Err != nil {
		return Result{}, resp.Err
	}
	if resp.Block != nil {
		select {
		case <-resp.Block:
		case <-ctx.Done():
			return Result{ExitCode: 1}, ctx.Err()
		}
	}
	if spec.Stdout != nil {
		spec.Stdout.Write(resp.Log)
	}
	return Result{ExitCode: resp.ExitCode, Log: resp.Log}, nil
}

func (m *MockRunner) Start(ctx context.Context, spec Spec) (func() Result, error) {
	resp := m.record(spec)
	if resp.Err != nil {
		return nil, resp.Err
	}
	return func() Result {
		if resp.Block != nil {
			select {
			case <-resp.Block:
			case <-ctx.Done():
			}
		}
		return Result{ExitCode: resp.ExitCode, Log: resp.Log}
	}, nil
}

// Default is the default runner used when none is injected.
var Default Runner = NewOSRunner()

package host

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// ErrNoBackend indicates no backend executable is configured.
var ErrNoBackend = errors.New("no backend command configured")

// CommandConfig parameterizes how the backend is invoked.
type CommandConfig struct {
	Binary string   // executable name or path
	Args   []string // arguments placed before the command vector (e.g. a script path)
	Dir    string   // working directory; empty means the current directory
}

// Verify ExecHost satisfies Starter and Source at compile time.
var (
	_ Starter = (*ExecHost)(nil)
	_ Source  = (*ExecHost)(nil)
)

// ExecHost runs the backend as a subprocess per command and publishes its
// output. For every started process the terminated event is published after
// the last stdout and stderr line of that process.
type ExecHost struct {
	config     CommandConfig
	cmdBuilder func(ctx context.Context, argv []string) *exec.Cmd
	subs       subscribers
	running    sync.WaitGroup
}

// Option configures an ExecHost.
type Option func(*ExecHost)

// WithCmdBuilder replaces the command construction, mainly for tests.
func WithCmdBuilder(fn func(ctx context.Context, argv []string) *exec.Cmd) Option {
	return func(h *ExecHost) { h.cmdBuilder = fn }
}

// NewExecHost creates an ExecHost from config and options.
func NewExecHost(cfg CommandConfig, opts ...Option) *ExecHost {
	h := &ExecHost{config: cfg}
	for _, opt := range opts {
		opt(h)
	}
	if h.cmdBuilder == nil {
		h.cmdBuilder = h.defaultCmdBuilder
	}
	return h
}

// Subscribe registers h for events on stream.
func (h *ExecHost) Subscribe(stream Stream, fn Handler) func() {
	return h.subs.subscribe(stream, fn)
}

// Start spawns the backend with argv appended to the configured arguments.
// It returns a *StartError if the process cannot be started. Cancelling ctx
// kills a running process.
func (h *ExecHost) Start(ctx context.Context, argv []string) error {
	cmd := h.cmdBuilder(ctx, argv)
	if cmd == nil {
		return &StartError{Argv: argv, Err: ErrNoBackend}
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &StartError{Argv: argv, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &StartError{Argv: argv, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return &StartError{Argv: argv, Err: err}
	}

	h.running.Add(1)
	go h.supervise(cmd, stdout, stderr)
	return nil
}

// Wait blocks until every started process has terminated and its
// terminated event has been published.
func (h *ExecHost) Wait() {
	h.running.Wait()
}

// supervise streams both pipes to completion, reaps the process and then
// publishes terminated. Pipes must be drained before cmd.Wait closes them.
func (h *ExecHost) supervise(cmd *exec.Cmd, stdout, stderr io.Reader) {
	defer h.running.Done()

	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		h.scan(stdout, StreamStdout)
	}()
	go func() {
		defer readers.Done()
		h.scan(stderr, StreamStderr)
	}()
	readers.Wait()

	_ = cmd.Wait()
	code := -1
	if cmd.ProcessState != nil {
		code = cmd.ProcessState.ExitCode()
	}
	h.subs.publish(Event{Stream: StreamTerminated, ExitCode: code})
}

// scan publishes every line of r. Lines have no length limit: a single
// pkg-list result can be several megabytes. A final line without a newline
// is still published.
func (h *ExecHost) scan(r io.Reader, stream Stream) {
	br := bufio.NewReaderSize(r, 64*1024)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
			h.subs.publish(Event{Stream: stream, Line: line})
		}
		if err != nil {
			// Keep the child from blocking on a full pipe after a read error.
			_, _ = io.Copy(io.Discard, r)
			return
		}
	}
}

// defaultCmdBuilder creates the backend command from config fields.
func (h *ExecHost) defaultCmdBuilder(ctx context.Context, argv []string) *exec.Cmd {
	if h.config.Binary == "" {
		return nil
	}
	args := make([]string, 0, len(h.config.Args)+len(argv))
	args = append(args, h.config.Args...)
	args = append(args, argv...)
	cmd := exec.CommandContext(ctx, h.config.Binary, args...)
	cmd.Dir = h.config.Dir
	cmd.WaitDelay = time.Second
	return cmd
}

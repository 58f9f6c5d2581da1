// Package session owns application state and the command pipeline:
// the single-flight dispatcher, the routing of classified results into
// state, and the dependent environment refresh after mutations.
//
// A Session is not safe for concurrent use. It is driven from one event
// loop that calls both the user operations and Handle; the process host's
// concurrency is funnelled into that loop by the channel adapter.
//
// Ordering contract: for every command the host publishes terminated only
// after the command's last stdout line. A result therefore always arrives
// while the gate is held, and a refresh requested by a mutation result is
// dispatched when terminated clears the gate.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/smileynet/condatools/internal/conda"
	"github.com/smileynet/condatools/internal/host"
	"github.com/smileynet/condatools/internal/logger"
	"github.com/smileynet/condatools/internal/protocol"
)

// Transcript prefixes and formats for synthetic lines.
const (
	StartPrefix  = "> "
	StderrPrefix = "[ERR] "
)

// ErrBusy is returned by user operations while a command holds the gate.
var ErrBusy = errors.New("session: a command is already running")

// Session holds State and mediates every change to it.
type Session struct {
	ctx     context.Context
	starter host.Starter
	log     *slog.Logger

	state     State
	last      *RunState // Most recently dispatched command, kept after the gate clears.
	observers []func(State)
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the diagnostic logger. Defaults to logger.L().
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// New creates a Session that dispatches through starter. ctx bounds every
// process started by the session.
func New(ctx context.Context, starter host.Starter, opts ...Option) *Session {
	s := &Session{ctx: ctx, starter: starter}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.L()
	}
	return s
}

// OnChange registers fn to receive a snapshot after every state change.
func (s *Session) OnChange(fn func(State)) {
	s.observers = append(s.observers, fn)
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	return s.state.clone()
}

// Busy reports whether a command holds the gate.
func (s *Session) Busy() bool {
	return s.state.Running != nil
}

// Run dispatches tag with args unless a command is already running, in which
// case it silently declines. Empty arguments are dropped. It reports whether
// the host accepted the command.
func (s *Session) Run(tag conda.CommandTag, args ...string) bool {
	ok := s.run(tag, args...)
	s.notify()
	return ok
}

func (s *Session) run(tag conda.CommandTag, args ...string) bool {
	if s.state.Running != nil {
		s.log.Debug("dispatch.declined", "command", tag, "running", s.state.Running.Command)
		return false
	}

	argv := make([]string, 0, len(args)+1)
	argv = append(argv, string(tag))
	for _, a := range args {
		if a != "" {
			argv = append(argv, a)
		}
	}
	rs := &RunState{Command: tag, Argv: argv, Display: strings.Join(argv, " ")}

	s.state.Running = rs
	s.last = rs
	s.appendLine(StartPrefix + rs.Display)
	s.state.Banner = ""
	s.log.Info("dispatch.start", "command", tag, "args", argv[1:])

	if err := s.starter.Start(s.ctx, argv); err != nil {
		s.state.Banner = err.Error()
		s.state.Running = nil
		s.log.Warn("dispatch.rejected", "command", tag, "error", err)
		return false
	}
	return true
}

// Handle applies one inbound host event.
func (s *Session) Handle(ev host.Event) {
	switch ev.Stream {
	case host.StreamStdout:
		s.handleStdout(ev.Line)
	case host.StreamStderr:
		s.appendLine(StderrPrefix + ev.Line)
	case host.StreamTerminated:
		s.handleTerminated(ev.ExitCode)
	default:
		s.log.Warn("event.unknown_stream", "stream", ev.Stream)
		return
	}
	s.notify()
}

func (s *Session) handleStdout(line string) {
	c := protocol.Classify(line)
	if c.Kind == protocol.KindLog {
		if c.Invalid != "" {
			s.log.Warn("result.invalid", "error", c.Invalid)
		}
		s.appendLine(c.Line)
		return
	}
	s.log.Info("result", "command", c.Command, "ok", c.OK())
	s.reconcile(c)
}

func (s *Session) handleTerminated(code int) {
	rs := s.state.Running
	if rs == nil {
		s.log.Warn("termination.unexpected", "exit_code", code)
		return
	}
	if code != 0 {
		s.appendLine(fmt.Sprintf("process exited (code %d)", code))
	}
	s.state.Running = nil
	s.log.Info("termination", "command", rs.Command, "exit_code", code)
	s.flushRefresh()
}

// reconcile routes a classified result into state by command tag.
func (s *Session) reconcile(c protocol.Classification) {
	switch o := c.Outcome.(type) {
	case protocol.Failure:
		s.state.Banner = o.Error
		if c.Command == conda.TagPkgList {
			s.state.Packages = []conda.Package{}
		}
	case protocol.ProbeOK:
		info := o.Info
		s.state.Connection = &info
	case protocol.EnvListOK:
		s.state.Environments = o.Environments
		if s.state.Selected != "" {
			if _, ok := s.state.Environment(s.state.Selected); !ok {
				s.clearSelection()
			}
		}
	case protocol.PkgListOK:
		s.state.Packages = o.Packages
	case protocol.MutationOK:
		s.appendLine(fmt.Sprintf("✓ %s succeeded", c.Command))
		if c.Command == conda.TagEnvRemove && s.removedSelection() {
			s.clearSelection()
		}
		if c.Command.MutatesEnvironments() {
			s.scheduleRefresh()
		}
	}
}

// removedSelection reports whether the last env-remove targeted the
// selected environment.
func (s *Session) removedSelection() bool {
	if s.last == nil || s.last.Command != conda.TagEnvRemove || s.state.Selected == "" {
		return false
	}
	return flagValue(s.last.Argv, "--prefix") == s.state.Selected
}

func flagValue(argv []string, flag string) string {
	for i := 0; i+1 < len(argv); i++ {
		if argv[i] == flag {
			return argv[i+1]
		}
	}
	return ""
}

func (s *Session) clearSelection() {
	s.state.Selected = ""
	s.state.Packages = []conda.Package{}
}

// scheduleRefresh owes one env-list and dispatches it now if the gate is
// already clear.
func (s *Session) scheduleRefresh() {
	s.state.PendingRefresh = true
	s.log.Info("refresh.scheduled", "deferred", s.state.Running != nil)
	s.flushRefresh()
}

func (s *Session) flushRefresh() {
	if !s.state.PendingRefresh || s.state.Running != nil {
		return
	}
	s.state.PendingRefresh = false
	s.log.Info("refresh.dispatch")
	s.run(conda.TagEnvList, conda.EnvListArgs()...)
}

func (s *Session) appendLine(line string) {
	s.state.Transcript = append(s.state.Transcript, line)
}

func (s *Session) notify() {
	if len(s.observers) == 0 {
		return
	}
	snap := s.state.clone()
	for _, fn := range s.observers {
		fn(snap)
	}
}

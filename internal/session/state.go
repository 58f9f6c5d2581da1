package session

import (
	"slices"

	"github.com/smileynet/condatools/internal/conda"
)

// RunState identifies the command currently holding the single-flight gate.
type RunState struct {
	Command conda.CommandTag
	Argv    []string // Full vector, tag first, empty arguments removed.
	Display string   // Argv joined with spaces.
}

// State is a snapshot of everything the front-end renders.
type State struct {
	Connection     *conda.ConnectionInfo // nil until the first successful probe.
	Environments   []conda.Environment
	Packages       []conda.Package // Scoped to Selected.
	Running        *RunState       // nil when the gate is clear.
	Transcript     []string
	Banner         string // Last error; empty when absent.
	Selected       string // Selected environment path; empty when absent.
	PendingRefresh bool   // An env-list is owed once the gate clears.
}

// Busy reports whether a command holds the gate.
func (s State) Busy() bool {
	return s.Running != nil
}

// Environment returns the environment at path.
func (s State) Environment(path string) (conda.Environment, bool) {
	for _, env := range s.Environments {
		if env.Path == path {
			return env, true
		}
	}
	return conda.Environment{}, false
}

// clone returns a deep copy so snapshots never alias live state.
func (s State) clone() State {
	out := s
	if s.Connection != nil {
		info := *s.Connection
		out.Connection = &info
	}
	if s.Running != nil {
		r := *s.Running
		r.Argv = slices.Clone(s.Running.Argv)
		out.Running = &r
	}
	out.Environments = slices.Clone(s.Environments)
	out.Packages = slices.Clone(s.Packages)
	out.Transcript = slices.Clone(s.Transcript)
	return out
}

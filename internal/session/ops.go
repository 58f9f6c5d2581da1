package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/smileynet/condatools/internal/conda"
)

// DefaultPython is the interpreter version used when a create request
// does not name one.
const DefaultPython = "3.11"

// Validation errors returned before any dispatch.
var (
	ErrUnknownEnvironment = errors.New("session: unknown environment")
	ErrNoFile             = errors.New("session: no file given")
)

// Bootstrap probes the installation and then lists environments.
func (s *Session) Bootstrap() error {
	if s.Busy() {
		return ErrBusy
	}
	defer s.notify()
	if s.run(conda.TagProbe, conda.ProbeArgs()...) {
		s.state.PendingRefresh = true
	}
	return nil
}

// Probe re-queries connection metadata.
func (s *Session) Probe() error {
	return s.dispatch(conda.TagProbe, conda.ProbeArgs()...)
}

// RefreshEnvironments re-lists environments.
func (s *Session) RefreshEnvironments() error {
	return s.dispatch(conda.TagEnvList, conda.EnvListArgs()...)
}

// Select makes path the selected environment, clears the package list and
// lists the new environment's packages.
func (s *Session) Select(path string) error {
	if s.Busy() {
		return ErrBusy
	}
	if _, err := s.lookup(path); err != nil {
		return err
	}
	s.state.Selected = path
	s.state.Packages = []conda.Package{}
	s.run(conda.TagPkgList, conda.PkgListArgs(path)...)
	s.notify()
	return nil
}

// CreateEnvironment creates name with the given interpreter version.
func (s *Session) CreateEnvironment(name, python string) error {
	if s.Busy() {
		return ErrBusy
	}
	name = strings.TrimSpace(name)
	if err := conda.ValidateNewName(name, s.state.Environments); err != nil {
		return err
	}
	if strings.TrimSpace(python) == "" {
		python = DefaultPython
	}
	return s.dispatch(conda.TagEnvCreate, conda.CreateArgs(name, python)...)
}

// RemoveEnvironment removes the environment at path. The base environment
// cannot be removed.
func (s *Session) RemoveEnvironment(path string) error {
	if s.Busy() {
		return ErrBusy
	}
	env, err := s.mutable(path)
	if err != nil {
		return err
	}
	return s.dispatch(conda.TagEnvRemove, conda.RemoveArgs(env.Path)...)
}

// RenameEnvironment renames the environment at path to newName.
func (s *Session) RenameEnvironment(path, newName string) error {
	if s.Busy() {
		return ErrBusy
	}
	env, err := s.mutable(path)
	if err != nil {
		return err
	}
	newName = strings.TrimSpace(newName)
	if err := conda.ValidateNewName(newName, s.state.Environments); err != nil {
		return err
	}
	return s.dispatch(conda.TagEnvRename, conda.RenameArgs(env.Name(), newName)...)
}

// CloneEnvironment copies the environment at path into destName.
// Cloning is the one operation permitted on the base environment.
func (s *Session) CloneEnvironment(path, destName string) error {
	if s.Busy() {
		return ErrBusy
	}
	env, err := s.lookup(path)
	if err != nil {
		return err
	}
	destName = strings.TrimSpace(destName)
	if err := conda.ValidateNewName(destName, s.state.Environments); err != nil {
		return err
	}
	source := env.Name()
	if conda.IsBase(env, s.state.Connection) {
		source = conda.BaseName
	}
	return s.dispatch(conda.TagEnvClone, conda.CloneArgs(source, destName)...)
}

// ImportEnvironment creates name from an environment definition file.
func (s *Session) ImportEnvironment(file, name string) error {
	if s.Busy() {
		return ErrBusy
	}
	if strings.TrimSpace(file) == "" {
		return ErrNoFile
	}
	name = strings.TrimSpace(name)
	if err := conda.ValidateNewName(name, s.state.Environments); err != nil {
		return err
	}
	return s.dispatch(conda.TagEnvImport, conda.ImportArgs(file, name)...)
}

// ExportEnvironment writes the definition of the environment at path to file.
func (s *Session) ExportEnvironment(path, file string, format conda.ExportFormat, noBuilds bool) error {
	if s.Busy() {
		return ErrBusy
	}
	env, err := s.mutable(path)
	if err != nil {
		return err
	}
	if strings.TrimSpace(file) == "" {
		return ErrNoFile
	}
	if _, err := conda.ParseExportFormat(string(format)); err != nil {
		return err
	}
	return s.dispatch(conda.TagEnvExport, conda.ExportArgs(env.Name(), file, format, noBuilds)...)
}

// ClearTranscript empties the log transcript.
func (s *Session) ClearTranscript() {
	s.state.Transcript = nil
	s.notify()
}

func (s *Session) dispatch(tag conda.CommandTag, args ...string) error {
	if s.Busy() {
		return ErrBusy
	}
	s.Run(tag, args...)
	return nil
}

func (s *Session) lookup(path string) (conda.Environment, error) {
	env, ok := s.state.Environment(path)
	if !ok {
		return conda.Environment{}, fmt.Errorf("%w: %s", ErrUnknownEnvironment, path)
	}
	return env, nil
}

// mutable looks up path and rejects the base environment.
func (s *Session) mutable(path string) (conda.Environment, error) {
	env, err := s.lookup(path)
	if err != nil {
		return env, err
	}
	if conda.IsBase(env, s.state.Connection) {
		return env, conda.ErrBaseEnvironment
	}
	return env, nil
}

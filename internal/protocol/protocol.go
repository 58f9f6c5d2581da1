// Package protocol classifies backend output lines into typed command results
// or opaque log lines.
//
// The backend interleaves human-readable logging with one JSON object per
// completed command on the same stream:
//
//	{"command": "<tag>", "ok": true,  "data": <payload>}
//	{"command": "<tag>", "ok": false, "error": "<message>"}
//
// Anything that does not match that shape is a log line.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/smileynet/condatools/internal/conda"
)

// Kind distinguishes structured results from log output.
type Kind int

const (
	KindLog    Kind = iota // Opaque line for the transcript.
	KindResult             // Tagged command result.
)

func (k Kind) String() string {
	if k == KindResult {
		return "result"
	}
	return "log"
}

// Outcome is the typed payload of a command result. It is one of ProbeOK,
// EnvListOK, PkgListOK, MutationOK or Failure.
type Outcome interface {
	isOutcome()
}

// ProbeOK carries the connection metadata of a successful probe.
type ProbeOK struct {
	Info conda.ConnectionInfo
}

// EnvListOK carries the environment list of a successful env-list.
type EnvListOK struct {
	Environments []conda.Environment
}

// PkgListOK carries the package list of a successful pkg-list.
type PkgListOK struct {
	Packages []conda.Package
}

// MutationOK reports success of a command whose payload is ignored
// (env-create, env-remove, env-rename, env-clone, env-import, env-export).
type MutationOK struct{}

// Failure reports a command that ran and returned ok:false. Error is the
// backend's message, unchanged.
type Failure struct {
	Error string
}

func (ProbeOK) isOutcome()    {}
func (EnvListOK) isOutcome()  {}
func (PkgListOK) isOutcome()  {}
func (MutationOK) isOutcome() {}
func (Failure) isOutcome()    {}

// Classification is the result of classifying one stdout line.
type Classification struct {
	Kind    Kind
	Line    string           // The input line with any trailing CR removed.
	Command conda.CommandTag // Set only for KindResult.
	Outcome Outcome          // Set only for KindResult.

	// Invalid holds the payload decode error of a line that carried a
	// result envelope but was demoted to a log line.
	Invalid string
}

// OK reports whether the classification is a successful command result.
func (c Classification) OK() bool {
	if c.Kind != KindResult {
		return false
	}
	_, failed := c.Outcome.(Failure)
	return !failed
}

// Envelope keys. They are matched exactly.
const (
	keyCommand = "command"
	keyOK      = "ok"
	keyData    = "data"
	keyError   = "error"
)

// envelope is a result line split into its exact-case fields.
type envelope struct {
	command string
	ok      bool
	data    json.RawMessage
	errText *string
}

// parseEnvelope reports whether fields holds a well-typed result envelope.
// Keys are compared byte for byte, unlike struct decoding.
func parseEnvelope(fields map[string]json.RawMessage) (envelope, bool) {
	var env envelope
	raw, ok := fields[keyCommand]
	if !ok || json.Unmarshal(raw, &env.command) != nil {
		return envelope{}, false
	}
	raw, ok = fields[keyOK]
	if !ok || isNull(raw) || json.Unmarshal(raw, &env.ok) != nil {
		return envelope{}, false
	}
	if raw, ok := fields[keyError]; ok && !isNull(raw) {
		var text string
		if json.Unmarshal(raw, &text) != nil {
			return envelope{}, false
		}
		env.errText = &text
	}
	env.data = fields[keyData]
	return env, true
}

// Classify decides whether line is a command result or a log line.
// It is a pure function of line.
//
// A line is a result only if it is a JSON object with a string "command"
// naming a known tag and a boolean "ok"; failures must also carry a string
// "error" and successes a payload of the shape the tag defines. Every other
// line, including valid JSON of another shape, is a log line. A log line
// whose envelope was valid but whose payload was not records the decode
// error in Invalid.
func Classify(line string) Classification {
	line = strings.TrimSuffix(line, "\r")
	logLine := Classification{Kind: KindLog, Line: line}

	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return logLine
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &fields); err != nil {
		return logLine
	}
	env, ok := parseEnvelope(fields)
	if !ok {
		return logLine
	}
	tag, ok := conda.ParseTag(env.command)
	if !ok {
		return logLine
	}

	c := Classification{Kind: KindResult, Line: line, Command: tag}
	if !env.ok {
		if env.errText == nil {
			return logLine
		}
		c.Outcome = Failure{Error: *env.errText}
		return c
	}

	outcome, err := decodeSuccess(tag, env.data)
	if err != nil {
		logLine.Invalid = err.Error()
		return logLine
	}
	c.Outcome = outcome
	return c
}

func decodeSuccess(tag conda.CommandTag, data json.RawMessage) (Outcome, error) {
	switch tag {
	case conda.TagProbe:
		info, err := DecodeProbe(data)
		if err != nil {
			return nil, err
		}
		return ProbeOK{Info: info}, nil
	case conda.TagEnvList:
		envs, err := DecodeEnvironments(data)
		if err != nil {
			return nil, err
		}
		return EnvListOK{Environments: envs}, nil
	case conda.TagPkgList:
		pkgs, err := DecodePackages(data)
		if err != nil {
			return nil, err
		}
		return PkgListOK{Packages: pkgs}, nil
	default:
		return MutationOK{}, nil
	}
}

// ErrMissingData indicates a successful result carried no payload where one
// is required.
var ErrMissingData = errors.New("protocol: result has no data")

// PayloadError wraps a failure to decode a result payload.
type PayloadError struct {
	Command conda.CommandTag
	Err     error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("protocol: decoding %s payload: %s", e.Command, e.Err)
}

func (e *PayloadError) Unwrap() error {
	return e.Err
}

func isNull(data json.RawMessage) bool {
	s := strings.TrimSpace(string(data))
	return s == "" || s == "null"
}

// DecodeProbe decodes a probe payload.
func DecodeProbe(data json.RawMessage) (conda.ConnectionInfo, error) {
	if isNull(data) {
		return conda.ConnectionInfo{}, &PayloadError{Command: conda.TagProbe, Err: ErrMissingData}
	}
	var info conda.ConnectionInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return conda.ConnectionInfo{}, &PayloadError{Command: conda.TagProbe, Err: err}
	}
	return info, nil
}

// DecodeEnvironments decodes an env-list payload. The result is never nil.
func DecodeEnvironments(data json.RawMessage) ([]conda.Environment, error) {
	if isNull(data) {
		return nil, &PayloadError{Command: conda.TagEnvList, Err: ErrMissingData}
	}
	var envs []conda.Environment
	if err := json.Unmarshal(data, &envs); err != nil {
		return nil, &PayloadError{Command: conda.TagEnvList, Err: err}
	}
	if envs == nil {
		envs = []conda.Environment{}
	}
	return envs, nil
}

// wirePackage is one entry of `conda list --json`. Older tools report the
// build under "build" rather than "build_string".
type wirePackage struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	BuildString string `json:"build_string"`
	Build       string `json:"build"`
	Channel     string `json:"channel"`
}

// DecodePackages decodes a pkg-list payload. The result is never nil.
func DecodePackages(data json.RawMessage) ([]conda.Package, error) {
	if isNull(data) {
		return nil, &PayloadError{Command: conda.TagPkgList, Err: ErrMissingData}
	}
	var raw []wirePackage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &PayloadError{Command: conda.TagPkgList, Err: err}
	}
	pkgs := make([]conda.Package, len(raw))
	for i, p := range raw {
		build := p.BuildString
		if build == "" {
			build = p.Build
		}
		pkgs[i] = conda.Package{
			Name:    p.Name,
			Version: p.Version,
			Build:   build,
			Channel: p.Channel,
		}
	}
	return pkgs, nil
}

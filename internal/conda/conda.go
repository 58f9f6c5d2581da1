// Package conda defines the environment-manager domain: connection metadata,
// environments, packages, command tags and the argument conventions used to
// invoke the backend.
package conda

import "strings"

// CommandTag identifies which operation a backend command or result refers to.
type CommandTag string

const (
	TagProbe     CommandTag = "probe"
	TagEnvList   CommandTag = "env-list"
	TagPkgList   CommandTag = "pkg-list"
	TagEnvCreate CommandTag = "env-create"
	TagEnvRemove CommandTag = "env-remove"
	TagEnvRename CommandTag = "env-rename"
	TagEnvClone  CommandTag = "env-clone"
	TagEnvImport CommandTag = "env-import"
	TagEnvExport CommandTag = "env-export"
)

// Tags returns every known command tag in a stable order.
func Tags() []CommandTag {
	return []CommandTag{
		TagProbe, TagEnvList, TagPkgList,
		TagEnvCreate, TagEnvRemove, TagEnvRename,
		TagEnvClone, TagEnvImport, TagEnvExport,
	}
}

// ParseTag returns the CommandTag for s, or false if s is not a known tag.
func ParseTag(s string) (CommandTag, bool) {
	for _, t := range Tags() {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// MutatesEnvironments reports whether a successful command with this tag
// changes the set of environments and therefore requires a list refresh.
func (t CommandTag) MutatesEnvironments() bool {
	switch t {
	case TagEnvCreate, TagEnvRemove, TagEnvRename, TagEnvClone, TagEnvImport:
		return true
	default:
		return false
	}
}

// ConnectionInfo is the metadata reported by a successful probe.
type ConnectionInfo struct {
	ToolVersion        string `json:"conda_version"`
	ToolRuntimeVersion string `json:"python_version"`
	RootPrefix         string `json:"root_prefix"`
}

// Environment is a single environment keyed by its absolute path.
type Environment struct {
	Path           string `json:"path"`
	RuntimeVersion string `json:"python_version"`
}

// Name returns the last path segment of the environment path.
// Both slash styles are accepted since the backend may run on Windows.
func (e Environment) Name() string {
	p := strings.TrimRight(e.Path, `/\`)
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		return p[i+1:]
	}
	return p
}

// IsBase reports whether env is the root environment described by info.
// A nil info never matches.
func IsBase(env Environment, info *ConnectionInfo) bool {
	return info != nil && info.RootPrefix != "" && env.Path == info.RootPrefix
}

// Package is one installed package within an environment.
type Package struct {
	Name    string
	Version string
	Build   string
	Channel string
}

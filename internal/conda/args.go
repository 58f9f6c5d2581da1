package conda

import "fmt"

// ExportFormat selects the file format written by env-export.
type ExportFormat string

const (
	FormatYML ExportFormat = "yml"
	FormatTXT ExportFormat = "txt"
)

// ParseExportFormat validates an export format string.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(s) {
	case FormatYML, FormatTXT:
		return ExportFormat(s), nil
	default:
		return "", fmt.Errorf("conda: export format must be %q or %q, got %q", FormatYML, FormatTXT, s)
	}
}

// The builders below produce the positional flag pairs each backend command
// expects after its tag. Callers pass already-validated strings.

// ProbeArgs returns the arguments for probe.
func ProbeArgs() []string { return nil }

// EnvListArgs returns the arguments for env-list.
func EnvListArgs() []string { return nil }

// PkgListArgs returns the arguments for pkg-list.
func PkgListArgs(prefix string) []string {
	return []string{"--prefix", prefix}
}

// CreateArgs returns the arguments for env-create.
func CreateArgs(name, python string) []string {
	return []string{"--name", name, "--python", python}
}

// RemoveArgs returns the arguments for env-remove.
func RemoveArgs(prefix string) []string {
	return []string{"--prefix", prefix}
}

// RenameArgs returns the arguments for env-rename.
func RenameArgs(oldName, newName string) []string {
	return []string{"--old-name", oldName, "--new-name", newName}
}

// CloneArgs returns the arguments for env-clone.
func CloneArgs(sourceName, destName string) []string {
	return []string{"--source-name", sourceName, "--dest-name", destName}
}

// ImportArgs returns the arguments for env-import.
func ImportArgs(file, name string) []string {
	return []string{"--file", file, "--name", name}
}

// ExportArgs returns the arguments for env-export. --no-builds is appended
// only when noBuilds is set.
func ExportArgs(name, file string, format ExportFormat, noBuilds bool) []string {
	args := []string{"--name", name, "--file", file, "--format", string(format)}
	if noBuilds {
		args = append(args, "--no-builds")
	}
	return args
}

package conda

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// BaseName is the reserved name of the root environment.
const BaseName = "base"

// Sentinel errors for caller-checkable name policy violations.
var (
	ErrEmptyName     = errors.New("conda: environment name is empty")
	ErrReservedName  = errors.New("conda: environment name is reserved")
	ErrDuplicateName = errors.New("conda: environment name already exists")

	// ErrBaseEnvironment indicates a destructive operation was requested on
	// the root environment. The root environment may only be cloned.
	ErrBaseEnvironment = errors.New("conda: operation not permitted on the base environment")
)

// NameConflictError reports a proposed environment name rejected before
// any command is dispatched.
type NameConflictError struct {
	Name     string
	Existing string // Path of the conflicting environment, if any.
	Err      error  // One of ErrEmptyName, ErrReservedName, ErrDuplicateName.
}

func (e *NameConflictError) Error() string {
	switch {
	case errors.Is(e.Err, ErrEmptyName):
		return "environment name cannot be empty"
	case errors.Is(e.Err, ErrReservedName):
		return fmt.Sprintf("environment name %q is reserved", e.Name)
	case e.Existing != "":
		return fmt.Sprintf("environment name %q conflicts with %s", e.Name, e.Existing)
	default:
		return fmt.Sprintf("environment name %q is not available: %v", e.Name, e.Err)
	}
}

func (e *NameConflictError) Unwrap() error {
	return e.Err
}

// sameName compares two names case-insensitively using full Unicode folding.
func sameName(a, b string) bool {
	fold := cases.Fold()
	return fold.String(a) == fold.String(b)
}

// ValidateNewName checks a proposed environment name against the reserved
// base name and the last path segment of every existing environment.
func ValidateNewName(name string, existing []Environment) error {
	if strings.TrimSpace(name) == "" {
		return &NameConflictError{Name: name, Err: ErrEmptyName}
	}
	if sameName(name, BaseName) {
		return &NameConflictError{Name: name, Err: ErrReservedName}
	}
	for _, env := range existing {
		if sameName(name, env.Name()) {
			return &NameConflictError{Name: name, Existing: env.Path, Err: ErrDuplicateName}
		}
	}
	return nil
}

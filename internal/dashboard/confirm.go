package dashboard

import (
	"fmt"
	"strings"
)

// confirmState holds the data needed for the removal confirmation screen.
type confirmState struct {
	path string
	name string
}

// View renders the confirmation screen.
func (cs confirmState) View() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Remove environment %s?\n", cs.name)
	fmt.Fprintf(&b, "\n  %s\n", cs.path)
	b.WriteString("\n  This deletes the environment and every package in it.")
	b.WriteString("\n\n  [y] Remove   [n/Esc] Cancel")
	return b.String()
}

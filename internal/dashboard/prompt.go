package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
)

// promptKind identifies what a prompt's value is used for.
type promptKind int

const (
	promptCreate promptKind = iota
	promptRename
	promptClone
	promptImportFile
	promptImportName
	promptExportFile
)

// promptState holds a single-line text entry and the operation it feeds.
type promptState struct {
	kind   promptKind
	target string // Environment path the operation applies to, if any.
	file   string // Import file collected by the previous step.
	input  textinput.Model
	err    string // Validation error from the last submit.
}

func newPrompt(kind promptKind, target, initial string) promptState {
	ti := textinput.New()
	ti.CharLimit = 256
	ti.Width = 50
	ti.Prompt = "> "
	ti.Placeholder = placeholder(kind)
	ti.SetValue(initial)
	ti.Focus()
	return promptState{kind: kind, target: target, input: ti}
}

func placeholder(kind promptKind) string {
	switch kind {
	case promptImportFile, promptExportFile:
		return "path/to/environment.yml"
	default:
		return "environment name"
	}
}

func (ps promptState) title() string {
	name := envName(ps.target)
	switch ps.kind {
	case promptCreate:
		return "Create environment"
	case promptRename:
		return fmt.Sprintf("Rename %s to", name)
	case promptClone:
		return fmt.Sprintf("Clone %s as", name)
	case promptImportFile:
		return "Import environment from file"
	case promptImportName:
		return fmt.Sprintf("Name for environment imported from %s", ps.file)
	case promptExportFile:
		return fmt.Sprintf("Export %s to file", name)
	}
	return ""
}

// View renders the prompt screen.
func (ps promptState) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(ps.title()))
	b.WriteString("\n\n  ")
	b.WriteString(ps.input.View())
	if ps.err != "" {
		b.WriteString("\n\n  ")
		b.WriteString(bannerStyle.Render(ps.err))
	}
	b.WriteString("\n\n  [Enter] Submit   [Esc] Cancel")
	return b.String()
}

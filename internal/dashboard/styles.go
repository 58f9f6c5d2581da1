package dashboard

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

const (
	// minEnvWidth keeps environment names readable on narrow terminals.
	minEnvWidth = 28

	// minLogHeight is the smallest log viewport height.
	minLogHeight = 3

	// borderChrome is the number of cells consumed by a box's two borders.
	borderChrome = 2

	statusHeight  = 1
	helpBarHeight = 1
)

var (
	accent = lipgloss.AdaptiveColor{Light: "4", Dark: "12"}
	dim    = lipgloss.AdaptiveColor{Light: "240", Dark: "245"}
	danger = lipgloss.AdaptiveColor{Light: "1", Dark: "9"}
	warn   = lipgloss.AdaptiveColor{Light: "3", Dark: "11"}
)

// FocusedBorder returns a lipgloss style with an accent-colored rounded border.
func FocusedBorder() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent)
}

// UnfocusedBorder returns a lipgloss style with a dim rounded border.
func UnfocusedBorder() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.AdaptiveColor{Light: "240", Dark: "240"})
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	cursorStyle   = lipgloss.NewStyle().Foreground(accent).Bold(true)
	selectedStyle = lipgloss.NewStyle().Foreground(accent)
	dimStyle      = lipgloss.NewStyle().Foreground(dim)
	bannerStyle   = lipgloss.NewStyle().Foreground(danger).Bold(true)
	noticeStyle   = lipgloss.NewStyle().Foreground(warn)
)

// layout is the outer size of every dashboard box for one terminal size.
// The environment pane takes a third of the width, the package pane the
// rest. The log box takes a quarter of the height and the pane row gets
// what the log box, the status line and the help bar leave over.
type layout struct {
	envWidth   int
	pkgWidth   int
	paneHeight int // inner height of the pane row
	logHeight  int // inner height of the log box
}

func computeLayout(width, height int) layout {
	var l layout
	if width > 0 {
		l.envWidth = max(width/3, minEnvWidth)
		l.pkgWidth = max(width-l.envWidth, 0)
	}
	l.logHeight = max(height/4, minLogHeight)
	l.paneHeight = max(height-borderChrome-(l.logHeight+borderChrome)-statusHeight-helpBarHeight, 1)
	return l
}

// truncate shortens s to at most width display cells, marking the cut
// with an ellipsis. Wide runes count as two cells.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}

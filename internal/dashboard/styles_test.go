package dashboard

import (
	"testing"

	"github.com/mattn/go-runewidth"
)

func TestComputeLayout_Normal(t *testing.T) {
	// Given: a 90x40 terminal
	// When: the layout is computed
	l := computeLayout(90, 40)

	// Then: environments get 1/3, packages 2/3, the log a quarter of the height
	if l.envWidth != 30 || l.pkgWidth != 60 {
		t.Errorf("widths = %d/%d, want 30/60", l.envWidth, l.pkgWidth)
	}
	if l.logHeight != 10 {
		t.Errorf("logHeight = %d, want 10", l.logHeight)
	}
	// 40 less pane borders, log box with borders, status line and help bar
	if l.paneHeight != 24 {
		t.Errorf("paneHeight = %d, want 24", l.paneHeight)
	}
}

func TestComputeLayout_NarrowKeepsEnvNamesReadable(t *testing.T) {
	// Given: a terminal narrower than three environment panes
	// When: the layout is computed
	l := computeLayout(40, 30)

	// Then: the environment pane keeps its minimum and the row fills the width
	if l.envWidth != minEnvWidth {
		t.Errorf("envWidth = %d, want %d", l.envWidth, minEnvWidth)
	}
	if l.envWidth+l.pkgWidth != 40 {
		t.Errorf("envWidth+pkgWidth = %d, want 40", l.envWidth+l.pkgWidth)
	}
}

func TestComputeLayout_VerySmall(t *testing.T) {
	// Given: a terminal smaller than the minimum pane and log sizes
	// When: the layout is computed
	l := computeLayout(20, 8)

	// Then: the package pane collapses and heights stay at their floors
	if l.envWidth != minEnvWidth || l.pkgWidth != 0 {
		t.Errorf("widths = %d/%d, want %d/0", l.envWidth, l.pkgWidth, minEnvWidth)
	}
	if l.logHeight != minLogHeight {
		t.Errorf("logHeight = %d, want %d", l.logHeight, minLogHeight)
	}
	if l.paneHeight != 1 {
		t.Errorf("paneHeight = %d, want 1", l.paneHeight)
	}
}

func TestComputeLayout_Zero(t *testing.T) {
	// Given: a terminal that has not reported its size
	// When: the layout is computed
	l := computeLayout(0, 0)

	// Then: both panes are empty
	if l.envWidth != 0 || l.pkgWidth != 0 {
		t.Errorf("widths = %d/%d, want 0/0", l.envWidth, l.pkgWidth)
	}
}

func TestFocusedBorder_DoesNotPanic(t *testing.T) {
	// Given/When: FocusedBorder is called
	// Then: it does not panic
	_ = FocusedBorder()
}

func TestUnfocusedBorder_DoesNotPanic(t *testing.T) {
	// Given/When: UnfocusedBorder is called
	// Then: it does not panic
	_ = UnfocusedBorder()
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		width int
		want  string
	}{
		{"fits", "numpy", 10, "numpy"},
		{"exact", "numpy", 5, "numpy"},
		{"cut", "scikit-learn", 8, "scikit-…"},
		{"zero width", "numpy", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncate(tt.in, tt.width); got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
			}
		})
	}
}

func TestTruncate_WideRunes(t *testing.T) {
	// Given: an environment name made of double-width characters
	name := "環境テスト"

	// When: it is truncated to 6 cells
	got := truncate(name, 6)

	// Then: the result never exceeds 6 display cells
	if w := runewidth.StringWidth(got); w > 6 {
		t.Errorf("width of %q = %d, want <= 6", got, w)
	}
}

package dashboard

import (
	"strings"
	"testing"
)

func TestConfirm_View(t *testing.T) {
	// Given: a confirm state for an environment
	cs := confirmState{path: "/opt/conda/envs/scratch", name: "scratch"}

	// When: the view is rendered
	view := cs.View()

	// Then: it names the environment, its path and both choices
	for _, want := range []string{"Remove environment scratch?", "/opt/conda/envs/scratch", "[y] Remove", "[n/Esc] Cancel"} {
		if !strings.Contains(view, want) {
			t.Errorf("view should contain %q, got:\n%s", want, view)
		}
	}
}

func TestPrompt_Titles(t *testing.T) {
	tests := []struct {
		kind   promptKind
		target string
		want   string
	}{
		{promptCreate, "", "Create environment"},
		{promptRename, "/opt/conda/envs/foo", "Rename foo to"},
		{promptClone, "/opt/conda/envs/foo", "Clone foo as"},
		{promptImportFile, "", "Import environment from file"},
		{promptExportFile, "/opt/conda/envs/foo", "Export foo to file"},
	}
	for _, tt := range tests {
		ps := newPrompt(tt.kind, tt.target, "")
		if got := ps.title(); got != tt.want {
			t.Errorf("title(%d) = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestPrompt_ViewShowsError(t *testing.T) {
	ps := newPrompt(promptCreate, "", "base")
	ps.err = `environment name "base" is reserved`

	view := ps.View()

	if !strings.Contains(view, "is reserved") {
		t.Errorf("view should show validation error, got:\n%s", view)
	}
	if !strings.Contains(view, "[Esc] Cancel") {
		t.Errorf("view should show cancel hint, got:\n%s", view)
	}
}

package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smileynet/condatools/internal/conda"
)

func lastCall(t *testing.T, calls [][]string) []string {
	t.Helper()
	require.NotEmpty(t, calls)
	return calls[len(calls)-1]
}

func TestSelect(t *testing.T) {
	s, f := seeded(t)
	require.NoError(t, s.Select("/opt/conda/envs/foo"))
	complete(f, pkgListOK)

	// When another environment is selected
	require.NoError(t, s.Select("/opt/conda/envs/FOO-clone"))

	// Then packages are cleared until the new listing arrives
	st := s.Snapshot()
	assert.Equal(t, "/opt/conda/envs/FOO-clone", st.Selected)
	assert.Empty(t, st.Packages)
	assert.Equal(t, []string{"pkg-list", "--prefix", "/opt/conda/envs/FOO-clone"}, lastCall(t, f.Calls()))
}

func TestSelect_Unknown(t *testing.T) {
	s, f := seeded(t)
	calls := len(f.Calls())

	err := s.Select("/nowhere")

	assert.ErrorIs(t, err, ErrUnknownEnvironment)
	assert.Len(t, f.Calls(), calls)
}

func TestRename_CaseInsensitiveCollision(t *testing.T) {
	s, f := seeded(t)
	calls := len(f.Calls())

	err := s.RenameEnvironment("/opt/conda/envs/foo", "foo-clone")

	var nce *conda.NameConflictError
	require.ErrorAs(t, err, &nce)
	assert.ErrorIs(t, err, conda.ErrDuplicateName)
	assert.Equal(t, "/opt/conda/envs/FOO-clone", nce.Existing)
	assert.Len(t, f.Calls(), calls, "no invocation on a name conflict")
	assert.Empty(t, s.Snapshot().Banner)
}

func TestNamePolicy_RejectsBase(t *testing.T) {
	s, f := seeded(t)
	calls := len(f.Calls())

	for name, op := range map[string]func() error{
		"create": func() error { return s.CreateEnvironment("Base", "") },
		"rename": func() error { return s.RenameEnvironment("/opt/conda/envs/foo", "BASE") },
		"clone":  func() error { return s.CloneEnvironment("/opt/conda/envs/foo", "base") },
		"import": func() error { return s.ImportEnvironment("/tmp/env.yml", "bAsE") },
	} {
		assert.ErrorIs(t, op(), conda.ErrReservedName, name)
	}
	assert.Len(t, f.Calls(), calls)
}

func TestBaseEnvironment_DestructiveOpsRejected(t *testing.T) {
	s, f := seeded(t)
	calls := len(f.Calls())

	assert.ErrorIs(t, s.RemoveEnvironment("/opt/conda"), conda.ErrBaseEnvironment)
	assert.ErrorIs(t, s.RenameEnvironment("/opt/conda", "main"), conda.ErrBaseEnvironment)
	assert.ErrorIs(t, s.ExportEnvironment("/opt/conda", "/tmp/base.yml", conda.FormatYML, false), conda.ErrBaseEnvironment)
	assert.Len(t, f.Calls(), calls)
}

func TestClone_BaseUsesReservedName(t *testing.T) {
	s, f := seeded(t)

	require.NoError(t, s.CloneEnvironment("/opt/conda", "base-copy"))

	assert.Equal(t, []string{"env-clone", "--source-name", "base", "--dest-name", "base-copy"}, lastCall(t, f.Calls()))
}

func TestCreate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		python string
		want   []string
	}{
		{"explicit python", "data", "3.12", []string{"env-create", "--name", "data", "--python", "3.12"}},
		{"default python", "data", "", []string{"env-create", "--name", "data", "--python", DefaultPython}},
		{"trimmed name", "  data  ", "3.10", []string{"env-create", "--name", "data", "--python", "3.10"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, f := seeded(t)

			require.NoError(t, s.CreateEnvironment(tt.input, tt.python))

			assert.Equal(t, tt.want, lastCall(t, f.Calls()))
		})
	}
}

func TestCreate_EmptyName(t *testing.T) {
	s, _ := seeded(t)

	assert.ErrorIs(t, s.CreateEnvironment("   ", "3.11"), conda.ErrEmptyName)
}

func TestRename(t *testing.T) {
	s, f := seeded(t)

	require.NoError(t, s.RenameEnvironment("/opt/conda/envs/foo", "bar"))

	assert.Equal(t, []string{"env-rename", "--old-name", "foo", "--new-name", "bar"}, lastCall(t, f.Calls()))
}

func TestImport(t *testing.T) {
	s, f := seeded(t)

	assert.ErrorIs(t, s.ImportEnvironment("", "bar"), ErrNoFile)
	require.NoError(t, s.ImportEnvironment("/tmp/bar.yml", "bar"))

	assert.Equal(t, []string{"env-import", "--file", "/tmp/bar.yml", "--name", "bar"}, lastCall(t, f.Calls()))
}

func TestExport(t *testing.T) {
	s, f := seeded(t)

	assert.ErrorIs(t, s.ExportEnvironment("/opt/conda/envs/foo", "", conda.FormatYML, false), ErrNoFile)
	assert.Error(t, s.ExportEnvironment("/opt/conda/envs/foo", "/tmp/foo.json", conda.ExportFormat("json"), false))
	require.NoError(t, s.ExportEnvironment("/opt/conda/envs/foo", "/tmp/foo.txt", conda.FormatTXT, true))

	assert.Equal(t,
		[]string{"env-export", "--name", "foo", "--file", "/tmp/foo.txt", "--format", "txt", "--no-builds"},
		lastCall(t, f.Calls()))
}

func TestProbeAndRefresh(t *testing.T) {
	s, f := newTestSession(t)

	require.NoError(t, s.Probe())
	complete(f)
	require.NoError(t, s.RefreshEnvironments())

	assert.Equal(t, []string{"probe", "env-list"}, tags(f.Calls()))
}

package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keymagic/keymagic/internal/composition"
)

// writeLayout creates a minimal layout source for testing.
func writeLayout(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "layout.yaml")
	content := `
name: Circumflex
rules:
  - lhs: ["aa"]
    rhs: ["â"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/circumflex_basic.yaml")
	require.NoError(t, err)

	assert.Equal(t, "circumflex_basic", scenario.Name)
	assert.Equal(t, filepath.Join("testdata", "layouts", "circumflex.yaml"), scenario.Keyboard)
	require.Len(t, scenario.Steps, 3)
	assert.Equal(t, "a", scenario.Steps[0].Keys)

	exp := scenario.Steps[1].Expect
	require.NotNil(t, exp)
	require.NotNil(t, exp.Action)
	assert.Equal(t, composition.Action{Kind: composition.DeleteBackAndInsert, Text: "â", DeleteCount: 1}, *exp.Action)
	assert.Nil(t, exp.Consumed)
	require.NotNil(t, exp.Rule)
	assert.Equal(t, 1, *exp.Rule)

	require.Len(t, scenario.Assertions, 6)
	assert.Equal(t, AssertFinalComposition, scenario.Assertions[0].Type)
	assert.Equal(t, "âê", *scenario.Assertions[0].Text)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/nope.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_UnknownField(t *testing.T) {
	dir := t.TempDir()
	writeLayout(t, dir)

	_, err := ParseScenario([]byte(`
name: typo
description: misspelled assertions
keyboard: layout.yaml
steps:
  - keys: a
assertion:
  - type: deterministic
`), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Validation(t *testing.T) {
	dir := t.TempDir()
	writeLayout(t, dir)

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "description: d\nkeyboard: layout.yaml\nsteps: [{keys: a}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: n\nkeyboard: layout.yaml\nsteps: [{keys: a}]\n",
			wantErr: "description is required",
		},
		{
			name:    "missing keyboard",
			yaml:    "name: n\ndescription: d\nsteps: [{keys: a}]\n",
			wantErr: "keyboard is required",
		},
		{
			name:    "keyboard not found",
			yaml:    "name: n\ndescription: d\nkeyboard: nope.km2\nsteps: [{keys: a}]\n",
			wantErr: "keyboard file not found",
		},
		{
			name:    "no steps",
			yaml:    "name: n\ndescription: d\nkeyboard: layout.yaml\n",
			wantErr: "steps list is required",
		},
		{
			name:    "empty keys",
			yaml:    "name: n\ndescription: d\nkeyboard: layout.yaml\nsteps: [{keys: ''}]\n",
			wantErr: "steps[0]: keys is required",
		},
		{
			name:    "bad key script",
			yaml:    "name: n\ndescription: d\nkeyboard: layout.yaml\nsteps: [{keys: '<VK_NOPE>'}]\n",
			wantErr: "unknown key",
		},
		{
			name:    "unknown assertion",
			yaml:    "name: n\ndescription: d\nkeyboard: layout.yaml\nsteps: [{keys: a}]\nassertions: [{type: magic}]\n",
			wantErr: `unknown assertion type "magic"`,
		},
		{
			name:    "final composition without text",
			yaml:    "name: n\ndescription: d\nkeyboard: layout.yaml\nsteps: [{keys: a}]\nassertions: [{type: final_composition}]\n",
			wantErr: "text is required for final_composition",
		},
		{
			name:    "negative count",
			yaml:    "name: n\ndescription: d\nkeyboard: layout.yaml\nsteps: [{keys: a}]\nassertions: [{type: rule_count, rule: 1, count: -1}]\n",
			wantErr: "count must be non-negative",
		},
		{
			name:    "bad action kind",
			yaml:    "name: n\ndescription: d\nkeyboard: layout.yaml\nsteps: [{keys: a}]\nassertions: [{type: trace_contains, kind: replace}]\n",
			wantErr: `unknown action kind "replace"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml), dir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseScenario_EmptyFinalComposition(t *testing.T) {
	dir := t.TempDir()
	writeLayout(t, dir)

	s, err := ParseScenario([]byte(`
name: n
description: d
keyboard: layout.yaml
steps: [{keys: a}]
assertions:
  - type: final_composition
    text: ""
`), dir)
	require.NoError(t, err)
	require.NotNil(t, s.Assertions[0].Text)
	assert.Equal(t, "", *s.Assertions[0].Text)
}

func TestLoadDir(t *testing.T) {
	scenarios, err := LoadDir("testdata/scenarios")
	require.NoError(t, err)

	var names []string
	for _, s := range scenarios {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"circumflex_basic", "commit_on_space", "smart_backspace"}, names)
}

func TestLoadDir_ReportsBadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("name: [\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.yaml")
}

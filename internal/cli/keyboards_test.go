package cli

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keymagic/keymagic/internal/catalog"
)

func TestKeyboards_List(t *testing.T) {
	dir := t.TempDir()
	writeKM2(t, dir)
	writeFile(t, dir, "broken.km2", "KMKL")
	writeFile(t, dir, "notes.txt", "not a keyboard")

	out, err := execute(NewKeyboardsCommand(jsonOpts()), dir)
	require.NoError(t, err)

	var list KeyboardList
	decodeResponse(t, out, &list)
	assert.Equal(t, dir, list.Dir)
	require.Len(t, list.Keyboards, 2)

	assert.Equal(t, "broken", list.Keyboards[0].ID)
	assert.NotEmpty(t, list.Keyboards[0].Error)

	assert.Equal(t, "circumflex", list.Keyboards[1].ID)
	assert.Equal(t, "Circumflex", list.Keyboards[1].Name)
	assert.Equal(t, "ctrl shift c", list.Keyboards[1].Hotkey)
	assert.Empty(t, list.Keyboards[1].Error)
}

func TestKeyboards_Text(t *testing.T) {
	dir := t.TempDir()
	writeKM2(t, dir)
	writeFile(t, dir, "broken.km2", "KMKL")

	out, err := execute(NewKeyboardsCommand(textOpts()), dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✗ broken")
	assert.Contains(t, out, "Circumflex [CTRL+SHIFT+C]")
}

func TestKeyboards_Empty(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(NewKeyboardsCommand(textOpts()), dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No keyboards found in "+dir)
}

func TestKeyboards_Find(t *testing.T) {
	dir := t.TempDir()
	writeKM2(t, dir)

	t.Run("by name", func(t *testing.T) {
		out, err := execute(NewKeyboardsCommand(jsonOpts()), dir, "--find", "CIRCUMFLEX")
		require.NoError(t, err)

		var list KeyboardList
		decodeResponse(t, out, &list)
		require.Len(t, list.Keyboards, 1)
		assert.Equal(t, filepath.Join(dir, "circumflex.km2"), list.Keyboards[0].Path)
	})

	t.Run("no match", func(t *testing.T) {
		out, err := execute(NewKeyboardsCommand(jsonOpts()), dir, "--find", "myanmar")
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))

		resp := decodeResponse(t, out, nil)
		require.NotNil(t, resp.Error)
		assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	})
}

func TestKeyboards_MissingDir(t *testing.T) {
	_, err := execute(NewKeyboardsCommand(textOpts()), filepath.Join(t.TempDir(), "none"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestWriteChange(t *testing.T) {
	tests := []struct {
		change catalog.Change
		want   string
	}{
		{catalog.Change{Kind: catalog.Added, Entry: catalog.Entry{ID: "zawgyi", Name: "Zawgyi"}}, "+ zawgyi (Zawgyi)\n"},
		{catalog.Change{Kind: catalog.Modified, Entry: catalog.Entry{ID: "zawgyi"}}, "~ zawgyi (zawgyi)\n"},
		{catalog.Change{Kind: catalog.Removed, Entry: catalog.Entry{ID: "zawgyi"}}, "- zawgyi\n"},
		{catalog.Change{Kind: catalog.Modified, Entry: catalog.Entry{ID: "zawgyi", Error: "km2: truncated"}}, "! zawgyi: km2: truncated\n"},
	}

	for _, tt := range tests {
		var sb strings.Builder
		writeChange(&sb, tt.change)
		assert.Equal(t, tt.want, sb.String())
	}
}

package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "keymagic", cmd.Use)
	assert.Contains(t, cmd.Long, "KeyMagic")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{
		"info", "validate", "compile", "type", "hotkey",
		"record", "replay", "trace", "test", "keyboards", "try",
	}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "", configFlag.DefValue)
}

func TestCompileCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	compileCmd, _, err := cmd.Find([]string{"compile"})
	require.NoError(t, err)

	outputFlag := compileCmd.Flags().Lookup("output")
	require.NotNil(t, outputFlag)
	assert.Equal(t, "o", outputFlag.Shorthand)
}

func TestCommitFlags(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"type", "record", "try"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.NotNil(t, sub.Flags().Lookup("commit-keys"), name)
		assert.NotNil(t, sub.Flags().Lookup("no-commit"), name)
	}
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	_, err := execute(cmd, "--format", "yaml", "hotkey", "ctrl+m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "yaml"`)
}

func TestRootCommand_LoadsConfig(t *testing.T) {
	dir := t.TempDir()
	kbDir := filepath.Join(dir, "keyboards")
	writeKM2(t, kbDir)
	cfgPath := writeFile(t, dir, "config.toml", `
keyboards_dir = "keyboards"

[commit]
keys = []
`)

	cmd := NewRootCommand()
	out, err := execute(cmd, "--config", cfgPath, "--format", "json", "type", "circumflex.km2", "aa ")
	require.NoError(t, err)

	var result TypeResult
	decodeResponse(t, out, &result)
	// keys = [] means never commit, so the space stays composing.
	assert.Equal(t, "â ", result.Composition)
	assert.Empty(t, result.Commits)
	assert.Equal(t, filepath.Join(kbDir, "circumflex.km2"), result.Keyboard)
}

func TestRootCommand_BadConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.toml", `keybords_dir = "typo"`)

	cmd := NewRootCommand()
	_, err := execute(cmd, "--config", cfgPath, "hotkey", "ctrl+m")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "unknown config keys")
}

package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keymagic/keymagic/internal/vk"
)

func TestHotkey_Text(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"ctrl shift m", "CTRL+SHIFT+M\n"},
		{"SHIFT+CTRL+M", "CTRL+SHIFT+M\n"},
		{"alt+space", "ALT+SPACE\n"},
		{"", "(no hotkey)\n"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			out, err := execute(NewHotkeyCommand(textOpts()), tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestHotkey_JSON(t *testing.T) {
	out, err := execute(NewHotkeyCommand(jsonOpts()), "ctrl+alt+k")
	require.NoError(t, err)

	var result HotkeyResult
	decodeResponse(t, out, &result)
	assert.Equal(t, "CTRL+ALT+K", result.Canonical)
	require.NotNil(t, result.Binding)
	assert.Equal(t, vk.KeyK, result.Binding.Key)
	assert.True(t, result.Binding.Ctrl)
	assert.True(t, result.Binding.Alt)
	assert.False(t, result.Binding.Shift)
}

func TestHotkey_Invalid(t *testing.T) {
	tests := []struct {
		input   string
		details string
	}{
		{"ctrl+shift", "no_key"},
		{"ctrl+a+b", "multiple_keys"},
		{"ctrl+banana", "unknown_token"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			out, err := execute(NewHotkeyCommand(jsonOpts()), tt.input)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))

			resp := decodeResponse(t, out, nil)
			require.NotNil(t, resp.Error)
			assert.Equal(t, ErrCodeBadHotkey, resp.Error.Code)
			assert.Equal(t, tt.details, resp.Error.Details)
		})
	}
}

package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/keymagic/keymagic/internal/hotkey"
)

// HotkeyResult is a parsed hotkey.
type HotkeyResult struct {
	Input     string          `json:"input"`
	Canonical string          `json:"canonical,omitempty"`
	Binding   *hotkey.Binding `json:"binding,omitempty"`
}

// NewHotkeyCommand creates the hotkey command.
func NewHotkeyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hotkey <text>",
		Short: "Parse a keyboard-switching hotkey",
		Long: `Parse hotkey text as stored in a keyboard, e.g. "CTRL+SHIFT+M" or
"ctrl shift m", and print its canonical form.

Exit codes:
  0 - Hotkey parsed (empty text means no hotkey)
  1 - Hotkey text is invalid`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHotkey(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runHotkey(opts *RootOptions, text string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	b, err := hotkey.Parse(text)
	if err != nil {
		details := "unknown"
		switch {
		case errors.Is(err, hotkey.ErrNoKey):
			details = "no_key"
		case errors.Is(err, hotkey.ErrMultipleKeys):
			details = "multiple_keys"
		case errors.Is(err, hotkey.ErrUnknownToken):
			details = "unknown_token"
		}
		return formatter.Fail(ExitFailure, ErrCodeBadHotkey, err.Error(), details)
	}

	result := HotkeyResult{Input: text, Binding: b}
	if b != nil {
		result.Canonical = b.String()
	}
	return formatter.Success(result)
}

// WriteText prints the canonical form.
func (r HotkeyResult) WriteText(w io.Writer) {
	if r.Binding == nil {
		fmt.Fprintln(w, "(no hotkey)")
		return
	}
	fmt.Fprintln(w, r.Canonical)
}

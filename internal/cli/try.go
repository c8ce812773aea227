package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/keymagic/keymagic/internal/logging"
	"github.com/keymagic/keymagic/internal/session"
	"github.com/keymagic/keymagic/internal/tui"
)

// TryOptions holds flags for the try command.
type TryOptions struct {
	*RootOptions
	Commit commitFlags
}

// NewTryCommand creates the try command.
func NewTryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "try [keyboard]",
		Short: "Type interactively through a keyboard",
		Long: `Open an interactive terminal editor driven by a keyboard.

Keys go through the engine as you type; committed text accumulates
above the composing line. Ctrl+R resets the composition, Ctrl+C quits.
Without an argument the configured default_keyboard is used.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := opts.Config().DefaultKeyboard
			if len(args) == 1 {
				name = args[0]
			}
			return runTry(opts, name, cmd)
		},
	}

	opts.Commit.register(cmd)

	return cmd
}

func runTry(opts *TryOptions, name string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	if name == "" {
		return NewExitError(ExitCommandError, "no keyboard given and no default_keyboard configured")
	}

	policy, err := session.PolicyFromNames(opts.Commit.names(cmd, opts.Config()))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	kb, err := LoadKeyboard(opts.Config().KeyboardPath(name))
	if err != nil {
		return outputLoadError(formatter, err)
	}

	// The alt screen owns the terminal; session logs would tear it.
	s := session.New(session.WithCommitPolicy(policy), session.WithLogger(logging.Discard()))
	defer s.Close()
	if err := s.LoadKeyboardBytes(kb.Image); err != nil {
		return WrapExitError(ExitFailure, "failed to load keyboard", err)
	}
	opts.Logger().Debug("starting interactive session", "keyboard", kb.Path)

	title := kb.Layout.Metadata().Name
	if title == "" {
		title = kb.Path
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := tui.Run(ctx, s, title); err != nil {
		return WrapExitError(ExitCommandError, "interactive session failed", err)
	}
	return nil
}

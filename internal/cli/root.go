// Package cli implements the keymagic command line.
package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/keymagic/keymagic/internal/config"
	"github.com/keymagic/keymagic/internal/logging"
	"github.com/keymagic/keymagic/internal/version"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	cfg    *config.Config
	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Config returns the loaded configuration, or the defaults when the root
// command has not run its setup (commands built directly in tests).
func (o *RootOptions) Config() config.Config {
	if o.cfg == nil {
		return config.Defaults()
	}
	return *o.cfg
}

// Logger returns the command logger. It discards everything until setup
// has run.
func (o *RootOptions) Logger() *slog.Logger {
	if o.logger == nil {
		return logging.Discard()
	}
	return o.logger
}

// setup loads the config file and builds the logger. Logs go to the
// command's stderr so JSON output on stdout stays clean.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}
	if o.Verbose {
		level = logging.LevelDebug
	}
	format, err := logging.ParseFormat(cfg.LogFormat)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}

	o.cfg = &cfg
	o.logger = logging.New(logging.Config{
		Level:     level,
		Format:    format,
		Output:    cmd.ErrOrStderr(),
		Component: "keymagic",
	})
	return nil
}

// NewRootCommand creates the root command for the keymagic CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "keymagic",
		Short:   "KeyMagic - rule-based keyboard engine",
		Version: version.String(),
		Long: `Load KeyMagic (.km2) keyboards, compile layout sources, and type
through the engine from the command line.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.setup(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default $XDG_CONFIG_HOME/keymagic/config.toml)")

	// Add subcommands
	cmd.AddCommand(NewInfoCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewTypeCommand(opts))
	cmd.AddCommand(NewHotkeyCommand(opts))
	cmd.AddCommand(NewRecordCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewKeyboardsCommand(opts))
	cmd.AddCommand(NewTryCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

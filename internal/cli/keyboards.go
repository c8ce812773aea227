package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/keymagic/keymagic/internal/catalog"
)

// KeyboardsOptions holds flags for the keyboards command.
type KeyboardsOptions struct {
	*RootOptions
	Watch bool
	Find  string
}

// KeyboardList is the keyboards found in a directory.
type KeyboardList struct {
	Dir       string          `json:"dir"`
	Keyboards []catalog.Entry `json:"keyboards"`
}

// NewKeyboardsCommand creates the keyboards command.
func NewKeyboardsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KeyboardsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "keyboards [dir]",
		Short: "List installed keyboards",
		Long: `List the .km2 keyboards in a directory (default: the configured
keyboards_dir) with their names and hotkeys.

With --watch the command keeps running and reports keyboards as they
are added, changed or removed, until interrupted.

Examples:
  keymagic keyboards
  keymagic keyboards ~/keyboards --find myanmar
  keymagic keyboards --watch --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := opts.Config().KeyboardsDir
			if len(args) == 1 {
				dir = args[0]
			}
			return runKeyboards(opts, dir, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "keep running and report changes")
	cmd.Flags().StringVar(&opts.Find, "find", "", "show the keyboard whose id or name matches")

	return cmd
}

func runKeyboards(opts *KeyboardsOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("keyboards directory not found: %s", dir), nil)
	}

	cat, err := catalog.New(dir, catalog.WithLogger(opts.Logger()))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open catalog", err)
	}

	if opts.Find != "" {
		entry, ok, err := cat.Find(opts.Find)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeScanError, err.Error(), nil)
		}
		if !ok {
			return formatter.Fail(ExitFailure, ErrCodeNotFound, fmt.Sprintf("no keyboard matches %q", opts.Find), nil)
		}
		return formatter.Success(KeyboardList{Dir: dir, Keyboards: []catalog.Entry{entry}})
	}

	entries, err := cat.List()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeScanError, err.Error(), nil)
	}
	if err := formatter.Success(KeyboardList{Dir: dir, Keyboards: entries}); err != nil {
		return err
	}

	if !opts.Watch {
		return nil
	}
	return watchKeyboards(cmd, cat, formatter)
}

// watchKeyboards streams catalog changes until the command is interrupted.
// JSON output is one change object per line.
func watchKeyboards(cmd *cobra.Command, cat *catalog.Catalog, f *OutputFormatter) error {
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	changes, err := cat.Watch(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to watch keyboards", err)
	}

	enc := json.NewEncoder(f.Writer)
	enc.SetEscapeHTML(false)
	for change := range changes {
		if f.IsJSON() {
			if err := enc.Encode(change); err != nil {
				return err
			}
			continue
		}
		writeChange(f.Writer, change)
	}
	return nil
}

func writeChange(w io.Writer, c catalog.Change) {
	switch {
	case c.Kind == catalog.Removed:
		fmt.Fprintf(w, "- %s\n", c.Entry.ID)
	case c.Entry.Error != "":
		fmt.Fprintf(w, "! %s: %s\n", c.Entry.ID, c.Entry.Error)
	case c.Kind == catalog.Added:
		fmt.Fprintf(w, "+ %s (%s)\n", c.Entry.ID, c.Entry.DisplayName())
	default:
		fmt.Fprintf(w, "~ %s (%s)\n", c.Entry.ID, c.Entry.DisplayName())
	}
}

// WriteText renders one line per keyboard.
func (l KeyboardList) WriteText(w io.Writer) {
	if len(l.Keyboards) == 0 {
		fmt.Fprintf(w, "No keyboards found in %s\n", l.Dir)
		return
	}
	for _, e := range l.Keyboards {
		if e.Error != "" {
			fmt.Fprintf(w, "✗ %-20s %s\n", e.ID, e.Error)
			continue
		}
		line := fmt.Sprintf("  %-20s %s", e.ID, e.DisplayName())
		if e.Hotkey != "" {
			line += fmt.Sprintf(" [%s]", canonicalHotkey(e.Hotkey))
		}
		fmt.Fprintln(w, line)
	}
}

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/keymagic/keymagic/internal/keyscript"
	"github.com/keymagic/keymagic/internal/session"
	"github.com/keymagic/keymagic/internal/store"
)

// RecordOptions holds flags for the record command.
type RecordOptions struct {
	*RootOptions
	Database string
	Commit   commitFlags

	// IDs overrides trace id generation (for testing).
	IDs store.IDGenerator
}

// RecordResult summarizes a written trace.
type RecordResult struct {
	TraceID     string   `json:"trace_id"`
	Database    string   `json:"database"`
	Keyboard    string   `json:"keyboard"`
	Keystrokes  int      `json:"keystrokes"`
	Composition string   `json:"composition"`
	Commits     []string `json:"commits"`
}

// NewRecordCommand creates the record command.
func NewRecordCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "record <keyboard> [keys]",
		Short: "Type keys and journal the session",
		Long: `Type a key script through a keyboard and write every keystroke and
its output to the journal, together with the exact keyboard image.

Without a keys argument the key script is read from standard input.
The journal defaults to the configured journal_path; use replay to
check that a recording still reproduces.

Example:
  keymagic record myanmar3.km2 "kyaw "
  echo -n "tieengs" | keymagic record vietnamese.yaml --db ./journal.db`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := keysArg(args, cmd.InOrStdin())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read keys", err)
			}
			return runRecord(opts, args[0], script, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (default from config)")
	opts.Commit.register(cmd)

	return cmd
}

func keysArg(args []string, stdin io.Reader) (string, error) {
	if len(args) > 1 {
		return args[1], nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func runRecord(opts *RecordOptions, name, script string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := opts.Logger()

	events, err := keyscript.Parse(script)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBadKeys, err.Error(), nil)
	}

	commitKeys := opts.Commit.names(cmd, opts.Config())
	if _, err := session.PolicyFromNames(commitKeys); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	kb, err := LoadKeyboard(opts.Config().KeyboardPath(name))
	if err != nil {
		return outputLoadError(formatter, err)
	}

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = opts.Config().JournalPath
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return WrapExitError(ExitCommandError, "failed to create journal directory", err)
	}

	// Open database (create if not exists)
	logger.Debug("opening journal", "path", dbPath)
	var storeOpts []store.Option
	if opts.IDs != nil {
		storeOpts = append(storeOpts, store.WithIDGenerator(opts.IDs))
	}
	st, err := store.Open(dbPath, storeOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	// Stop between keys on Ctrl-C; what was journaled so far stays.
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec, err := st.NewRecorder(ctx, store.TraceInfo{
		KeyboardPath: kb.Path,
		Keyboard:     kb.Image,
		CommitKeys:   commitKeys,
	}, session.WithLogger(logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start recording", err)
	}
	defer rec.Close()

	result := RecordResult{
		TraceID:  rec.TraceID(),
		Database: dbPath,
		Keyboard: kb.Path,
		Commits:  []string{},
	}
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			logger.Info("recording interrupted", "trace", rec.TraceID(), "keystrokes", result.Keystrokes)
			break
		}
		res, err := rec.Press(ctx, ev)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to record keystroke", err)
		}
		result.Keystrokes++
		if res.Commit {
			result.Commits = append(result.Commits, res.CommitText)
		}
	}
	result.Composition = rec.Composition()

	logger.Info("trace recorded", "trace", result.TraceID, "keystrokes", result.Keystrokes)
	return formatter.Respond(CLIResponse{Status: "ok", Data: result, TraceID: result.TraceID})
}

// WriteText renders the recording summary.
func (r RecordResult) WriteText(w io.Writer) {
	fmt.Fprintf(w, "Recorded %d keystroke(s) as trace %s\n", r.Keystrokes, r.TraceID)
	fmt.Fprintf(w, "  Journal:     %s\n", r.Database)
	fmt.Fprintf(w, "  Composition: %q\n", r.Composition)
	if len(r.Commits) > 0 {
		fmt.Fprintf(w, "  Committed:   %q\n", strings.Join(r.Commits, ""))
	}
}

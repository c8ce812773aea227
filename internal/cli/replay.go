package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/keymagic/keymagic/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	TraceID  string // optional - specific trace only
}

// ReplayTraceResult holds the replay result for a single trace.
type ReplayTraceResult struct {
	TraceID       string           `json:"trace_id"`
	Keystrokes    int              `json:"keystrokes"`
	Deterministic bool             `json:"deterministic"`
	Mismatches    []store.Mismatch `json:"mismatches,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Traces           []ReplayTraceResult `json:"traces"`
	TotalTraces      int                 `json:"total_traces"`
	AllDeterministic bool                `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay journaled traces and verify determinism",
		Long: `Replay journaled traces and verify that they reproduce.

Each trace is replayed into a fresh session loaded with the keyboard
image stored alongside it, and every keystroke's output is compared
with the journaled one.

Exit codes:
  0 - All traces reproduce exactly
  1 - Determinism verification failed (differences detected)
  2 - Command error (journal not found, unknown trace, etc.)

Examples:
  keymagic replay
  keymagic replay --db ./journal.db --trace 0192f0c4-...
  keymagic replay --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (default from config)")
	cmd.Flags().StringVar(&opts.TraceID, "trace", "", "replay specific trace only")

	return cmd
}

// openJournal opens an existing journal. Unlike store.Open it refuses to
// create a new file.
func openJournal(opts *RootOptions, path string) (*store.Store, error) {
	if path == "" {
		path = opts.Config().JournalPath
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("journal not found: %s", path))
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	// Open database
	st, err := openJournal(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	// Get traces to process
	var replays []store.ReplayResult
	if opts.TraceID != "" {
		r, err := st.Replay(ctx, opts.TraceID)
		if errors.Is(err, store.ErrTraceNotFound) {
			return formatter.Fail(ExitCommandError, ErrCodeJournal, fmt.Sprintf("trace not found: %s", opts.TraceID), nil)
		}
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay trace %s", opts.TraceID), err)
		}
		replays = []store.ReplayResult{r}
	} else {
		replays, err = st.ReplayAll(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to replay journal", err)
		}
	}

	// Process each trace
	result := ReplayResult{
		Traces:           make([]ReplayTraceResult, 0, len(replays)),
		TotalTraces:      len(replays),
		AllDeterministic: true,
	}
	for _, r := range replays {
		formatter.VerboseLog("Replayed %s: %d keystroke(s)", r.TraceID, r.Keystrokes)
		result.Traces = append(result.Traces, ReplayTraceResult{
			TraceID:       r.TraceID,
			Keystrokes:    r.Keystrokes,
			Deterministic: r.Deterministic(),
			Mismatches:    r.Mismatches,
		})
		if !r.Deterministic() {
			result.AllDeterministic = false
		}
	}

	// Output results
	response := CLIResponse{Status: "ok", Data: result}
	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeJournal,
			Message: "determinism verification failed",
		}
	}
	if err := formatter.Respond(response); err != nil {
		return err
	}

	if !result.AllDeterministic {
		// Determinism failure = exit code 1
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// WriteText renders the replay summary.
func (r ReplayResult) WriteText(w io.Writer) {
	if r.TotalTraces == 0 {
		fmt.Fprintln(w, "No traces found in journal.")
		return
	}

	fmt.Fprintf(w, "Replay Summary: %d trace(s)\n", r.TotalTraces)
	fmt.Fprintln(w)

	for _, tr := range r.Traces {
		status := "✓"
		if !tr.Deterministic {
			status = "✗"
		}
		fmt.Fprintf(w, "%s Trace: %s (%d keystrokes)\n", status, tr.TraceID, tr.Keystrokes)
		for _, m := range tr.Mismatches {
			fmt.Fprintf(w, "  seq %d: journaled %s %q, replayed %s %q\n",
				m.Seq, m.Want.Action, m.Want.Composition, m.Got.Action, m.Got.Composition)
		}
	}
	fmt.Fprintln(w)

	if r.AllDeterministic {
		fmt.Fprintln(w, "✓ All traces verified deterministic")
		return
	}
	fmt.Fprintln(w, "✗ Determinism verification failed")
}

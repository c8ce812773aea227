package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/keymagic/keymagic/internal/composition"
	"github.com/keymagic/keymagic/internal/keyscript"
	"github.com/keymagic/keymagic/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	TraceID  string
	Delete   bool
}

// TraceEvent represents a single keystroke in the trace timeline.
type TraceEvent struct {
	Seq         int64              `json:"seq"`
	Keys        string             `json:"keys"`
	Action      composition.Action `json:"action"`
	Composition string             `json:"composition"`
	Consumed    bool               `json:"consumed"`
	Rule        int                `json:"rule,omitempty"`
	CommitText  string             `json:"commit_text,omitempty"`
}

// TraceResult holds one trace with its timeline.
type TraceResult struct {
	store.TraceSummary
	Timeline []TraceEvent `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Keystrokes  int `json:"keystrokes"`
	RuleMatches int `json:"rule_matches"`
	PassedOn    int `json:"passed_on"`
	Commits     int `json:"commits"`
}

// TraceList is the trace headers in a journal.
type TraceList struct {
	Traces []store.TraceSummary `json:"traces"`
}

// TraceDeleted reports a removed trace.
type TraceDeleted struct {
	TraceID string `json:"trace_id"`
	Deleted bool   `json:"deleted"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "List or show journaled traces",
		Long: `List the traces in the journal, or show one trace key by key.

The timeline lists each keystroke with the edit the host was told to
make, the composing text after it, and the rule that matched.

Examples:
  keymagic trace
  keymagic trace --trace 0192f0c4-...
  keymagic trace --trace 0192f0c4-... --delete
  keymagic trace --db ./journal.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (default from config)")
	cmd.Flags().StringVar(&opts.TraceID, "trace", "", "trace id to show")
	cmd.Flags().BoolVar(&opts.Delete, "delete", false, "delete the trace given by --trace")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Delete && opts.TraceID == "" {
		return NewExitError(ExitCommandError, "--delete requires --trace")
	}

	// Open database
	st, err := openJournal(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	switch {
	case opts.TraceID == "":
		traces, err := st.ListTraces(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list traces", err)
		}
		return formatter.Success(TraceList{Traces: traces})

	case opts.Delete:
		err := st.DeleteTrace(ctx, opts.TraceID)
		if errors.Is(err, store.ErrTraceNotFound) {
			return formatter.Fail(ExitCommandError, ErrCodeJournal, fmt.Sprintf("trace not found: %s", opts.TraceID), nil)
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to delete trace", err)
		}
		opts.Logger().Info("trace deleted", "trace", opts.TraceID)
		return formatter.Success(TraceDeleted{TraceID: opts.TraceID, Deleted: true})
	}

	tr, err := st.ReadTrace(ctx, opts.TraceID)
	if errors.Is(err, store.ErrTraceNotFound) {
		return formatter.Fail(ExitCommandError, ErrCodeJournal, fmt.Sprintf("trace not found: %s", opts.TraceID), nil)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read trace", err)
	}
	return formatter.Respond(CLIResponse{Status: "ok", Data: buildTraceResult(tr), TraceID: tr.ID})
}

func buildTraceResult(tr store.Trace) TraceResult {
	result := TraceResult{
		TraceSummary: tr.TraceSummary,
		Timeline:     make([]TraceEvent, 0, len(tr.Keystrokes)),
	}
	for _, k := range tr.Keystrokes {
		ev := TraceEvent{
			Seq:         k.Seq,
			Keys:        keyscript.FormatEvent(k.Event),
			Action:      k.Result.Action,
			Composition: k.Result.Composition,
			Consumed:    k.Result.Consumed,
			Rule:        k.Result.Rule,
		}
		if k.Result.Commit {
			ev.CommitText = k.Result.CommitText
			result.Stats.Commits++
		}
		if k.Result.Rule > 0 {
			result.Stats.RuleMatches++
		}
		if !k.Result.Consumed {
			result.Stats.PassedOn++
		}
		result.Timeline = append(result.Timeline, ev)
	}
	result.Stats.Keystrokes = len(result.Timeline)
	return result
}

// WriteText renders the trace header and timeline.
func (r TraceResult) WriteText(w io.Writer) {
	fmt.Fprintf(w, "Trace %s\n", r.ID)
	if r.KeyboardPath != "" {
		fmt.Fprintf(w, "  Keyboard:    %s\n", r.KeyboardPath)
	}
	fmt.Fprintf(w, "  Hash:        %s\n", r.KeyboardHash)
	fmt.Fprintf(w, "  Recorded:    %s\n", r.CreatedAt.Format(time.RFC3339))
	if len(r.CommitKeys) > 0 {
		fmt.Fprintf(w, "  Commit keys: %s\n", strings.Join(r.CommitKeys, ", "))
	}
	fmt.Fprintln(w)

	for _, ev := range r.Timeline {
		line := fmt.Sprintf("  [%d] %-14s %-28s %q", ev.Seq, ev.Keys, ev.Action, ev.Composition)
		if ev.Rule > 0 {
			line += fmt.Sprintf(" rule %d", ev.Rule)
		}
		if !ev.Consumed {
			line += " (passed through)"
		}
		if ev.CommitText != "" {
			line += fmt.Sprintf(" commit %q", ev.CommitText)
		}
		fmt.Fprintln(w, line)
	}

	fmt.Fprintf(w, "\n%d keystroke(s), %d rule match(es), %d passed through, %d commit(s)\n",
		r.Stats.Keystrokes, r.Stats.RuleMatches, r.Stats.PassedOn, r.Stats.Commits)
}

// WriteText renders one line per trace.
func (l TraceList) WriteText(w io.Writer) {
	if len(l.Traces) == 0 {
		fmt.Fprintln(w, "No traces found in journal.")
		return
	}
	for _, t := range l.Traces {
		fmt.Fprintf(w, "%s  %s  %4d keys  %s\n",
			t.ID, t.CreatedAt.Format(time.RFC3339), t.Keystrokes, t.KeyboardPath)
	}
}

// WriteText confirms the deletion.
func (d TraceDeleted) WriteText(w io.Writer) {
	fmt.Fprintf(w, "Deleted trace %s\n", d.TraceID)
}

package store

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/keymagic/keymagic/internal/session"
)

// Mismatch is a keystroke whose replayed result differs from the journal.
type Mismatch struct {
	Seq  int64          `json:"seq"`
	Want session.Result `json:"want"`
	Got  session.Result `json:"got"`
}

// ReplayResult is the outcome of re-running one trace.
type ReplayResult struct {
	TraceID    string     `json:"trace_id"`
	Keystrokes int        `json:"keystrokes"`
	Mismatches []Mismatch `json:"mismatches,omitempty"`
}

// Deterministic reports whether every replayed result matched.
func (r ReplayResult) Deterministic() bool {
	return len(r.Mismatches) == 0
}

// Replay loads the trace's keyboard into a fresh session and feeds every
// journaled event through it, comparing each result.
func (s *Store) Replay(ctx context.Context, traceID string, opts ...session.Option) (ReplayResult, error) {
	tr, err := s.ReadTrace(ctx, traceID)
	if err != nil {
		return ReplayResult{}, err
	}

	if got := session.Fingerprint(tr.Keyboard); got != tr.KeyboardHash {
		return ReplayResult{}, fmt.Errorf("replay %s: keyboard hash %s does not match recorded %s", traceID, got, tr.KeyboardHash)
	}

	policy, err := session.PolicyFromNames(tr.CommitKeys)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay %s: %w", traceID, err)
	}

	sess := session.New(append(slices.Clone(opts), session.WithCommitPolicy(policy))...)
	defer sess.Close()
	if err := sess.LoadKeyboardBytes(tr.Keyboard); err != nil {
		return ReplayResult{}, fmt.Errorf("replay %s: %w", traceID, err)
	}

	result := ReplayResult{TraceID: traceID, Keystrokes: len(tr.Keystrokes)}
	for _, k := range tr.Keystrokes {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		got, err := sess.ProcessKey(k.Event)
		if err != nil {
			return result, fmt.Errorf("replay %s seq %d: %w", traceID, k.Seq, err)
		}
		if got != k.Result {
			result.Mismatches = append(result.Mismatches, Mismatch{Seq: k.Seq, Want: k.Result, Got: got})
		}
	}

	if !result.Deterministic() {
		slog.Warn("replay diverged", "trace", traceID, "mismatches", len(result.Mismatches))
	}
	return result, nil
}

// ReplayAll replays every trace in the journal, oldest first.
func (s *Store) ReplayAll(ctx context.Context, opts ...session.Option) ([]ReplayResult, error) {
	traces, err := s.ListTraces(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]ReplayResult, 0, len(traces))
	for _, t := range traces {
		r, err := s.Replay(ctx, t.ID, opts...)
		if err != nil {
			return results, err
		}
		results = append(results, r)
	}
	return results, nil
}

// Package harness runs keystroke scenarios against real keyboards.
//
// A scenario names a keyboard (compiled .km2 or a layout source), a list of
// key scripts, and expectations. Run drives a recording session over a
// fresh in-memory journal, so every scenario yields a trace that can be
// compared to a golden file and replayed for determinism.
package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/keymagic/keymagic/internal/compiler"
	"github.com/keymagic/keymagic/internal/km2"
	"github.com/keymagic/keymagic/internal/keyscript"
	"github.com/keymagic/keymagic/internal/session"
	"github.com/keymagic/keymagic/internal/store"
	"github.com/keymagic/keymagic/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenarios with a deterministic clock and trace ids.
type Harness struct {
	store    *store.Store
	recorder *store.Recorder
	logger   *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Load or compile the keyboard
// 3. Type each step, checking expect clauses
// 4. Read the trace back from the journal
// 5. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:",
		store.WithClock(testutil.NewDeterministicClock()),
		store.WithIDGenerator(testutil.NewSequentialIDs("scenario")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	keyboard, err := LoadKeyboard(scenario.Keyboard)
	if err != nil {
		return nil, fmt.Errorf("failed to load keyboard: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	rec, err := st.NewRecorder(ctx, store.TraceInfo{
		KeyboardPath: scenario.Keyboard,
		Keyboard:     keyboard,
		CommitKeys:   scenario.CommitKeys,
	}, session.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	defer rec.Close()

	h := &Harness{store: st, recorder: rec, logger: logger}
	result := NewResult()
	result.TraceID = rec.TraceID()

	if err := h.executeSteps(ctx, scenario.Steps, result); err != nil {
		return nil, fmt.Errorf("failed to execute steps: %w", err)
	}
	result.Composition = rec.Composition()

	trace, err := st.ReadTrace(ctx, rec.TraceID())
	if err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}
	for _, k := range trace.Keystrokes {
		result.Trace = append(result.Trace, TraceEvent{
			Seq:         k.Seq,
			Keys:        keyscript.FormatEvent(k.Event),
			Action:      k.Result.Action,
			Composition: k.Result.Composition,
			Consumed:    k.Result.Consumed,
			Rule:        k.Result.Rule,
			Commit:      k.Result.Commit,
			CommitText:  k.Result.CommitText,
		})
	}

	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// executeSteps types every step and checks its expect clause against the
// output of the step's last key.
func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) error {
	for i, step := range steps {
		events, err := keyscript.Parse(step.Keys)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}

		var last session.Result
		for _, ev := range events {
			res, err := h.recorder.Press(ctx, ev)
			if err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
			if res.Commit {
				result.Commits = append(result.Commits, res.CommitText)
			}
			last = res
		}

		if step.Expect != nil {
			for _, msg := range checkExpect(step.Expect, last) {
				result.AddError(fmt.Sprintf("steps[%d] %q: %s", i, step.Keys, msg))
			}
		}

		h.logger.Info("step completed",
			"step", i,
			"keys", step.Keys,
			"composition", last.Composition,
		)
	}
	return nil
}

func checkExpect(e *Expect, got session.Result) []string {
	var errs []string
	if e.Action != nil && *e.Action != got.Action {
		errs = append(errs, fmt.Sprintf("action: expected %s, got %s", e.Action, got.Action))
	}
	if e.Composition != nil && *e.Composition != got.Composition {
		errs = append(errs, fmt.Sprintf("composition: expected %q, got %q", *e.Composition, got.Composition))
	}
	if e.Consumed != nil && *e.Consumed != got.Consumed {
		errs = append(errs, fmt.Sprintf("consumed: expected %t, got %t", *e.Consumed, got.Consumed))
	}
	if e.Rule != nil && *e.Rule != got.Rule {
		errs = append(errs, fmt.Sprintf("rule: expected %d, got %d", *e.Rule, got.Rule))
	}
	if e.Commit != nil {
		switch {
		case !got.Commit:
			errs = append(errs, fmt.Sprintf("commit: expected %q, nothing committed", *e.Commit))
		case *e.Commit != got.CommitText:
			errs = append(errs, fmt.Sprintf("commit: expected %q, got %q", *e.Commit, got.CommitText))
		}
	}
	return errs
}

// LoadKeyboard returns the KM2 image for path. Layout sources are compiled
// in memory; .km2 files are read and checked.
func LoadKeyboard(path string) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".km2":
		return km2.ReadFile(path)
	default:
		l, err := compiler.CompileFile(path)
		if err != nil {
			return nil, err
		}
		return km2.Encode(l)
	}
}

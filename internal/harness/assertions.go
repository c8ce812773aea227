package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/keymagic/keymagic/internal/composition"
	"github.com/keymagic/keymagic/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s -> %s %q\n", event.Seq, event.Keys, event.Action, event.Composition)
		}
	}

	return buf.String()
}

// AssertionContext carries what assertions beyond the trace need.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

func assertFinalComposition(result *Result, a Assertion) error {
	if result.Composition == *a.Text {
		return nil
	}
	return &AssertionError{
		Type:     AssertFinalComposition,
		Expected: fmt.Sprintf("%q", *a.Text),
		Actual:   fmt.Sprintf("%q", result.Composition),
		Trace:    result.Trace,
	}
}

func assertCommits(result *Result, a Assertion) error {
	want := a.Texts
	if want == nil {
		want = []string{}
	}
	if slices.Equal(result.Commits, want) {
		return nil
	}
	return &AssertionError{
		Type:     AssertCommits,
		Expected: fmt.Sprintf("%q", want),
		Actual:   fmt.Sprintf("%q", result.Commits),
		Trace:    result.Trace,
	}
}

// assertRuleCount counts keys whose output names a.Rule. Rule 0 counts keys
// no rule matched.
func assertRuleCount(result *Result, a Assertion) error {
	count := 0
	for _, event := range result.Trace {
		if event.Rule == a.Rule {
			count++
		}
	}
	if count == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertRuleCount,
		Expected: fmt.Sprintf("rule %d matched %d times", a.Rule, a.Count),
		Actual:   fmt.Sprintf("matched %d times", count),
		Trace:    result.Trace,
	}
}

// assertTraceContains looks for an action of the given kind, and with the
// given text when one is set.
func assertTraceContains(result *Result, a Assertion) error {
	var kind composition.Kind
	if err := kind.UnmarshalText([]byte(a.Kind)); err != nil {
		return err
	}

	for _, event := range result.Trace {
		if event.Action.Kind != kind {
			continue
		}
		if a.Text == nil || event.Action.Text == *a.Text {
			return nil
		}
	}

	expected := kind.String()
	if a.Text != nil {
		expected = fmt.Sprintf("%s with text %q", kind, *a.Text)
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    result.Trace,
	}
}

// assertDeterministic replays the run's journal through a fresh session.
func assertDeterministic(result *Result, actx *AssertionContext) error {
	replay, err := actx.Store.Replay(actx.Ctx, result.TraceID)
	if err != nil {
		return fmt.Errorf("replay failed: %w", err)
	}
	if replay.Deterministic() {
		return nil
	}
	seqs := make([]string, len(replay.Mismatches))
	for i, m := range replay.Mismatches {
		seqs[i] = fmt.Sprint(m.Seq)
	}
	return &AssertionError{
		Type:     AssertDeterministic,
		Expected: "replay reproduces every output",
		Actual:   "diverged at seq " + strings.Join(seqs, ", "),
		Trace:    result.Trace,
	}
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertFinalComposition:
			err = assertFinalComposition(result, a)
		case AssertCommits:
			err = assertCommits(result, a)
		case AssertRuleCount:
			err = assertRuleCount(result, a)
		case AssertTraceContains:
			err = assertTraceContains(result, a)
		case AssertDeterministic:
			err = assertDeterministic(result, actx)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

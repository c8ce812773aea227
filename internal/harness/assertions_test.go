package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keymagic/keymagic/internal/composition"
)

func sampleResult() *Result {
	r := NewResult()
	r.Composition = "â"
	r.Commits = []string{"ka "}
	r.Trace = []TraceEvent{
		{Seq: 1, Keys: "a", Action: composition.Action{Kind: composition.Insert, Text: "a"}, Composition: "a", Consumed: true},
		{Seq: 2, Keys: "a", Action: composition.Action{Kind: composition.DeleteBackAndInsert, Text: "â", DeleteCount: 1}, Composition: "â", Consumed: true, Rule: 1},
		{Seq: 3, Keys: "<VK_BACK>", Action: composition.Action{Kind: composition.DeleteBack, DeleteCount: 1}, Consumed: true},
	}
	return r
}

func TestEvaluateAssertions(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{"final composition", Assertion{Type: AssertFinalComposition, Text: ptr("â")}, ""},
		{"final composition mismatch", Assertion{Type: AssertFinalComposition, Text: ptr("a")}, `Expected: "a"`},
		{"commits", Assertion{Type: AssertCommits, Texts: []string{"ka "}}, ""},
		{"commits mismatch", Assertion{Type: AssertCommits}, `Expected: []`},
		{"rule count", Assertion{Type: AssertRuleCount, Rule: 1, Count: 1}, ""},
		{"fallback count", Assertion{Type: AssertRuleCount, Rule: 0, Count: 2}, ""},
		{"rule count mismatch", Assertion{Type: AssertRuleCount, Rule: 2, Count: 1}, "matched 0 times"},
		{"contains kind", Assertion{Type: AssertTraceContains, Kind: "delete_back"}, ""},
		{"contains kind and text", Assertion{Type: AssertTraceContains, Kind: "insert", Text: ptr("a")}, ""},
		{"contains wrong text", Assertion{Type: AssertTraceContains, Kind: "insert", Text: ptr("â")}, `insert with text "â"`},
		{"contains missing kind", Assertion{Type: AssertTraceContains, Kind: "none"}, "not found in trace"},
		{"unknown type", Assertion{Type: "bogus"}, `unknown assertion type "bogus"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(sampleResult(), []Assertion{tt.assertion}, &AssertionContext{Ctx: context.Background()})
			if tt.wantErr == "" {
				assert.Empty(t, errs)
				return
			}
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], tt.wantErr)
		})
	}
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	err := &AssertionError{
		Type:     AssertFinalComposition,
		Expected: `"x"`,
		Actual:   `"â"`,
		Trace:    sampleResult().Trace,
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: final_composition")
	assert.Contains(t, msg, `[2] a -> delete 1 insert "â" "â"`)
	assert.Contains(t, msg, "[3] <VK_BACK> -> delete 1")
}

func TestResult_AddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)
	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}

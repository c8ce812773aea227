package harness

import "github.com/keymagic/keymagic/internal/composition"

// TraceEvent is one keystroke as journaled during a scenario run.
type TraceEvent struct {
	Seq         int64              `json:"seq"`
	Keys        string             `json:"keys"` // key script form of the event
	Action      composition.Action `json:"action"`
	Composition string             `json:"composition"`
	Consumed    bool               `json:"consumed"`
	Rule        int                `json:"rule,omitempty"`
	Commit      bool               `json:"commit,omitempty"`
	CommitText  string             `json:"commit_text,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// TraceID is the journal id the run was recorded under.
	TraceID string `json:"trace_id"`

	// Trace contains every keystroke in order, read back from the journal.
	Trace []TraceEvent `json:"trace"`

	// Composition is the composing text left after the last step.
	Composition string `json:"composition"`

	// Commits lists committed texts in order.
	Commits []string `json:"commits"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Commits: []string{},
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

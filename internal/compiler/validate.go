package compiler

import (
	"fmt"
	"strings"
)

// Validation error codes (E100-E199).
const (
	ErrNameEmpty         = "E101" // keyboard name is required
	ErrNoRules           = "E102" // at least one rule is required
	ErrEmptyPattern      = "E103" // rule without a left side
	ErrInvalidToken      = "E104" // token does not parse
	ErrDuplicateName     = "E105" // variable declared twice
	ErrUndefinedVariable = "E106" // variable used before declaration
	ErrInvalidHotkey     = "E107" // hotkey text does not parse
	ErrInvalidIcon       = "E108" // icon is not base64
	ErrWrongSide         = "E109" // token not allowed on this side of a rule
	ErrInvalidRule       = "E110" // rule rejected by the engine
)

// ValidationError is one problem found in a layout source.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors is every problem found in one source.
type ValidationErrors []ValidationError

func (es ValidationErrors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks a source without producing a layout. It reports all
// problems, not just the first.
func Validate(src *Source) ValidationErrors {
	_, errs := build(src)
	return errs
}

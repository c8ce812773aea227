package engine

import (
	"errors"
	"fmt"
)

// ErrNoKeyboard is returned when an engine is requested without a layout.
var ErrNoKeyboard = errors.New("engine: no keyboard loaded")

// RuleError reports a rule that cannot be compiled into a pattern.
//
// Layouts read through km2.Load are already validated, so RuleError mostly
// surfaces for layouts assembled in memory.
type RuleError struct {
	// Code identifies the error category.
	Code RuleErrorCode

	// Rule is the 0-based declaration index of the offending rule.
	Rule int

	// Message is a human-readable description.
	Message string
}

// RuleErrorCode categorizes rule compilation errors.
type RuleErrorCode string

const (
	// ErrCodeVariableRange indicates a variable index outside the string table.
	ErrCodeVariableRange RuleErrorCode = "VARIABLE_OUT_OF_RANGE"

	// ErrCodeKeyOutsideCombo indicates a virtual key not preceded by AND.
	ErrCodeKeyOutsideCombo RuleErrorCode = "KEY_OUTSIDE_COMBO"

	// ErrCodeInvalidElement indicates an opcode that has no meaning on its side.
	ErrCodeInvalidElement RuleErrorCode = "INVALID_ELEMENT"
)

// Error implements the error interface.
func (e *RuleError) Error() string {
	return fmt.Sprintf("%s: rule %d: %s", e.Code, e.Rule, e.Message)
}

// IsRuleError returns true if err is or wraps a *RuleError.
func IsRuleError(err error) bool {
	var re *RuleError
	return errors.As(err, &re)
}

func newRuleError(code RuleErrorCode, rule int, format string, args ...any) *RuleError {
	return &RuleError{Code: code, Rule: rule, Message: fmt.Sprintf(format, args...)}
}

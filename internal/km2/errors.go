package km2

import (
	"errors"
	"fmt"
)

// LoadError describes why a KM2 file could not be loaded.
//
// Every failure the loader can detect maps to one of three codes:
//   - Truncated: the data ended before a declared section did
//   - UnsupportedVersion: the header declares a version this loader rejects
//   - Malformed: bad magic, invalid UTF-16/UTF-8, unknown opcode, or a rule
//     that violates the element grammar
type LoadError struct {
	// Code identifies the error category.
	Code LoadErrorCode

	// Section names the part of the file being read ("header", "strings",
	// "info", "rules").
	Section string

	// Offset is the byte offset at which the problem was detected.
	Offset int

	// Message is a human-readable description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// LoadErrorCode categorizes load failures.
type LoadErrorCode string

const (
	ErrCodeTruncated          LoadErrorCode = "TRUNCATED"
	ErrCodeUnsupportedVersion LoadErrorCode = "UNSUPPORTED_VERSION"
	ErrCodeMalformed          LoadErrorCode = "MALFORMED"
)

// Error implements the error interface.
func (e *LoadError) Error() string {
	msg := fmt.Sprintf("km2 %s: %s at offset %d", e.Code, e.Message, e.Offset)
	if e.Section != "" {
		msg = fmt.Sprintf("km2 %s: %s: %s at offset %d", e.Code, e.Section, e.Message, e.Offset)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// IsTruncated reports whether err is a truncated-file load error.
func IsTruncated(err error) bool {
	return hasCode(err, ErrCodeTruncated)
}

// IsUnsupportedVersion reports whether err is an unsupported-version load error.
func IsUnsupportedVersion(err error) bool {
	return hasCode(err, ErrCodeUnsupportedVersion)
}

// IsMalformed reports whether err is a malformed-file load error.
func IsMalformed(err error) bool {
	return hasCode(err, ErrCodeMalformed)
}

// IsLoadError reports whether err is any KM2 load error.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

func hasCode(err error, code LoadErrorCode) bool {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code == code
	}
	return false
}

func truncated(section string, offset int, what string) *LoadError {
	return &LoadError{
		Code:    ErrCodeTruncated,
		Section: section,
		Offset:  offset,
		Message: "unexpected end of data reading " + what,
	}
}

func malformed(section string, offset int, format string, args ...any) *LoadError {
	return &LoadError{
		Code:    ErrCodeMalformed,
		Section: section,
		Offset:  offset,
		Message: fmt.Sprintf(format, args...),
	}
}

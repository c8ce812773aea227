package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/keymagic/keymagic/internal/compiler"
	"github.com/keymagic/keymagic/internal/harness"
	"github.com/keymagic/keymagic/internal/km2"
)

// Keyboard is a keyboard loaded for a command: the KM2 image a session
// will run and the decoded layout.
type Keyboard struct {
	Path     string
	Image    []byte
	Layout   *km2.Layout
	Compiled bool // built from a layout source rather than read from a .km2
}

// LoadError represents an error that occurred while loading a keyboard.
type LoadError struct {
	Code    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// ExitCode is the process exit code for the failure: a missing file is a
// command error, a file that does not load is a failed check.
func (e *LoadError) ExitCode() int {
	if e.Code == ErrCodeNotFound {
		return ExitCommandError
	}
	return ExitFailure
}

// IsLayoutSource reports whether path names a layout source rather than a
// compiled keyboard.
func IsLayoutSource(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".kms", ".yaml", ".yml", ".cue":
		return true
	}
	return false
}

// LoadKeyboard reads a .km2 file or compiles a layout source. Failures are
// returned as *LoadError.
func LoadKeyboard(path string) (*Keyboard, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("keyboard not found: %s", path), Err: err}
		}
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing keyboard: %v", err), Err: err}
	}
	if info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a keyboard file: %s", path)}
	}

	image, err := harness.LoadKeyboard(path)
	if err != nil {
		return nil, &LoadError{Code: loadErrorCode(err), Message: err.Error(), Err: err}
	}
	layout, err := km2.Load(image)
	if err != nil {
		return nil, &LoadError{Code: loadErrorCode(err), Message: err.Error(), Err: err}
	}

	return &Keyboard{
		Path:     path,
		Image:    image,
		Layout:   layout,
		Compiled: IsLayoutSource(path),
	}, nil
}

// loadErrorCode maps a load failure to its CLI error code.
func loadErrorCode(err error) string {
	var (
		verrs compiler.ValidationErrors
		cerr  *compiler.CompileError
	)
	switch {
	case km2.IsTruncated(err):
		return ErrCodeTruncated
	case km2.IsUnsupportedVersion(err):
		return ErrCodeUnsupportedVersion
	case km2.IsMalformed(err):
		return ErrCodeMalformed
	case errors.As(err, &verrs), errors.As(err, &cerr):
		return ErrCodeBuildFailed
	}
	return ErrCodeLoadFailed
}

// outputLoadError reports a LoadKeyboard failure and returns the exit error.
func outputLoadError(f *OutputFormatter, err error) error {
	var le *LoadError
	if errors.As(err, &le) {
		return f.Fail(le.ExitCode(), le.Code, le.Message, nil)
	}
	return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
}

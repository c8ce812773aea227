package session

import (
	"errors"
	"io/fs"

	"github.com/keymagic/keymagic/internal/composition"
	"github.com/keymagic/keymagic/internal/engine"
	"github.com/keymagic/keymagic/internal/km2"
)

var (
	// ErrNoKeyboard is returned when a session processes keys before a
	// successful load.
	ErrNoKeyboard = engine.ErrNoKeyboard

	// ErrInvalidHandle is returned for freed, unknown or mistyped handles.
	ErrInvalidHandle = errors.New("session: invalid handle")

	// ErrClosed is returned by a session after Close.
	ErrClosed = errors.New("session: closed")
)

// Status is the integer result code of every handle-based operation.
type Status int

const (
	Success          Status = 0
	InvalidHandle    Status = -1
	InvalidParameter Status = -2
	EngineFailure    Status = -3
	Utf8Conversion   Status = -4
	NoKeyboard       Status = -5
	FileNotFound     Status = -6
	InvalidFormat    Status = -7
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case InvalidHandle:
		return "invalid handle"
	case InvalidParameter:
		return "invalid parameter"
	case EngineFailure:
		return "engine failure"
	case Utf8Conversion:
		return "invalid UTF-8"
	case NoKeyboard:
		return "no keyboard loaded"
	case FileNotFound:
		return "file not found"
	case InvalidFormat:
		return "invalid keyboard format"
	}
	return "unknown status"
}

// StatusOf maps an error from this package or its dependencies to a Status.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, ErrInvalidHandle), errors.Is(err, ErrClosed):
		return InvalidHandle
	case errors.Is(err, ErrNoKeyboard):
		return NoKeyboard
	case errors.Is(err, composition.ErrInvalidText):
		return Utf8Conversion
	case errors.Is(err, fs.ErrNotExist):
		return FileNotFound
	case km2.IsLoadError(err), engine.IsRuleError(err):
		return InvalidFormat
	}
	return EngineFailure
}

package main

import (
	"log/slog"
	"math"
	"os"
	"unicode/utf8"

	"github.com/keymagic/keymagic/internal/composition"
	"github.com/keymagic/keymagic/internal/engine"
	"github.com/keymagic/keymagic/internal/logging"
	"github.com/keymagic/keymagic/internal/session"
	"github.com/keymagic/keymagic/internal/vk"
)

// Action codes of the C output struct.
const (
	actionNone                = 0
	actionInsert              = 1
	actionDeleteBack          = 2
	actionDeleteBackAndInsert = 3
)

// logEnv names the variable that turns on library logging, e.g.
// KEYMAGIC_LOG=debug. Logs go to stderr as JSON.
const logEnv = "KEYMAGIC_LOG"

// registry owns every engine and keyboard-file handle given to C callers.
// Hosts commit text themselves, so sessions never auto-commit.
var registry = session.NewRegistry(
	session.WithCommitPolicy(session.NeverCommit),
	session.WithLogger(hostLogger(os.Getenv(logEnv))),
)

func hostLogger(level string) *slog.Logger {
	if level == "" {
		return logging.Discard()
	}
	lvl, err := logging.ParseLevel(level)
	if err != nil {
		return logging.Discard()
	}
	return logging.New(logging.Config{
		Level:     lvl,
		Format:    logging.FormatJSON,
		Component: "libkeymagic",
	})
}

func actionCode(k composition.Kind) int {
	switch k {
	case composition.Insert:
		return actionInsert
	case composition.DeleteBack:
		return actionDeleteBack
	case composition.DeleteBackAndInsert:
		return actionDeleteBackAndInsert
	}
	return actionNone
}

// character converts a C code point. Zero means the key produced no
// character.
func character(c uint32) (rune, session.Status) {
	if c == 0 {
		return 0, session.Success
	}
	if c > math.MaxInt32 || !utf8.ValidRune(rune(c)) {
		return 0, session.Utf8Conversion
	}
	return rune(c), session.Success
}

func modifiers(shift, ctrl, alt, capsLock int) engine.Modifiers {
	return engine.Modifiers{
		Shift:    shift != 0,
		Ctrl:     ctrl != 0,
		Alt:      alt != 0,
		CapsLock: capsLock != 0,
	}
}

// keyEvent builds an event from a virtual key (0 for none) and a character.
// Keys outside the virtual-key table become characterless events, so the
// host passes them through.
func keyEvent(key int, codepoint uint32, mods engine.Modifiers) (engine.KeyEvent, session.Status) {
	r, st := character(codepoint)
	if st != session.Success {
		return engine.KeyEvent{}, st
	}
	if key < 0 || key > math.MaxUint16 || (key != 0 && !vk.Key(key).Valid()) {
		return engine.KeyEvent{Modifiers: mods}, session.Success
	}
	return engine.KeyEvent{Key: vk.Key(key), Char: r, Modifiers: mods}, session.Success
}

// winKey narrows a Windows VK code. Out-of-range codes become 0, which maps
// to no virtual key.
func winKey(code int) uint16 {
	if code <= 0 || code > math.MaxUint16 {
		return 0
	}
	return uint16(code)
}

package engine

import (
	"strings"
	"unicode"

	"github.com/keymagic/keymagic/internal/composition"
	"github.com/keymagic/keymagic/internal/vk"
)

// Modifiers is the modifier state carried by a key event.
type Modifiers struct {
	Shift    bool `json:"shift,omitempty" yaml:"shift,omitempty"`
	Ctrl     bool `json:"ctrl,omitempty" yaml:"ctrl,omitempty"`
	Alt      bool `json:"alt,omitempty" yaml:"alt,omitempty"`
	CapsLock bool `json:"caps_lock,omitempty" yaml:"caps_lock,omitempty"`
}

func (m Modifiers) String() string {
	var parts []string
	if m.Ctrl {
		parts = append(parts, "CTRL")
	}
	if m.Alt {
		parts = append(parts, "ALT")
	}
	if m.Shift {
		parts = append(parts, "SHIFT")
	}
	if m.CapsLock {
		parts = append(parts, "CAPS")
	}
	return strings.Join(parts, "+")
}

// KeyEvent is one keystroke as delivered by the host. Char is the character
// the host's keyboard would have produced, or 0 for none.
type KeyEvent struct {
	Key       vk.Key    `json:"key,omitempty" yaml:"key,omitempty"`
	Char      rune      `json:"char,omitempty" yaml:"char,omitempty"`
	Modifiers Modifiers `json:"modifiers" yaml:"modifiers,omitempty"`
}

// CharEvent is a keystroke that only produces r.
func CharEvent(r rune) KeyEvent {
	return KeyEvent{Char: r}
}

// KeyOnly is a keystroke with no character.
func KeyOnly(k vk.Key, mods Modifiers) KeyEvent {
	return KeyEvent{Key: k, Modifiers: mods}
}

func (ev KeyEvent) String() string {
	var sb strings.Builder
	if m := ev.Modifiers.String(); m != "" {
		sb.WriteString(m)
		sb.WriteByte('+')
	}
	if ev.Key.Valid() {
		sb.WriteString(ev.Key.String())
	} else {
		sb.WriteString("VK_UNKNOWN")
	}
	if ev.Char != 0 {
		sb.WriteString(" '")
		sb.WriteRune(ev.Char)
		sb.WriteByte('\'')
	}
	return sb.String()
}

// normalize turns an event whose key lies outside the virtual-key table into
// a characterless event that matches no rule.
func (ev KeyEvent) normalize() KeyEvent {
	if ev.Key != 0 && !ev.Key.Valid() {
		return KeyEvent{Modifiers: ev.Modifiers}
	}
	return ev
}

// printable reports whether the event carries a character that can enter
// the composition. Control characters hosts attach to Return, Tab or Escape
// do not.
func (ev KeyEvent) printable() bool {
	return ev.Char > 0 && !unicode.IsControl(ev.Char)
}

// Output is the result of processing one key.
type Output struct {
	// Action tells the host how to edit its copy of the composing text.
	Action composition.Action `json:"action"`

	// Composition is the full composing text after the key.
	Composition string `json:"composition"`

	// Consumed reports whether the host should swallow the key.
	Consumed bool `json:"consumed"`

	// Rule is the 1-based declaration number of the rule that matched the
	// key, or 0 when the fallback handled it.
	Rule int `json:"rule,omitempty"`
}

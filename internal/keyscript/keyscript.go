// Package keyscript reads and writes the compact keystroke notation used by
// scenarios and the command line.
//
// Plain characters are typed as a US keyboard would produce them, so "A"
// becomes VK_KEY_A with Shift held and the character 'A'. Keys without a
// printable character, or chords, go in angle brackets:
//
//	ka<VK_BACK>		k, a, backspace
//	<SHIFT+VK_KEY_A>	same event as "A"
//	<CTRL+ALT+VK_KEY_Q>	chord, no character
//	\<			a literal '<'
//
// Characters outside ASCII carry no virtual key.
package keyscript

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/keymagic/keymagic/internal/engine"
	"github.com/keymagic/keymagic/internal/vk"
)

// ErrSyntax is wrapped by every parse error.
var ErrSyntax = errors.New("keyscript: syntax error")

// SyntaxError reports where a script went wrong. Offset is a byte offset.
type SyntaxError struct {
	Offset  int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("keyscript: offset %d: %s", e.Offset, e.Message)
}

func (e *SyntaxError) Unwrap() error { return ErrSyntax }

// Parse turns a script into key events.
func Parse(script string) ([]engine.KeyEvent, error) {
	var out []engine.KeyEvent
	for i := 0; i < len(script); {
		r, size := utf8.DecodeRuneInString(script[i:])
		if r == utf8.RuneError && size == 1 {
			return nil, &SyntaxError{Offset: i, Message: "invalid UTF-8"}
		}
		switch r {
		case '\\':
			if i+size >= len(script) {
				return nil, &SyntaxError{Offset: i, Message: "dangling escape"}
			}
			next, n := utf8.DecodeRuneInString(script[i+size:])
			out = append(out, Char(next))
			i += size + n
		case '<':
			end := strings.IndexByte(script[i:], '>')
			if end < 0 {
				return nil, &SyntaxError{Offset: i, Message: "unterminated '<'"}
			}
			ev, err := parseChord(script[i+1 : i+end])
			if err != nil {
				return nil, &SyntaxError{Offset: i, Message: err.Error()}
			}
			out = append(out, ev)
			i += end + 1
		default:
			out = append(out, Char(r))
			i += size
		}
	}
	return out, nil
}

// MustParse is Parse for scripts known to be valid.
func MustParse(script string) []engine.KeyEvent {
	evs, err := Parse(script)
	if err != nil {
		panic(err)
	}
	return evs
}

// Char is the event a US keyboard sends when r is typed.
func Char(r rune) engine.KeyEvent {
	if p, ok := usChars[r]; ok {
		return engine.KeyEvent{Key: p.key, Char: r, Modifiers: engine.Modifiers{Shift: p.shift}}
	}
	return engine.CharEvent(r)
}

func parseChord(body string) (engine.KeyEvent, error) {
	var ev engine.KeyEvent
	tokens := strings.Split(body, "+")
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		switch strings.ToUpper(tok) {
		case "":
			return ev, errors.New("empty key name")
		case "SHIFT":
			ev.Modifiers.Shift = true
		case "CTRL", "CONTROL":
			ev.Modifiers.Ctrl = true
		case "ALT":
			ev.Modifiers.Alt = true
		case "CAPS", "CAPSLOCK":
			ev.Modifiers.CapsLock = true
		default:
			if ev.Key != 0 {
				return ev, fmt.Errorf("more than one key in <%s>", body)
			}
			k, ok := vk.Parse(tok)
			if !ok {
				return ev, fmt.Errorf("unknown key %q", tok)
			}
			ev.Key = k
		}
	}
	if ev.Key == 0 {
		return ev, fmt.Errorf("no key in <%s>", body)
	}
	if !ev.Modifiers.Ctrl && !ev.Modifiers.Alt {
		ev.Char = charFor(ev.Key, ev.Modifiers.Shift, ev.Modifiers.CapsLock)
	}
	return ev, nil
}

// Format renders events back into script form. Parse(Format(evs)) yields
// evs for any events Parse produced.
func Format(evs []engine.KeyEvent) string {
	var sb strings.Builder
	for _, ev := range evs {
		sb.WriteString(FormatEvent(ev))
	}
	return sb.String()
}

// FormatEvent renders a single event.
func FormatEvent(ev engine.KeyEvent) string {
	if ev.Char > 0 && ev == Char(ev.Char) {
		switch ev.Char {
		case '<', '\\':
			return `\` + string(ev.Char)
		}
		return string(ev.Char)
	}
	var sb strings.Builder
	sb.WriteByte('<')
	if m := ev.Modifiers.String(); m != "" {
		sb.WriteString(m)
		sb.WriteByte('+')
	}
	sb.WriteString(ev.Key.String())
	sb.WriteByte('>')
	return sb.String()
}

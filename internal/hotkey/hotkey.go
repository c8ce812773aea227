// Package hotkey parses the keyboard-switching hotkey stored in a layout's
// info section, e.g. "CTRL+SHIFT+M" or "ctrl shift m".
package hotkey

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/keymagic/keymagic/internal/vk"
)

var (
	// ErrNoKey means the text names only modifiers.
	ErrNoKey = errors.New("hotkey: no key specified")

	// ErrMultipleKeys means the text names more than one non-modifier key.
	ErrMultipleKeys = errors.New("hotkey: multiple keys specified")

	// ErrUnknownToken means a token is neither a modifier nor a known key.
	ErrUnknownToken = errors.New("hotkey: unknown token")
)

// Binding is a parsed hotkey: one key plus modifier flags.
type Binding struct {
	Key   vk.Key `json:"key"`
	Ctrl  bool   `json:"ctrl,omitempty"`
	Alt   bool   `json:"alt,omitempty"`
	Shift bool   `json:"shift,omitempty"`
	Meta  bool   `json:"meta,omitempty"`
}

// Parse reads a hotkey. Tokens are separated by '+' or spaces and compared
// case-insensitively. Empty or blank text yields (nil, nil): the layout has
// no hotkey.
func Parse(text string) (*Binding, error) {
	tokens := strings.FieldsFunc(strings.ToUpper(text), func(r rune) bool {
		return r == '+' || r == ' ' || r == '\t'
	})
	if len(tokens) == 0 {
		if strings.TrimSpace(text) == "" {
			return nil, nil
		}
		return nil, ErrNoKey
	}

	var b Binding
	for _, tok := range tokens {
		switch tok {
		case "CTRL", "CONTROL":
			b.Ctrl = true
		case "ALT", "OPTION":
			b.Alt = true
		case "SHIFT":
			b.Shift = true
		case "META", "CMD", "COMMAND", "WIN", "SUPER":
			b.Meta = true
		default:
			if b.Key != 0 {
				return nil, fmt.Errorf("%w: %q after %s", ErrMultipleKeys, tok, keyName(b.Key))
			}
			k, ok := parseKey(tok)
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnknownToken, tok)
			}
			b.Key = k
		}
	}

	if b.Key == 0 {
		return nil, ErrNoKey
	}
	return &b, nil
}

// String renders the canonical form CTRL+ALT+SHIFT+META+KEY. Parse accepts
// everything String produces.
func (b *Binding) String() string {
	var parts []string
	if b.Ctrl {
		parts = append(parts, "CTRL")
	}
	if b.Alt {
		parts = append(parts, "ALT")
	}
	if b.Shift {
		parts = append(parts, "SHIFT")
	}
	if b.Meta {
		parts = append(parts, "META")
	}
	parts = append(parts, keyName(b.Key))
	return strings.Join(parts, "+")
}

var namedKeys = map[string]vk.Key{
	"SPACE":        vk.Space,
	"ENTER":        vk.Return,
	"RETURN":       vk.Return,
	"TAB":          vk.Tab,
	"BACKSPACE":    vk.Back,
	"BACK":         vk.Back,
	"DELETE":       vk.Delete,
	"DEL":          vk.Delete,
	"ESCAPE":       vk.Escape,
	"ESC":          vk.Escape,
	"CAPSLOCK":     vk.Capital,
	"CAPS":         vk.Capital,
	"PLUS":         vk.OemPlus,
	"=":            vk.OemPlus,
	"MINUS":        vk.OemMinus,
	"-":            vk.OemMinus,
	"COMMA":        vk.OemComma,
	",":            vk.OemComma,
	"PERIOD":       vk.OemPeriod,
	".":            vk.OemPeriod,
	"SEMICOLON":    vk.Oem1,
	";":            vk.Oem1,
	"SLASH":        vk.Oem2,
	"/":            vk.Oem2,
	"GRAVE":        vk.Oem3,
	"`":            vk.Oem3,
	"LEFTBRACKET":  vk.Oem4,
	"[":            vk.Oem4,
	"BACKSLASH":    vk.Oem5,
	"\\":           vk.Oem5,
	"RIGHTBRACKET": vk.Oem6,
	"]":            vk.Oem6,
	"QUOTE":        vk.Oem7,
	"'":            vk.Oem7,
}

// canonicalNames is the spelling String uses for keys that are not a
// letter, digit or function key.
var canonicalNames = map[vk.Key]string{
	vk.Space:     "SPACE",
	vk.Return:    "ENTER",
	vk.Tab:       "TAB",
	vk.Back:      "BACKSPACE",
	vk.Delete:    "DELETE",
	vk.Escape:    "ESCAPE",
	vk.Capital:   "CAPSLOCK",
	vk.OemPlus:   "=",
	vk.OemMinus:  "-",
	vk.OemComma:  ",",
	vk.OemPeriod: ".",
	vk.Oem1:      ";",
	vk.Oem2:      "/",
	vk.Oem3:      "`",
	vk.Oem4:      "[",
	vk.Oem5:      "\\",
	vk.Oem6:      "]",
	vk.Oem7:      "'",
}

func parseKey(tok string) (vk.Key, bool) {
	if len(tok) == 1 {
		c := tok[0]
		switch {
		case c >= 'A' && c <= 'Z':
			return vk.KeyA + vk.Key(c-'A'), true
		case c >= '0' && c <= '9':
			return vk.Key0 + vk.Key(c-'0'), true
		}
	}
	if k, ok := namedKeys[tok]; ok {
		return k, true
	}
	if rest, ok := strings.CutPrefix(tok, "F"); ok {
		n, err := strconv.Atoi(rest)
		if err == nil && n >= 1 && n <= 12 && rest == strconv.Itoa(n) {
			return vk.F1 + vk.Key(n-1), true
		}
	}
	return 0, false
}

func keyName(k vk.Key) string {
	switch {
	case k >= vk.KeyA && k <= vk.KeyZ:
		return string(rune('A' + (k - vk.KeyA)))
	case k >= vk.Key0 && k <= vk.Key9:
		return string(rune('0' + (k - vk.Key0)))
	case k >= vk.F1 && k <= vk.F12:
		return fmt.Sprintf("F%d", k-vk.F1+1)
	}
	if name, ok := canonicalNames[k]; ok {
		return name
	}
	return k.String()
}

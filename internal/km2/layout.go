package km2

import (
	"fmt"
	"strings"

	"github.com/keymagic/keymagic/internal/vk"
)

// Layout is a fully loaded keyboard. It is never mutated after Load returns
// and may be shared read-only between sessions.
type Layout struct {
	Version Version
	Options Options

	// Strings is the variable table. VARIABLE operands index it 1-based.
	Strings []string

	// Info holds the raw info entries in file order.
	Info []InfoEntry

	// Rules in declaration order.
	Rules []Rule
}

// Version is the header version pair.
type Version struct {
	Major uint8
	Minor uint8
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Options are the layout flags stored in the header.
type Options struct {
	TrackCaps              bool // distinguish caps-lock state
	SmartBackspace         bool // backspace restores the previous composition
	EatUnusedKeys          bool // swallow keys no rule matched
	USLayoutBased          bool // positional layout over a US keyboard
	TreatCtrlAltAsRightAlt bool // Ctrl+Alt behaves as AltGr
}

// DefaultOptions returns the option values assumed for a new layout.
func DefaultOptions() Options {
	return Options{TrackCaps: true, TreatCtrlAltAsRightAlt: true}
}

// InfoEntry is one tagged entry of the info section.
type InfoEntry struct {
	ID   [4]byte
	Data []byte
}

// Rule maps a left-hand pattern to a right-hand output.
type Rule struct {
	LHS []Element
	RHS []Element
}

// Element is one opcode with its operand. Text is set for OpString; Value
// carries the single operand of the other opcodes.
type Element struct {
	Op    Opcode
	Text  string
	Value uint16
}

// Element constructors.

func Str(s string) Element { return Element{Op: OpString, Text: s} }
func Var(index uint16) Element { return Element{Op: OpVariable, Value: index} }
func Ref(n uint16) Element { return Element{Op: OpReference, Value: n} }
func Predefined(k vk.Key) Element { return Element{Op: OpPredefined, Value: uint16(k)} }
func Mod(flag uint16) Element { return Element{Op: OpModifier, Value: flag} }
func And() Element { return Element{Op: OpAnd} }
func Any() Element { return Element{Op: OpAny} }
func Switch(state uint16) Element { return Element{Op: OpSwitch, Value: state} }
func AnyOf(index uint16) []Element { return []Element{Var(index), Mod(FlagAnyOf)} }
func NotAnyOf(index uint16) []Element { return []Element{Var(index), Mod(FlagNotAnyOf)} }

// Keys returns the element sequence AND k1 k2 ... for a key combination.
func Keys(keys ...vk.Key) []Element {
	out := make([]Element, 0, len(keys)+1)
	out = append(out, And())
	for _, k := range keys {
		out = append(out, Predefined(k))
	}
	return out
}

func (e Element) String() string {
	switch e.Op {
	case OpString:
		return fmt.Sprintf("%q", e.Text)
	case OpVariable:
		return fmt.Sprintf("$%d", e.Value)
	case OpReference:
		return fmt.Sprintf("$%d", e.Value)
	case OpPredefined:
		return vk.Key(e.Value).String()
	case OpModifier:
		switch e.Value {
		case FlagAnyOf:
			return "[*]"
		case FlagNotAnyOf:
			return "[^]"
		}
		return fmt.Sprintf("[$%d]", e.Value)
	case OpAnd:
		return "&"
	case OpAny:
		return "ANY"
	case OpSwitch:
		return fmt.Sprintf("('%d')", e.Value)
	}
	return e.Op.String()
}

// String renders a rule in a compact, KMS-like notation for diagnostics.
func (r Rule) String() string {
	return join(r.LHS) + " => " + join(r.RHS)
}

func join(elems []Element) string {
	parts := make([]string, len(elems))
	for i, e := range elems {
		parts[i] = e.String()
	}
	return strings.Join(parts, " ")
}

// Metadata is the descriptive part of a layout.
type Metadata struct {
	Name        string
	Description string
	FontFamily  string
	Hotkey      string
	Icon        []byte
}

// Metadata decodes the info entries. Entries with unknown ids are ignored.
func (l *Layout) Metadata() Metadata {
	return metadataFromInfo(l.Info)
}

func metadataFromInfo(entries []InfoEntry) Metadata {
	var md Metadata
	for _, e := range entries {
		switch canonicalInfoID(e.ID) {
		case InfoName:
			md.Name = string(e.Data)
		case InfoDescription:
			md.Description = string(e.Data)
		case InfoFont:
			md.FontFamily = string(e.Data)
		case InfoHotkey:
			md.Hotkey = string(e.Data)
		case InfoIcon:
			md.Icon = e.Data
		}
	}
	return md
}

// BaseKey is a rule that maps one key combination straight to text with no
// context, states or captures.
type BaseKey struct {
	Keys   []vk.Key
	Output string
}

// BaseKeys derives the base virtual-key table from the rule list. Hosts use
// it to preview what each physical key produces.
func (l *Layout) BaseKeys() []BaseKey {
	var out []BaseKey
	for _, r := range l.Rules {
		if len(r.LHS) < 2 || r.LHS[0].Op != OpAnd {
			continue
		}
		keys := make([]vk.Key, 0, len(r.LHS)-1)
		for _, e := range r.LHS[1:] {
			if e.Op != OpPredefined {
				keys = nil
				break
			}
			keys = append(keys, vk.Key(e.Value))
		}
		if keys == nil {
			continue
		}
		text, ok := plainText(r.RHS, l.Strings)
		if !ok {
			continue
		}
		out = append(out, BaseKey{Keys: keys, Output: text})
	}
	return out
}

// plainText concatenates an output made only of strings and whole variables.
func plainText(rhs []Element, strs []string) (string, bool) {
	var sb strings.Builder
	for i, e := range rhs {
		switch e.Op {
		case OpString:
			sb.WriteString(e.Text)
		case OpVariable:
			if i+1 < len(rhs) && rhs[i+1].Op == OpModifier {
				return "", false
			}
			if int(e.Value) < 1 || int(e.Value) > len(strs) {
				return "", false
			}
			sb.WriteString(strs[e.Value-1])
		default:
			return "", false
		}
	}
	return sb.String(), true
}

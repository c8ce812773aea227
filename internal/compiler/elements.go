package compiler

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/keymagic/keymagic/internal/engine"
	"github.com/keymagic/keymagic/internal/hotkey"
	"github.com/keymagic/keymagic/internal/km2"
	"github.com/keymagic/keymagic/internal/vk"
)

var (
	reVariable  = regexp.MustCompile(`^\$([A-Za-z_][A-Za-z0-9_]*)(?:\[(\*|\^|\$[0-9]+)\])?$`)
	reReference = regexp.MustCompile(`^\$([0-9]+)$`)
	reState     = regexp.MustCompile(`^\('([^']+)'\)$`)
	reCodePoint = regexp.MustCompile(`^[Uu]\+?([0-9A-Fa-f]{4,6})$`)
)

type side int

const (
	lhsSide side = iota
	rhsSide
)

func (s side) String() string {
	if s == lhsSide {
		return "lhs"
	}
	return "rhs"
}

// builder lowers a Source into a km2.Layout, collecting every error.
type builder struct {
	vars   map[string]uint16
	values []string
	states map[string]uint16
	errs   ValidationErrors
}

func (b *builder) fail(code, field string, line int, format string, args ...any) {
	b.errs = append(b.errs, ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
		Line:    line,
	})
}

func build(src *Source) (*km2.Layout, ValidationErrors) {
	b := &builder{
		vars:   make(map[string]uint16),
		states: make(map[string]uint16),
	}

	l := &km2.Layout{
		Version: km2.Version{Major: km2.MajorVersion, Minor: km2.MaxMinorVersion},
		Options: src.Options.resolve(),
	}

	if strings.TrimSpace(src.Name) == "" {
		b.fail(ErrNameEmpty, "name", 0, "keyboard name is required")
	}
	l.Info = b.info(src)

	for _, v := range src.Vars {
		b.declare(v)
	}
	l.Strings = b.values

	if len(src.Rules) == 0 {
		b.fail(ErrNoRules, "rules", 0, "at least one rule is required")
	}
	for i, r := range src.Rules {
		field := fmt.Sprintf("rules[%d]", i)
		if len(r.LHS) == 0 {
			b.fail(ErrEmptyPattern, field+".lhs", r.Line, "rule has no left side")
		}
		rule := km2.Rule{
			LHS: b.elements(r.LHS, lhsSide, field, r.Line),
			RHS: b.elements(r.RHS, rhsSide, field, r.Line),
		}
		l.Rules = append(l.Rules, rule)
	}

	if len(b.errs) > 0 {
		return nil, b.errs
	}

	if _, err := engine.New(l); err != nil {
		var re *engine.RuleError
		if errors.As(err, &re) {
			r := src.Rules[re.Rule]
			b.fail(ErrInvalidRule, fmt.Sprintf("rules[%d]", re.Rule), r.Line, "%s", re.Message)
		} else {
			b.fail(ErrInvalidRule, "rules", 0, "%v", err)
		}
		return nil, b.errs
	}
	return l, nil
}

func (o SourceOptions) resolve() km2.Options {
	opts := km2.DefaultOptions()
	set := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	set(&opts.TrackCaps, o.TrackCaps)
	set(&opts.SmartBackspace, o.SmartBackspace)
	set(&opts.EatUnusedKeys, o.EatUnusedKeys)
	set(&opts.USLayoutBased, o.USLayoutBased)
	set(&opts.TreatCtrlAltAsRightAlt, o.TreatCtrlAltAsRightAlt)
	return opts
}

func (b *builder) info(src *Source) []km2.InfoEntry {
	var out []km2.InfoEntry
	add := func(id [4]byte, text string) {
		if text != "" {
			out = append(out, km2.NewInfo(id, text))
		}
	}
	add(km2.InfoName, src.Name)
	add(km2.InfoDescription, src.Description)
	add(km2.InfoFont, src.Font)

	if src.Hotkey != "" {
		if _, err := hotkey.Parse(src.Hotkey); err != nil {
			b.fail(ErrInvalidHotkey, "hotkey", 0, "%v", err)
		}
		add(km2.InfoHotkey, src.Hotkey)
	}

	if src.Icon != "" {
		icon, err := base64.StdEncoding.DecodeString(src.Icon)
		if err != nil {
			b.fail(ErrInvalidIcon, "icon", 0, "%v", err)
		} else {
			out = append(out, km2.InfoEntry{ID: km2.InfoIcon, Data: icon})
		}
	}
	return out
}

// declare evaluates a variable's tokens and appends it to the table.
func (b *builder) declare(v Var) {
	field := "vars." + v.Name
	if _, dup := b.vars[v.Name]; dup {
		b.fail(ErrDuplicateName, field, v.Line, "variable %q already declared", v.Name)
		return
	}
	if !reVariable.MatchString("$" + v.Name) {
		b.fail(ErrInvalidToken, field, v.Line, "invalid variable name %q", v.Name)
		return
	}

	var sb strings.Builder
	for _, tok := range v.Value {
		if m := reVariable.FindStringSubmatch(tok); m != nil && m[2] == "" {
			idx, ok := b.vars[m[1]]
			if !ok {
				b.fail(ErrUndefinedVariable, field, v.Line, "variable %q is not declared before use", m[1])
				continue
			}
			sb.WriteString(b.values[idx-1])
			continue
		}
		if text, ok := b.literal(tok, field, v.Line); ok {
			sb.WriteString(text)
		}
	}

	if len(b.values) == math.MaxUint16 {
		b.fail(ErrInvalidToken, field, v.Line, "too many variables")
		return
	}
	b.values = append(b.values, sb.String())
	b.vars[v.Name] = uint16(len(b.values))
}

// literal resolves text tokens: escapes, code points and plain text.
func (b *builder) literal(tok, field string, line int) (string, bool) {
	switch {
	case tok == "":
		b.fail(ErrInvalidToken, field, line, "empty token")
		return "", false
	case strings.HasPrefix(tok, `\`):
		if len(tok) == 1 {
			b.fail(ErrInvalidToken, field, line, "dangling escape")
			return "", false
		}
		return tok[1:], true
	}

	if m := reCodePoint.FindStringSubmatch(tok); m != nil {
		n, _ := strconv.ParseUint(m[1], 16, 32)
		r := rune(n)
		if !utf8.ValidRune(r) {
			b.fail(ErrInvalidToken, field, line, "%s is not a Unicode scalar value", tok)
			return "", false
		}
		return string(r), true
	}

	if strings.HasPrefix(tok, "$") || strings.HasPrefix(tok, "<") || strings.HasPrefix(tok, "('") {
		b.fail(ErrInvalidToken, field, line, "malformed token %q", tok)
		return "", false
	}
	return tok, true
}

func (b *builder) elements(tokens []string, s side, field string, line int) []km2.Element {
	field = field + "." + s.String()
	var out []km2.Element
	for _, tok := range tokens {
		out = append(out, b.element(tok, s, field, line)...)
	}
	return out
}

func (b *builder) element(tok string, s side, field string, line int) []km2.Element {
	wrongSide := func() []km2.Element {
		b.fail(ErrWrongSide, field, line, "%q is not allowed on the %s", tok, s)
		return nil
	}

	switch tok {
	case "ANY":
		if s != lhsSide {
			return wrongSide()
		}
		return []km2.Element{km2.Any()}
	case "NULL":
		if s != rhsSide {
			return wrongSide()
		}
		return []km2.Element{km2.Predefined(vk.Null)}
	}

	if m := reReference.FindStringSubmatch(tok); m != nil {
		if s != rhsSide {
			return wrongSide()
		}
		n, ok := refIndex(m[1])
		if !ok {
			b.fail(ErrInvalidToken, field, line, "reference %s out of range", tok)
			return nil
		}
		return []km2.Element{km2.Ref(n)}
	}

	if m := reVariable.FindStringSubmatch(tok); m != nil {
		idx, ok := b.vars[m[1]]
		if !ok {
			b.fail(ErrUndefinedVariable, field, line, "undefined variable $%s", m[1])
			return nil
		}
		switch mod := m[2]; {
		case mod == "":
			return []km2.Element{km2.Var(idx)}
		case mod == "*" || mod == "^":
			if s != lhsSide {
				return wrongSide()
			}
			if mod == "*" {
				return km2.AnyOf(idx)
			}
			return km2.NotAnyOf(idx)
		default:
			if s != rhsSide {
				return wrongSide()
			}
			n, ok := refIndex(mod[1:])
			if !ok {
				b.fail(ErrInvalidToken, field, line, "reference %s out of range", mod)
				return nil
			}
			return []km2.Element{km2.Var(idx), km2.Mod(n)}
		}
	}

	if m := reState.FindStringSubmatch(tok); m != nil {
		return []km2.Element{km2.Switch(b.state(m[1]))}
	}

	if strings.HasPrefix(tok, "<") && strings.HasSuffix(tok, ">") {
		if s != lhsSide {
			return wrongSide()
		}
		return b.combo(tok, field, line)
	}

	text, ok := b.literal(tok, field, line)
	if !ok {
		return nil
	}
	return []km2.Element{km2.Str(text)}
}

// state returns the index of a named switch state, assigning the next free
// index on first use.
func (b *builder) state(name string) uint16 {
	if idx, ok := b.states[name]; ok {
		return idx
	}
	idx := uint16(len(b.states))
	b.states[name] = idx
	return idx
}

// combo parses "<VK_SHIFT & VK_KEY_A>". '+' is accepted as a separator too.
func (b *builder) combo(tok, field string, line int) []km2.Element {
	names := strings.FieldsFunc(tok[1:len(tok)-1], func(r rune) bool {
		return r == '&' || r == '+' || r == ' '
	})
	if len(names) == 0 {
		b.fail(ErrInvalidToken, field, line, "empty key combination %q", tok)
		return nil
	}

	keys := make([]vk.Key, 0, len(names))
	primaries := 0
	for _, n := range names {
		k, ok := vk.Parse(n)
		if !ok || k == vk.Null {
			b.fail(ErrInvalidToken, field, line, "unknown virtual key %q", n)
			return nil
		}
		if !k.IsModifier() {
			primaries++
		}
		keys = append(keys, k)
	}
	if primaries != 1 {
		b.fail(ErrInvalidToken, field, line, "%s must name exactly one non-modifier key", tok)
		return nil
	}
	return km2.Keys(keys...)
}

func refIndex(digits string) (uint16, bool) {
	n, err := strconv.ParseUint(digits, 10, 16)
	if err != nil || n == 0 {
		return 0, false
	}
	idx := uint16(n)
	if idx == km2.FlagAnyOf || idx == km2.FlagNotAnyOf {
		return 0, false
	}
	return idx, true
}

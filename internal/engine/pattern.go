package engine

import (
	"unicode/utf8"

	"github.com/keymagic/keymagic/internal/km2"
	"github.com/keymagic/keymagic/internal/vk"
)

type segmentKind uint8

const (
	segLiteral   segmentKind = iota // fixed text
	segVariable                     // whole variable content
	segAnyOf                        // one scalar from a variable
	segNotAnyOf                     // one scalar not in a variable
	segAny                          // one printable ASCII scalar
	segKeys                         // AND group of virtual keys
	segState                        // switch state condition
)

// segment is one compiled LHS condition. text holds literal or variable
// content; combo and state are set for their kinds only.
type segment struct {
	kind  segmentKind
	text  []rune
	state int
	combo keyCombo
}

// width is the number of scalars the segment consumes.
func (s segment) width() int {
	switch s.kind {
	case segLiteral, segVariable:
		return len(s.text)
	case segAnyOf, segNotAnyOf, segAny:
		return 1
	}
	return 0
}

// keyCombo is one AND group. It names exactly one non-modifier key in a
// usable rule; the modifier keys become exact requirements.
type keyCombo struct {
	key       vk.Key
	primaries int
	keys      int
	shift     bool
	ctrl      bool
	alt       bool
	rightAlt  bool // names VK_RMENU
}

func (c keyCombo) valid() bool {
	return c.primaries == 1
}

// pattern is a rule compiled for matching.
type pattern struct {
	index    int // 0-based declaration order
	segments []segment
	rhs      []km2.Element

	length   int // scalars consumed from the end of the text
	states   int
	keys     int
	hasCombo bool
	matches  bool // false for rules that can never fire
}

// textOnly reports whether the pattern can run without key input.
func (p *pattern) textOnly() bool {
	return !p.hasCombo
}

func compilePattern(index int, r km2.Rule, vars [][]rune) (*pattern, error) {
	p := &pattern{index: index, rhs: r.RHS, matches: true}

	lhs := r.LHS
	for i := 0; i < len(lhs); i++ {
		e := lhs[i]
		switch e.Op {
		case km2.OpString:
			text := []rune(e.Text)
			p.segments = append(p.segments, segment{kind: segLiteral, text: text})

		case km2.OpVariable:
			content, err := variable(index, e.Value, vars)
			if err != nil {
				return nil, err
			}
			kind := segVariable
			if i+1 < len(lhs) && lhs[i+1].Op == km2.OpModifier {
				switch lhs[i+1].Value {
				case km2.FlagAnyOf:
					kind = segAnyOf
					i++
				case km2.FlagNotAnyOf:
					kind = segNotAnyOf
					i++
				}
			}
			p.segments = append(p.segments, segment{kind: kind, text: content})

		case km2.OpAny:
			p.segments = append(p.segments, segment{kind: segAny})

		case km2.OpSwitch:
			p.segments = append(p.segments, segment{kind: segState, state: int(e.Value)})
			p.states++

		case km2.OpAnd:
			var combo keyCombo
			for i+1 < len(lhs) && lhs[i+1].Op == km2.OpPredefined {
				i++
				combo.add(vk.Key(lhs[i].Value))
			}
			if combo.keys == 0 {
				continue
			}
			if !combo.valid() {
				p.matches = false
			}
			p.segments = append(p.segments, segment{kind: segKeys, combo: combo})
			p.keys += combo.keys
			p.hasCombo = true

		case km2.OpPredefined:
			return nil, newRuleError(ErrCodeKeyOutsideCombo, index, "virtual key %s outside an AND group", vk.Key(e.Value))

		case km2.OpModifier:
			// A modifier not attached to a variable carries no condition.

		default:
			return nil, newRuleError(ErrCodeInvalidElement, index, "%s is not valid in a pattern", e.Op)
		}
	}

	for _, s := range p.segments {
		p.length += s.width()
	}

	if err := checkOutput(index, r.RHS, vars); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *keyCombo) add(k vk.Key) {
	c.keys++
	switch k.Modifier() {
	case vk.ShiftModifier:
		c.shift = true
	case vk.CtrlModifier:
		c.ctrl = true
	case vk.AltModifier:
		c.alt = true
		if k == vk.RMenu {
			c.rightAlt = true
		}
	default:
		c.key = k
		c.primaries++
	}
}

func variable(rule int, index uint16, vars [][]rune) ([]rune, error) {
	if index == 0 || int(index) > len(vars) {
		return nil, newRuleError(ErrCodeVariableRange, rule, "variable $%d out of range 1..%d", index, len(vars))
	}
	return vars[index-1], nil
}

func checkOutput(rule int, rhs []km2.Element, vars [][]rune) error {
	for _, e := range rhs {
		switch e.Op {
		case km2.OpVariable:
			if _, err := variable(rule, e.Value, vars); err != nil {
				return err
			}
		case km2.OpAnd, km2.OpAny:
			return newRuleError(ErrCodeInvalidElement, rule, "%s is not valid in an output", e.Op)
		}
	}
	return nil
}

// isPrintableASCII reports whether r is in '!'..'~'.
func isPrintableASCII(r rune) bool {
	return r >= '!' && r <= '~'
}

// stopsRecursion reports whether an output ends recursive rule application:
// an empty output or a single printable ASCII character.
func stopsRecursion(out string) bool {
	if out == "" {
		return true
	}
	r, n := utf8.DecodeRuneInString(out)
	return n == len(out) && isPrintableASCII(r)
}

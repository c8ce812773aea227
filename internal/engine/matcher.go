package engine

import (
	"slices"

	"github.com/keymagic/keymagic/internal/composition"
	"github.com/keymagic/keymagic/internal/km2"
)

// capture is the text one pattern segment consumed. index is the position of
// an AnyOf match inside its variable and -1 for every other segment.
type capture struct {
	text  string
	index int
}

// matchContext is what a pattern is evaluated against. ev is nil while rules
// are re-applied recursively.
type matchContext struct {
	buffer   []rune
	withChar []rune // buffer plus the typed character; nil without one
	ev       *KeyEvent
	buf      *composition.Buffer
	opts     km2.Options
}

// match evaluates p against the context and returns the captures of its text
// segments, numbered from $1 in pattern order.
func (p *pattern) match(mc *matchContext) ([]capture, bool) {
	if !p.matches {
		return nil, false
	}

	var text []rune
	switch {
	case p.hasCombo:
		if mc.ev == nil {
			return nil, false
		}
		text = mc.buffer
	case mc.ev != nil:
		if mc.withChar == nil {
			return nil, false
		}
		text = mc.withChar
	default:
		text = mc.buffer
	}

	if len(text) < p.length {
		return nil, false
	}

	pos := len(text) - p.length
	var caps []capture
	for _, s := range p.segments {
		switch s.kind {
		case segState:
			if !mc.buf.HasState(s.state) {
				return nil, false
			}

		case segKeys:
			if !s.combo.matches(mc.ev, mc.opts) {
				return nil, false
			}

		case segLiteral, segVariable:
			n := len(s.text)
			if !slices.Equal(text[pos:pos+n], s.text) {
				return nil, false
			}
			caps = append(caps, capture{text: string(s.text), index: -1})
			pos += n

		case segAnyOf:
			r := text[pos]
			i := slices.Index(s.text, r)
			if i < 0 {
				return nil, false
			}
			caps = append(caps, capture{text: string(r), index: i})
			pos++

		case segNotAnyOf:
			r := text[pos]
			if slices.Contains(s.text, r) {
				return nil, false
			}
			caps = append(caps, capture{text: string(r), index: -1})
			pos++

		case segAny:
			r := text[pos]
			if !isPrintableASCII(r) {
				return nil, false
			}
			caps = append(caps, capture{text: string(r), index: -1})
			pos++
		}
	}

	return caps, pos == len(text)
}

// matches checks the event against the combo. The event's modifiers must
// equal the combo's exactly; caps lock never takes part.
func (c keyCombo) matches(ev *KeyEvent, opts km2.Options) bool {
	if !c.valid() || ev.Key != c.key {
		return false
	}
	m := ev.Modifiers
	ctrl := m.Ctrl
	// Ctrl+Alt stands in for AltGr on keyboards without a right Alt key.
	if opts.TreatCtrlAltAsRightAlt && c.rightAlt && !c.ctrl && m.Ctrl && m.Alt {
		ctrl = false
	}
	return m.Shift == c.shift && ctrl == c.ctrl && m.Alt == c.alt
}

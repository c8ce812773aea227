package engine

import (
	"log/slog"
	"slices"

	"github.com/keymagic/keymagic/internal/composition"
	"github.com/keymagic/keymagic/internal/km2"
	"github.com/keymagic/keymagic/internal/vk"
)

// DefaultMaxRecursion bounds how many times text-only rules are re-applied
// after a match.
const DefaultMaxRecursion = 10

// Engine matches key events against a compiled layout.
//
// INVARIANTS:
//   - patterns are sorted by precedes and never reordered after New
//   - the layout and variable table are never mutated
//
// An Engine is safe for concurrent use; all per-session state lives in the
// composition.Buffer passed to Process.
type Engine struct {
	layout       *km2.Layout
	vars         [][]rune
	patterns     []*pattern
	maxRecursion int
	logger       *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for rule-level debug output.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMaxRecursion overrides DefaultMaxRecursion. Zero disables recursive
// rule application.
func WithMaxRecursion(n int) Option {
	return func(e *Engine) {
		e.maxRecursion = max(0, n)
	}
}

// New compiles the rules of layout into patterns.
func New(layout *km2.Layout, opts ...Option) (*Engine, error) {
	if layout == nil {
		return nil, ErrNoKeyboard
	}

	e := &Engine{
		layout:       layout,
		vars:         make([][]rune, len(layout.Strings)),
		maxRecursion: DefaultMaxRecursion,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	for i, s := range layout.Strings {
		e.vars[i] = []rune(s)
	}

	e.patterns = make([]*pattern, 0, len(layout.Rules))
	for i, r := range layout.Rules {
		p, err := compilePattern(i, r, e.vars)
		if err != nil {
			return nil, err
		}
		e.patterns = append(e.patterns, p)
	}
	sortPatterns(e.patterns)

	return e, nil
}

// Layout returns the layout the engine was built from.
func (e *Engine) Layout() *km2.Layout {
	return e.layout
}

// Process applies one key event to buf and returns the resulting buffer and
// output. buf itself is not modified.
func (e *Engine) Process(buf composition.Buffer, ev KeyEvent) (composition.Buffer, Output) {
	ev = ev.normalize()
	before := buf.Text()
	next := buf.Clone()

	rule, consumed := e.apply(&next, ev)

	after := next.Text()
	return next, Output{
		Action:      composition.Diff(before, after),
		Composition: after,
		Consumed:    consumed,
		Rule:        rule,
	}
}

// Test reports what Process would return for ev without committing the new
// buffer anywhere.
func (e *Engine) Test(buf composition.Buffer, ev KeyEvent) Output {
	_, out := e.Process(buf, ev)
	return out
}

// apply mutates buf for one event and reports the matched rule number and
// whether the key was consumed.
func (e *Engine) apply(buf *composition.Buffer, ev KeyEvent) (int, bool) {
	mc := &matchContext{
		buffer: buf.Runes(),
		ev:     &ev,
		buf:    buf,
		opts:   e.layout.Options,
	}
	if ev.printable() {
		mc.withChar = append(slices.Clone(mc.buffer), ev.Char)
	}

	isBackspace := ev.Key == vk.Back

	if p, caps := e.find(mc); p != nil {
		if !isBackspace {
			buf.PushHistory()
		}
		out, states := render(p.rhs, caps, e.vars)
		if p.textOnly() {
			buf.Append(ev.Char)
		}
		buf.ClearStates()
		for _, s := range states {
			buf.ActivateState(s)
		}
		buf.ReplaceSuffix(p.length, out)

		e.logger.Debug("rule matched",
			"rule", p.index+1,
			"event", ev.String(),
			"output", out,
			"states", states,
		)

		if !stopsRecursion(out) {
			e.recurse(buf)
		}
		return p.index + 1, true
	}

	switch {
	case isBackspace && buf.Len() > 0:
		if !e.layout.Options.SmartBackspace || !buf.PopHistory() {
			buf.DeleteLast()
		}
		buf.ClearStates()
		return 0, true

	case isBackspace:
		return 0, false

	case e.layout.Options.EatUnusedKeys:
		return 0, true

	case ev.printable():
		buf.PushHistory()
		buf.Append(ev.Char)
		buf.ClearStates()
		return 0, true
	}

	buf.ClearStates()
	return 0, false
}

// recurse re-applies text-only rules to the buffer without key input until
// nothing matches, an output stops recursion, the text stops changing, or
// maxRecursion rounds have run.
func (e *Engine) recurse(buf *composition.Buffer) {
	for depth := 0; depth < e.maxRecursion; depth++ {
		mc := &matchContext{
			buffer: buf.Runes(),
			buf:    buf,
			opts:   e.layout.Options,
		}
		p, caps := e.find(mc)
		if p == nil {
			return
		}

		before := buf.Text()
		out, states := render(p.rhs, caps, e.vars)
		// Recursive matches add to the states set by the key's own rule.
		for _, s := range states {
			buf.ActivateState(s)
		}
		buf.ReplaceSuffix(p.length, out)

		e.logger.Debug("rule re-applied",
			"rule", p.index+1,
			"depth", depth+1,
			"output", out,
		)

		if stopsRecursion(out) || buf.Text() == before {
			return
		}
	}
}

// find returns the first pattern in precedence order that matches.
func (e *Engine) find(mc *matchContext) (*pattern, []capture) {
	for _, p := range e.patterns {
		if caps, ok := p.match(mc); ok {
			return p, caps
		}
	}
	return nil, nil
}

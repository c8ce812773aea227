// Package composition holds the per-session composing state: the text the
// engine is building, the switch states a previous rule turned on, and the
// snapshots smart backspace restores.
//
// A Buffer is owned by exactly one session. The engine never mutates the
// buffer it is given; it works on a Clone and hands the result back.
package composition

import (
	"errors"
	"slices"
	"unicode/utf8"
)

// MaxHistory bounds the smart-backspace snapshot stack.
const MaxHistory = 50

// ErrInvalidText is returned by Set for text that is not valid UTF-8.
var ErrInvalidText = errors.New("composition: text is not valid UTF-8")

// Buffer is a sequence of Unicode scalar values plus switch states and
// history. The zero value is an empty buffer ready to use.
type Buffer struct {
	text    []rune
	states  []int // sorted, unique
	history []snapshot
}

type snapshot struct {
	text   []rune
	states []int
}

// New returns a buffer holding text. Invalid UTF-8 yields ErrInvalidText.
func New(text string) (Buffer, error) {
	var b Buffer
	err := b.Set(text)
	return b, err
}

// Reset empties the text and forgets states and history.
func (b *Buffer) Reset() {
	b.text = nil
	b.states = nil
	b.history = nil
}

// Text returns the composing text.
func (b *Buffer) Text() string {
	return string(b.text)
}

// Len returns the number of scalar values in the buffer.
func (b *Buffer) Len() int {
	return len(b.text)
}

// Runes exposes the buffer contents. The slice must not be modified.
func (b *Buffer) Runes() []rune {
	return b.text
}

// Set overwrites the text verbatim with an external ground truth. States and
// history no longer describe the new text, so both are cleared.
func (b *Buffer) Set(text string) error {
	if !utf8.ValidString(text) {
		return ErrInvalidText
	}
	b.text = []rune(text)
	b.states = nil
	b.history = nil
	return nil
}

// Append adds one scalar value at the end.
func (b *Buffer) Append(r rune) {
	b.text = append(b.text, r)
}

// ReplaceSuffix replaces the last n scalars with s. n is clamped to the
// buffer length.
func (b *Buffer) ReplaceSuffix(n int, s string) {
	n = max(0, min(n, len(b.text)))
	keep := b.text[:len(b.text)-n]
	out := make([]rune, 0, len(keep)+utf8.RuneCountInString(s))
	out = append(out, keep...)
	out = append(out, []rune(s)...)
	b.text = out
}

// DeleteLast removes the final scalar value. It reports false on an empty
// buffer.
func (b *Buffer) DeleteLast() bool {
	if len(b.text) == 0 {
		return false
	}
	b.text = b.text[:len(b.text)-1]
	return true
}

// HasState reports whether switch state id is active.
func (b *Buffer) HasState(id int) bool {
	_, ok := slices.BinarySearch(b.states, id)
	return ok
}

// States returns the active switch states in ascending order.
func (b *Buffer) States() []int {
	return slices.Clone(b.states)
}

// ActivateState turns switch state id on.
func (b *Buffer) ActivateState(id int) {
	i, ok := slices.BinarySearch(b.states, id)
	if !ok {
		b.states = slices.Insert(b.states, i, id)
	}
}

// ClearStates turns every switch state off.
func (b *Buffer) ClearStates() {
	b.states = nil
}

// PushHistory records the current text and states. The oldest snapshot is
// dropped once MaxHistory is reached.
func (b *Buffer) PushHistory() {
	if len(b.history) >= MaxHistory {
		b.history = slices.Delete(slices.Clone(b.history), 0, 1)
	}
	b.history = append(b.history, snapshot{
		text:   slices.Clone(b.text),
		states: slices.Clone(b.states),
	})
}

// PopHistory restores the most recent snapshot. It reports false when there
// is nothing to restore.
func (b *Buffer) PopHistory() bool {
	if len(b.history) == 0 {
		return false
	}
	last := b.history[len(b.history)-1]
	b.history = b.history[:len(b.history)-1]
	b.text = slices.Clone(last.text)
	b.states = slices.Clone(last.states)
	return true
}

// HistoryLen returns the number of stored snapshots.
func (b *Buffer) HistoryLen() int {
	return len(b.history)
}

// Clone returns a deep copy that shares no memory with b.
func (b *Buffer) Clone() Buffer {
	c := Buffer{
		text:   slices.Clone(b.text),
		states: slices.Clone(b.states),
	}
	if len(b.history) > 0 {
		c.history = make([]snapshot, len(b.history))
		copy(c.history, b.history) // snapshots are never mutated in place
	}
	return c
}

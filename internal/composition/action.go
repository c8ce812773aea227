package composition

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Kind is what a host must do to its own copy of the composing text.
type Kind int

const (
	None Kind = iota
	Insert
	DeleteBack
	DeleteBackAndInsert
)

var kindNames = [...]string{"none", "insert", "delete_back", "delete_back_and_insert"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// MarshalText renders the kind by name for JSON traces and YAML scenarios.
func (k Kind) MarshalText() ([]byte, error) {
	if k < 0 || int(k) >= len(kindNames) {
		return nil, fmt.Errorf("invalid action kind %d", int(k))
	}
	return []byte(kindNames[k]), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (k *Kind) UnmarshalText(b []byte) error {
	s := strings.ToLower(string(b))
	for i, name := range kindNames {
		if s == name {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown action kind %q", string(b))
}

// Action is the minimal edit that turns the host's previous text into the
// new one. DeleteCount counts Unicode scalar values.
type Action struct {
	Kind        Kind   `json:"kind" yaml:"kind"`
	Text        string `json:"text,omitempty" yaml:"text,omitempty"`
	DeleteCount int    `json:"delete_count,omitempty" yaml:"delete_count,omitempty"`
}

func (a Action) String() string {
	switch a.Kind {
	case Insert:
		return fmt.Sprintf("insert %q", a.Text)
	case DeleteBack:
		return fmt.Sprintf("delete %d", a.DeleteCount)
	case DeleteBackAndInsert:
		return fmt.Sprintf("delete %d insert %q", a.DeleteCount, a.Text)
	}
	return "none"
}

// Diff computes the action from the longest common scalar prefix of before
// and after.
func Diff(before, after string) Action {
	if before == after {
		return Action{Kind: None}
	}

	i := 0
	for i < len(before) && i < len(after) {
		r1, n1 := utf8.DecodeRuneInString(before[i:])
		r2, n2 := utf8.DecodeRuneInString(after[i:])
		if r1 != r2 || n1 != n2 {
			break
		}
		i += n1
	}

	deleted := utf8.RuneCountInString(before[i:])
	inserted := after[i:]

	switch {
	case deleted == 0:
		return Action{Kind: Insert, Text: inserted}
	case inserted == "":
		return Action{Kind: DeleteBack, DeleteCount: deleted}
	default:
		return Action{Kind: DeleteBackAndInsert, Text: inserted, DeleteCount: deleted}
	}
}

// Package compiler turns human-written layout sources (KeyMagic scripts, CUE
// or YAML) into KM2 layouts.
//
// A source names the keyboard, its options, an ordered variable table and
// the rules. Rule sides are lists of tokens:
//
//	"ka"          literal text
//	$cons         variable
//	$cons[*]      any character of $cons (left side)
//	$cons[^]      any character not in $cons (left side)
//	$cons[$1]     character of $cons at the position captured by $1 (right side)
//	$1            text captured by the first left-side segment (right side)
//	<VK_SHIFT & VK_KEY_A>  key combination (left side)
//	('zg')        switch state
//	ANY           any printable ASCII character (left side)
//	NULL          empty output (right side)
//	U1000, U+1000 single code point
//	\$            literal text with the backslash removed
package compiler

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Source is a parsed layout source before compilation.
type Source struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description,omitempty"`
	Font        string        `yaml:"font,omitempty"`
	Hotkey      string        `yaml:"hotkey,omitempty"`
	Icon        string        `yaml:"icon,omitempty"` // base64
	Options     SourceOptions `yaml:"options,omitempty"`
	Vars        Vars          `yaml:"vars,omitempty"`
	Rules       []RuleSource  `yaml:"rules"`
}

// SourceOptions mirror km2.Options. Unset fields take km2.DefaultOptions.
type SourceOptions struct {
	TrackCaps              *bool `yaml:"track_caps,omitempty"`
	SmartBackspace         *bool `yaml:"smart_backspace,omitempty"`
	EatUnusedKeys          *bool `yaml:"eat_unused_keys,omitempty"`
	USLayoutBased          *bool `yaml:"us_layout_based,omitempty"`
	TreatCtrlAltAsRightAlt *bool `yaml:"ctrl_alt_as_right_alt,omitempty"`
}

// Var is one named entry of the variable table. Value holds tokens that are
// concatenated: literals, code points and previously declared variables.
type Var struct {
	Name  string
	Value []string
	Line  int
}

// Vars keeps declaration order, which fixes the variable indices.
type Vars []Var

// UnmarshalYAML reads a mapping of name to a string or a list of tokens.
func (vs *Vars) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: vars must be a mapping", n.Line)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		v := Var{Name: key.Value, Line: key.Line}
		switch val.Kind {
		case yaml.ScalarNode:
			v.Value = []string{val.Value}
		case yaml.SequenceNode:
			if err := val.Decode(&v.Value); err != nil {
				return err
			}
		default:
			return fmt.Errorf("line %d: var %q must be a string or a list", val.Line, key.Value)
		}
		*vs = append(*vs, v)
	}
	return nil
}

// RuleSource is one rule as written.
type RuleSource struct {
	LHS  []string `yaml:"lhs"`
	RHS  []string `yaml:"rhs"`
	Line int      `yaml:"-"`
}

// UnmarshalYAML records the source line of the rule.
func (r *RuleSource) UnmarshalYAML(n *yaml.Node) error {
	type plain RuleSource
	if err := n.Decode((*plain)(r)); err != nil {
		return err
	}
	r.Line = n.Line
	return nil
}

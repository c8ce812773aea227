package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keymagic/keymagic/internal/km2"
	"github.com/keymagic/keymagic/internal/vk"
)

func literalRule(lhs, rhs string) km2.Rule {
	return km2.Rule{LHS: []km2.Element{km2.Str(lhs)}, RHS: []km2.Element{km2.Str(rhs)}}
}

func TestAnalyzeCycles_Empty(t *testing.T) {
	assert.Empty(t, AnalyzeCycles(nil))
	assert.Empty(t, AnalyzeCycles(&km2.Layout{}))
}

func TestAnalyzeCycles_DAG(t *testing.T) {
	l := &km2.Layout{Rules: []km2.Rule{
		literalRule("aa", "â"),
		literalRule("ee", "ê"),
		literalRule("âa", "ââ"),
	}}
	assert.Empty(t, AnalyzeCycles(l))
}

func TestAnalyzeCycles_SelfLoop(t *testing.T) {
	l := &km2.Layout{Rules: []km2.Rule{
		literalRule("ee", "ê"),
		literalRule("a", "aa"),
	}}

	warnings := AnalyzeCycles(l)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"rule 002", "rule 002"}, warnings[0].Path)
	assert.Equal(t, "warning", warnings[0].Level)
	assert.Contains(t, warnings[0].Message, "rule 002")
}

func TestAnalyzeCycles_TwoRules(t *testing.T) {
	l := &km2.Layout{Rules: []km2.Rule{
		literalRule("x", "yz"),
		literalRule("z", "wx"),
	}}

	warnings := AnalyzeCycles(l)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"rule 001", "rule 002", "rule 001"}, warnings[0].Path)
}

func TestAnalyzeCycles_Skips(t *testing.T) {
	l := &km2.Layout{
		Strings: []string{"ab"},
		Rules: []km2.Rule{
			// stop output
			literalRule("b", "a"),
			literalRule("a", "b"),
			// key rules never fire during recursion
			{LHS: km2.Keys(vk.KeyA), RHS: []km2.Element{km2.Str("aa")}},
			// any-of patterns are not analyzed
			{LHS: km2.AnyOf(1), RHS: []km2.Element{km2.Str("abab")}},
			// a state nobody switches on during recursion
			{LHS: []km2.Element{km2.Str("q"), km2.Switch(3)}, RHS: []km2.Element{km2.Str("qq")}},
		},
	}
	assert.Empty(t, AnalyzeCycles(l))
}

func TestAnalyzeCycles_Variables(t *testing.T) {
	l := &km2.Layout{
		Strings: []string{"ka"},
		Rules: []km2.Rule{
			{LHS: []km2.Element{km2.Var(1)}, RHS: []km2.Element{km2.Str("k"), km2.Var(1)}},
		},
	}
	warnings := AnalyzeCycles(l)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"rule 001", "rule 001"}, warnings[0].Path)
}

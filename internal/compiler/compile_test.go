package compiler

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keymagic/keymagic/internal/composition"
	"github.com/keymagic/keymagic/internal/engine"
	"github.com/keymagic/keymagic/internal/km2"
	"github.com/keymagic/keymagic/internal/vk"
)

const yamlSource = `
name: Myanmar Test
description: test layout
font: Padauk
hotkey: ctrl+shift+m
options:
  smart_backspace: true
vars:
  cons: "ကခ"
  medial: ["U+103B", "U103C"]
  all: ["$cons", "$medial"]
rules:
  - lhs: ["aa"]
    rhs: ["â"]
  - lhs: ["<VK_SHIFT & VK_KEY_A>"]
    rhs: ["U+1021"]
  - lhs: ["$cons[*]", "('zg')"]
    rhs: ["$cons[$1]"]
  - lhs: ["ANY"]
    rhs: ["NULL"]
`

const cueSource = `
name:        "Myanmar Test"
description: "test layout"
font:        "Padauk"
hotkey:      "ctrl+shift+m"
options: smart_backspace: true
vars: {
	cons:   "ကခ"
	medial: ["U+103B", "U103C"]
	all:    ["$cons", "$medial"]
}
rules: [
	{lhs: ["aa"], rhs: ["â"]},
	{lhs: "<VK_SHIFT & VK_KEY_A>", rhs: "U+1021"},
	{lhs: ["$cons[*]", "('zg')"], rhs: ["$cons[$1]"]},
	{lhs: ["ANY"], rhs: ["NULL"]},
]
`

func expectedLayout() *km2.Layout {
	opts := km2.DefaultOptions()
	opts.SmartBackspace = true
	return &km2.Layout{
		Version: km2.Version{Major: km2.MajorVersion, Minor: km2.MaxMinorVersion},
		Options: opts,
		Strings: []string{"ကခ", "\u103b\u103c", "ကခ\u103b\u103c"},
		Info: []km2.InfoEntry{
			km2.NewInfo(km2.InfoName, "Myanmar Test"),
			km2.NewInfo(km2.InfoDescription, "test layout"),
			km2.NewInfo(km2.InfoFont, "Padauk"),
			km2.NewInfo(km2.InfoHotkey, "ctrl+shift+m"),
		},
		Rules: []km2.Rule{
			{LHS: []km2.Element{km2.Str("aa")}, RHS: []km2.Element{km2.Str("â")}},
			{LHS: km2.Keys(vk.Shift, vk.KeyA), RHS: []km2.Element{km2.Str("\u1021")}},
			{
				LHS: append(km2.AnyOf(1), km2.Switch(0)),
				RHS: []km2.Element{km2.Var(1), km2.Mod(1)},
			},
			{LHS: []km2.Element{km2.Any()}, RHS: []km2.Element{km2.Predefined(vk.Null)}},
		},
	}
}

func TestCompile_YAML(t *testing.T) {
	src, err := ParseYAML([]byte(yamlSource))
	require.NoError(t, err)
	require.Len(t, src.Rules, 4)
	assert.Equal(t, 13, src.Rules[0].Line)

	l, err := Compile(src)
	require.NoError(t, err)
	assert.Equal(t, expectedLayout(), l)
}

func TestCompile_CUE(t *testing.T) {
	src, err := ParseCUE([]byte(cueSource), "test.cue")
	require.NoError(t, err)

	l, err := Compile(src)
	require.NoError(t, err)
	assert.Equal(t, expectedLayout(), l)
}

func TestCompile_EncodeRoundTrip(t *testing.T) {
	src, err := ParseYAML([]byte(yamlSource))
	require.NoError(t, err)
	l, err := Compile(src)
	require.NoError(t, err)

	data, err := km2.Encode(l)
	require.NoError(t, err)
	got, err := km2.Load(data)
	require.NoError(t, err)
	assert.Equal(t, l, got)
}

func TestCompile_Behaviour(t *testing.T) {
	src, err := ParseYAML([]byte(`
name: Circumflex
rules:
  - lhs: ["aa"]
    rhs: ["â"]
`))
	require.NoError(t, err)
	l, err := Compile(src)
	require.NoError(t, err)

	e, err := engine.New(l)
	require.NoError(t, err)

	var buf composition.Buffer
	buf, _ = e.Process(buf, engine.CharEvent('a'))
	_, out := e.Process(buf, engine.CharEvent('a'))
	assert.Equal(t, "â", out.Composition)
}

func TestCompile_Icon(t *testing.T) {
	src := &Source{
		Name:  "Icon",
		Icon:  "iVBORw==",
		Rules: []RuleSource{{LHS: []string{"a"}, RHS: []string{"b"}}},
	}
	l, err := Compile(src)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, l.Metadata().Icon)
}

func TestValidate(t *testing.T) {
	base := func() *Source {
		return &Source{
			Name:  "Test",
			Vars:  Vars{{Name: "v", Value: []string{"abc"}}},
			Rules: []RuleSource{{LHS: []string{"a"}, RHS: []string{"b"}}},
		}
	}

	tests := []struct {
		name   string
		modify func(*Source)
		code   string
	}{
		{"missing name", func(s *Source) { s.Name = " " }, ErrNameEmpty},
		{"no rules", func(s *Source) { s.Rules = nil }, ErrNoRules},
		{"empty lhs", func(s *Source) { s.Rules[0].LHS = nil }, ErrEmptyPattern},
		{"undefined variable", func(s *Source) { s.Rules[0].LHS = []string{"$w"} }, ErrUndefinedVariable},
		{"variable used before declaration", func(s *Source) {
			s.Vars = append(Vars{{Name: "first", Value: []string{"$v"}}}, s.Vars...)
		}, ErrUndefinedVariable},
		{"duplicate variable", func(s *Source) {
			s.Vars = append(s.Vars, Var{Name: "v", Value: []string{"x"}})
		}, ErrDuplicateName},
		{"reference on lhs", func(s *Source) { s.Rules[0].LHS = []string{"$1"} }, ErrWrongSide},
		{"any on rhs", func(s *Source) { s.Rules[0].RHS = []string{"ANY"} }, ErrWrongSide},
		{"null on lhs", func(s *Source) { s.Rules[0].LHS = []string{"NULL"} }, ErrWrongSide},
		{"any-of on rhs", func(s *Source) { s.Rules[0].RHS = []string{"$v[*]"} }, ErrWrongSide},
		{"indexed variable on lhs", func(s *Source) { s.Rules[0].LHS = []string{"$v[$1]"} }, ErrWrongSide},
		{"combo on rhs", func(s *Source) { s.Rules[0].RHS = []string{"<VK_KEY_A>"} }, ErrWrongSide},
		{"combo without key", func(s *Source) { s.Rules[0].LHS = []string{"<VK_SHIFT>"} }, ErrInvalidToken},
		{"combo with two keys", func(s *Source) { s.Rules[0].LHS = []string{"<VK_KEY_A & VK_KEY_B>"} }, ErrInvalidToken},
		{"unknown key", func(s *Source) { s.Rules[0].LHS = []string{"<VK_NOPE & VK_KEY_A>"} }, ErrInvalidToken},
		{"bare dollar", func(s *Source) { s.Rules[0].LHS = []string{"$"} }, ErrInvalidToken},
		{"surrogate code point", func(s *Source) { s.Rules[0].RHS = []string{"U+D800"} }, ErrInvalidToken},
		{"zero reference", func(s *Source) { s.Rules[0].RHS = []string{"$0"} }, ErrInvalidToken},
		{"empty token", func(s *Source) { s.Rules[0].RHS = []string{""} }, ErrInvalidToken},
		{"bad hotkey", func(s *Source) { s.Hotkey = "ctrl+" }, ErrInvalidHotkey},
		{"hotkey with two keys", func(s *Source) { s.Hotkey = "ctrl+a+b" }, ErrInvalidHotkey},
		{"bad icon", func(s *Source) { s.Icon = "!!!" }, ErrInvalidIcon},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := base()
			tt.modify(src)
			errs := Validate(src)
			require.Len(t, errs, 1, "errors: %v", errs)
			assert.Equal(t, tt.code, errs[0].Code)

			_, err := Compile(src)
			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			assert.Equal(t, errs, verrs)
		})
	}

	assert.Empty(t, Validate(base()))
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	src := &Source{
		Rules: []RuleSource{
			{LHS: []string{"$missing"}, RHS: []string{"x"}, Line: 7},
			{LHS: []string{"a"}, RHS: []string{"ANY"}, Line: 9},
		},
	}
	errs := Validate(src)
	require.Len(t, errs, 3)
	assert.Equal(t, ErrNameEmpty, errs[0].Code)
	assert.Equal(t, ErrUndefinedVariable, errs[1].Code)
	assert.Equal(t, 7, errs[1].Line)
	assert.Equal(t, "rules[0].lhs", errs[1].Field)
	assert.Equal(t, ErrWrongSide, errs[2].Code)
	assert.Contains(t, errs.Error(), "line 9")
}

func TestElements(t *testing.T) {
	src := &Source{
		Name: "Tokens",
		Vars: Vars{{Name: "v", Value: []string{"ab"}}},
		Rules: []RuleSource{
			{LHS: []string{`\$`, "$v[^]", "<shift+key_b>"}, RHS: []string{"$2", "$1", "('one')", "('two')", "('one')"}},
		},
	}
	l, err := Compile(src)
	require.NoError(t, err)

	want := km2.Rule{
		LHS: append(append([]km2.Element{km2.Str("$")}, km2.NotAnyOf(1)...), km2.Keys(vk.Shift, vk.KeyB)...),
		RHS: []km2.Element{km2.Ref(2), km2.Ref(1), km2.Switch(0), km2.Switch(1), km2.Switch(0)},
	}
	assert.Equal(t, want, l.Rules[0])
}

func TestParseErrors(t *testing.T) {
	_, err := ParseYAML([]byte("name: x\nunknown: 1\n"))
	assert.Error(t, err)

	_, err = ParseYAML([]byte("name: x\nvars: [a]\n"))
	assert.Error(t, err)

	_, err = ParseCUE([]byte("name: \"x\"\nrules: [{lhs: 1}]\n"), "bad.cue")
	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "rules[0].lhs", ce.Field)

	_, err = ParseCUE([]byte("name: \"x\nrules: ["), "syntax.cue")
	require.True(t, errors.As(err, &ce))
	assert.True(t, ce.Pos.IsValid())
	assert.Contains(t, ce.Error(), "syntax.cue")

	_, err = ParseCUE([]byte("name: \"x\"\noptions: bogus: true\n"), "opt.cue")
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "options.bogus", ce.Field)

	_, err = ParseFile("layout.txt")
	assert.Error(t, err)
}

func TestWriteKM2(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "layout.yaml")
	require.NoError(t, os.WriteFile(srcPath, []byte(yamlSource), 0o644))

	out := filepath.Join(dir, "layout.km2")
	l, err := WriteKM2(srcPath, out)
	require.NoError(t, err)

	loaded, err := km2.LoadFile(out)
	require.NoError(t, err)
	assert.Equal(t, l, loaded)

	_, err = CompileFile(filepath.Join(dir, "missing.cue"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

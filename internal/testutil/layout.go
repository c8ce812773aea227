package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keymagic/keymagic/internal/km2"
)

// LayoutBuilder assembles a km2.Layout in memory so tests never depend on
// checked-in binaries.
//
//	l := testutil.NewLayout().
//		Rule(testutil.LHS(km2.Str("aa")), km2.Str("â")).
//		Build()
type LayoutBuilder struct {
	l km2.Layout
}

// NewLayout starts a layout with km2.DefaultOptions.
func NewLayout() *LayoutBuilder {
	return &LayoutBuilder{l: km2.Layout{
		Version: km2.Version{Major: km2.MajorVersion, Minor: km2.MaxMinorVersion},
		Options: km2.DefaultOptions(),
	}}
}

// Options replaces the layout options.
func (b *LayoutBuilder) Options(o km2.Options) *LayoutBuilder {
	b.l.Options = o
	return b
}

// SmartBackspace turns on history-restoring backspace.
func (b *LayoutBuilder) SmartBackspace() *LayoutBuilder {
	b.l.Options.SmartBackspace = true
	return b
}

// EatUnusedKeys makes unmatched keys disappear.
func (b *LayoutBuilder) EatUnusedKeys() *LayoutBuilder {
	b.l.Options.EatUnusedKeys = true
	return b
}

// Vars appends entries to the string table. The first entry added to an
// empty table is $1.
func (b *LayoutBuilder) Vars(values ...string) *LayoutBuilder {
	b.l.Strings = append(b.l.Strings, values...)
	return b
}

// Info adds a text info entry.
func (b *LayoutBuilder) Info(id [4]byte, text string) *LayoutBuilder {
	b.l.Info = append(b.l.Info, km2.NewInfo(id, text))
	return b
}

// Rule appends a rule.
func (b *LayoutBuilder) Rule(lhs []km2.Element, rhs ...km2.Element) *LayoutBuilder {
	b.l.Rules = append(b.l.Rules, km2.Rule{LHS: lhs, RHS: rhs})
	return b
}

// Build returns a copy of the layout built so far.
func (b *LayoutBuilder) Build() *km2.Layout {
	l := b.l
	l.Strings = append([]string(nil), b.l.Strings...)
	l.Info = append([]km2.InfoEntry(nil), b.l.Info...)
	l.Rules = append([]km2.Rule(nil), b.l.Rules...)
	return &l
}

// Encode serializes the layout and fails the test on error.
func (b *LayoutBuilder) Encode(t testing.TB) []byte {
	t.Helper()
	data, err := km2.Encode(b.Build())
	require.NoError(t, err)
	return data
}

// WriteFile encodes the layout into dir/name, creating missing directories,
// and returns the path.
func (b *LayoutBuilder) WriteFile(t testing.TB, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, b.Encode(t), 0o644))
	return path
}

// LHS flattens element groups such as km2.Keys and km2.AnyOf into one
// pattern.
func LHS(parts ...any) []km2.Element {
	var out []km2.Element
	for _, p := range parts {
		switch v := p.(type) {
		case km2.Element:
			out = append(out, v)
		case []km2.Element:
			out = append(out, v...)
		default:
			panic("testutil.LHS: want km2.Element or []km2.Element")
		}
	}
	return out
}

package session

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keymagic/keymagic/internal/composition"
	"github.com/keymagic/keymagic/internal/engine"
	"github.com/keymagic/keymagic/internal/km2"
	"github.com/keymagic/keymagic/internal/testutil"
	"github.com/keymagic/keymagic/internal/vk"
)

func circumflex() *testutil.LayoutBuilder {
	return testutil.NewLayout().
		Info(km2.InfoName, "Circumflex").
		Info(km2.InfoDescription, "doubles become circumflex vowels").
		Info(km2.InfoFont, "Noto Sans").
		Info(km2.InfoHotkey, "ctrl+shift+k").
		Info(km2.InfoIcon, "\x89PNG").
		Rule(testutil.LHS(km2.Str("aa")), km2.Str("â")).
		Rule(testutil.LHS(km2.Str("ee")), km2.Str("ê"))
}

func upper() *testutil.LayoutBuilder {
	return testutil.NewLayout().
		Info(km2.InfoName, "Upper").
		Rule(testutil.LHS(km2.Str("a")), km2.Str("A"))
}

func space() engine.KeyEvent {
	return engine.KeyEvent{Key: vk.Space, Char: ' '}
}

func loaded(t *testing.T, b *testutil.LayoutBuilder, opts ...Option) *Session {
	t.Helper()
	s := New(opts...)
	require.NoError(t, s.LoadKeyboardBytes(b.Encode(t)))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSession_ProcessWithoutKeyboard(t *testing.T) {
	s := New()
	_, err := s.ProcessKey(engine.CharEvent('a'))
	assert.ErrorIs(t, err, ErrNoKeyboard)

	_, err = s.ProcessKeyTest(engine.CharEvent('a'))
	assert.ErrorIs(t, err, ErrNoKeyboard)
	assert.Nil(t, s.Layout())
}

func TestSession_Circumflex(t *testing.T) {
	s := loaded(t, circumflex(), WithCommitPolicy(NeverCommit))

	res, err := s.ProcessKey(engine.CharEvent('a'))
	require.NoError(t, err)
	assert.Equal(t, composition.Action{Kind: composition.Insert, Text: "a"}, res.Action)
	assert.True(t, res.Consumed)
	assert.False(t, res.Commit)

	res, err = s.ProcessKey(engine.CharEvent('a'))
	require.NoError(t, err)
	assert.Equal(t, composition.Action{Kind: composition.DeleteBackAndInsert, Text: "â", DeleteCount: 1}, res.Action)
	assert.Equal(t, "â", res.Composition)
	assert.Equal(t, 1, res.Rule)
	assert.Equal(t, "â", s.Composition())
}

func TestSession_ProcessKeyTestDoesNotMutate(t *testing.T) {
	s := loaded(t, circumflex())
	_, err := s.ProcessKey(engine.CharEvent('a'))
	require.NoError(t, err)

	out, err := s.ProcessKeyTest(engine.CharEvent('a'))
	require.NoError(t, err)
	assert.Equal(t, "â", out.Composition)
	assert.Equal(t, "a", s.Composition())
}

func TestSession_LoadFile(t *testing.T) {
	path := circumflex().WriteFile(t, t.TempDir(), "circumflex.km2")

	s := New()
	defer s.Close()
	require.NoError(t, s.LoadKeyboard(path))
	require.NotNil(t, s.Layout())
	assert.Equal(t, "Circumflex", s.Layout().Metadata().Name)

	err := s.LoadKeyboard(filepath.Join(t.TempDir(), "missing.km2"))
	require.Error(t, err)
	assert.Equal(t, FileNotFound, StatusOf(err))
	assert.Equal(t, "Circumflex", s.Layout().Metadata().Name, "failed load must keep the previous layout")
}

func TestSession_TruncatedLoadKeepsPreviousLayout(t *testing.T) {
	s := loaded(t, circumflex(), WithCommitPolicy(NeverCommit))
	_, err := s.ProcessKey(engine.CharEvent('a'))
	require.NoError(t, err)

	err = s.LoadKeyboardBytes([]byte("KMKL\x01"))
	require.Error(t, err)
	assert.True(t, km2.IsTruncated(err))
	assert.Equal(t, InvalidFormat, StatusOf(err))

	assert.Equal(t, "a", s.Composition())
	res, err := s.ProcessKey(engine.CharEvent('a'))
	require.NoError(t, err)
	assert.Equal(t, "â", res.Composition)
}

func TestSession_LoadResetsBuffer(t *testing.T) {
	s := loaded(t, circumflex(), WithCommitPolicy(NeverCommit))
	_, err := s.ProcessKey(engine.CharEvent('x'))
	require.NoError(t, err)
	require.Equal(t, "x", s.Composition())

	require.NoError(t, s.LoadKeyboardBytes(upper().Encode(t)))
	assert.Equal(t, "", s.Composition())
	assert.Equal(t, "Upper", s.Layout().Metadata().Name)

	res, err := s.ProcessKey(engine.CharEvent('a'))
	require.NoError(t, err)
	assert.Equal(t, "A", res.Composition)
}

func TestSession_ResetAndSetComposition(t *testing.T) {
	s := loaded(t, circumflex(), WithCommitPolicy(NeverCommit))

	require.NoError(t, s.SetComposition("xa"))
	assert.Equal(t, "xa", s.Composition())

	res, err := s.ProcessKey(engine.CharEvent('a'))
	require.NoError(t, err)
	assert.Equal(t, "xâ", res.Composition)

	s.Reset()
	assert.Equal(t, "", s.Composition())

	require.NoError(t, s.SetComposition(""))
	assert.Equal(t, "", s.Composition())

	err = s.SetComposition("\xff")
	assert.ErrorIs(t, err, composition.ErrInvalidText)
	assert.Equal(t, Utf8Conversion, StatusOf(err))
}

func TestSession_ProcessWinKey(t *testing.T) {
	s := loaded(t, circumflex(), WithCommitPolicy(NeverCommit))

	res, err := s.ProcessWinKey(0x41, 'a', engine.Modifiers{})
	require.NoError(t, err)
	assert.Equal(t, "a", res.Composition)

	out, err := s.ProcessWinKeyTest(0x41, 'a', engine.Modifiers{})
	require.NoError(t, err)
	assert.Equal(t, "â", out.Composition)
	assert.Equal(t, "a", s.Composition())

	for _, code := range []uint16{0x25, 0x24, 0x23, 0xFF} {
		res, err = s.ProcessWinKey(code, 0, engine.Modifiers{})
		require.NoError(t, err)
		assert.False(t, res.Consumed, "code %#x", code)
		assert.Equal(t, composition.None, res.Action.Kind)
		assert.Equal(t, "a", res.Composition)
	}

	res, err = s.ProcessWinKey(0x25, 'x', engine.Modifiers{})
	require.NoError(t, err)
	assert.False(t, res.Consumed)
	assert.Equal(t, "a", res.Composition)
}

func TestSession_Close(t *testing.T) {
	s := New()
	require.NoError(t, s.LoadKeyboardBytes(circumflex().Encode(t)))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.ProcessKey(engine.CharEvent('a'))
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.LoadKeyboardBytes(circumflex().Encode(t)), ErrClosed)
	assert.Nil(t, s.Layout())
}

func TestSession_Deterministic(t *testing.T) {
	keys := []engine.KeyEvent{
		engine.CharEvent('a'), engine.CharEvent('a'), engine.CharEvent('e'),
		engine.KeyOnly(vk.Back, engine.Modifiers{}), engine.CharEvent('e'), engine.CharEvent('e'),
	}
	run := func() []Result {
		s := loaded(t, circumflex(), WithCommitPolicy(NeverCommit))
		var out []Result
		for _, ev := range keys {
			res, err := s.ProcessKey(ev)
			require.NoError(t, err)
			out = append(out, res)
		}
		return out
	}
	first := run()
	assert.Equal(t, first, run())
	assert.Equal(t, "âê", first[len(first)-1].Composition)
}

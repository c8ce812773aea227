package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keymagic/keymagic/internal/engine"
	"github.com/keymagic/keymagic/internal/km2"
	"github.com/keymagic/keymagic/internal/session"
	"github.com/keymagic/keymagic/internal/testutil"
	"github.com/keymagic/keymagic/internal/vk"
)

func newModel(t *testing.T, policy session.CommitPolicy) *Model {
	t.Helper()
	data := testutil.NewLayout().
		Rule(testutil.LHS(km2.Str("aa")), km2.Str("â")).
		Encode(t)
	s := session.New(session.WithCommitPolicy(policy))
	require.NoError(t, s.LoadKeyboardBytes(data))
	t.Cleanup(func() { _ = s.Close() })
	return NewModel(s, "Circumflex")
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_Composes(t *testing.T) {
	m := newModel(t, session.NeverCommit)

	m.Update(runes("a"))
	m.Update(runes("a"))

	assert.Equal(t, "â", m.session.Composition())
	require.Len(t, m.history, 2)
	assert.Equal(t, 1, m.history[1].res.Rule)

	view := m.View()
	assert.Contains(t, view, "Circumflex")
	assert.Contains(t, view, `composing "â"  width 1`)
	assert.Contains(t, view, "rule 1")
}

func TestModel_CommitOnSpace(t *testing.T) {
	m := newModel(t, session.DefaultCommitPolicy)

	m.Update(runes("aa"))
	m.Update(tea.KeyMsg{Type: tea.KeySpace})

	assert.Equal(t, "â ", m.Committed())
	assert.Equal(t, "", m.session.Composition())
	assert.Contains(t, m.View(), `commit "â "`)
}

func TestModel_PassThroughBackspace(t *testing.T) {
	m := newModel(t, session.DefaultCommitPolicy)

	m.Update(runes("b"))
	m.Update(tea.KeyMsg{Type: tea.KeySpace})
	require.Equal(t, "b ", m.Committed())

	// Nothing is composing, so the engine leaves backspace to the host.
	m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	assert.Equal(t, "b", m.Committed())
	assert.Contains(t, m.View(), "passed through")
}

func TestModel_Reset(t *testing.T) {
	m := newModel(t, session.NeverCommit)
	m.Update(runes("xa"))
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})

	assert.Equal(t, "", m.session.Composition())
	assert.Empty(t, m.history)
}

func TestModel_Quit(t *testing.T) {
	m := newModel(t, session.NeverCommit)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestModel_HistoryBounded(t *testing.T) {
	m := newModel(t, session.NeverCommit)
	m.Update(runes("bcdefghijklm"))
	assert.Len(t, m.history, historySize)
	assert.Equal(t, "m", m.history[historySize-1].keys)
}

func TestModel_ErrorAfterClose(t *testing.T) {
	m := newModel(t, session.NeverCommit)
	require.NoError(t, m.session.Close())

	m.Update(runes("a"))
	assert.ErrorIs(t, m.err, session.ErrClosed)
	assert.Contains(t, m.View(), "error:")
}

func TestKeyEvents(t *testing.T) {
	tests := []struct {
		name string
		msg  tea.KeyMsg
		want []engine.KeyEvent
	}{
		{"rune", runes("A"), []engine.KeyEvent{{Key: vk.KeyA, Char: 'A', Modifiers: engine.Modifiers{Shift: true}}}},
		{"non-ascii", runes("က"), []engine.KeyEvent{{Char: 'က'}}},
		{"alt rune", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'x'}, Alt: true},
			[]engine.KeyEvent{{Key: vk.KeyX, Modifiers: engine.Modifiers{Alt: true}}}},
		{"space", tea.KeyMsg{Type: tea.KeySpace}, []engine.KeyEvent{{Key: vk.Space, Char: ' '}}},
		{"backspace", tea.KeyMsg{Type: tea.KeyBackspace}, []engine.KeyEvent{{Key: vk.Back}}},
		{"enter", tea.KeyMsg{Type: tea.KeyEnter}, []engine.KeyEvent{{Key: vk.Return}}},
		{"f5", tea.KeyMsg{Type: tea.KeyF5}, []engine.KeyEvent{{Key: vk.F5}}},
		{"ctrl+k", tea.KeyMsg{Type: tea.KeyCtrlK}, []engine.KeyEvent{{Key: vk.KeyK, Modifiers: engine.Modifiers{Ctrl: true}}}},
		{"unmapped", tea.KeyMsg{Type: tea.KeyUp}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, keyEvents(tt.msg))
		})
	}
}

// Package tui provides the Bubble Tea "try a keyboard" interface.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/keymagic/keymagic/internal/engine"
	"github.com/keymagic/keymagic/internal/keyscript"
	"github.com/keymagic/keymagic/internal/session"
	"github.com/keymagic/keymagic/internal/vk"
)

// historySize is how many recent outputs the view lists.
const historySize = 8

type outputLine struct {
	keys string
	res  session.Result
}

// Model implements the Bubble Tea keyboard playground. It plays the host:
// committed text and pass-through keys are applied to its own text, the
// composing text is shown after it.
type Model struct {
	session *session.Session
	title   string

	width  int
	height int

	committed []rune
	history   []outputLine
	err       error
}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C89A3A"))
	committedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	composingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7FB3FF")).Underline(true)
	historyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	footerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

// NewModel constructs a model over a session with a keyboard loaded.
func NewModel(s *session.Session, title string) *Model {
	return &Model{session: s, title: title}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			return m, tea.Quit
		case tea.KeyCtrlR:
			m.session.Reset()
			m.committed = m.committed[:0]
			m.history = nil
			m.err = nil
			return m, nil
		}
		for _, ev := range keyEvents(msg) {
			m.press(ev)
		}
		return m, nil
	default:
		return m, nil
	}
}

func (m *Model) press(ev engine.KeyEvent) {
	res, err := m.session.ProcessKey(ev)
	if err != nil {
		m.err = err
		return
	}
	m.err = nil

	switch {
	case res.Commit:
		m.committed = append(m.committed, []rune(res.CommitText)...)
	case !res.Consumed:
		m.passThrough(ev)
	}

	m.history = append(m.history, outputLine{keys: keyscript.FormatEvent(ev), res: res})
	if len(m.history) > historySize {
		m.history = m.history[len(m.history)-historySize:]
	}
}

// passThrough applies a key the engine left to the host.
func (m *Model) passThrough(ev engine.KeyEvent) {
	switch ev.Key {
	case vk.Back:
		if n := len(m.committed); n > 0 {
			m.committed = m.committed[:n-1]
		}
	case vk.Return:
		m.committed = append(m.committed, '\n')
	}
}

// Committed returns the text committed so far.
func (m *Model) Committed() string {
	return string(m.committed)
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")

	composing := m.session.Composition()
	text := committedStyle.Render(string(m.committed)) + composingStyle.Render(composing)
	if m.width > 0 {
		text = lipgloss.NewStyle().Width(m.width).Render(text)
	}
	b.WriteString(text)
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "composing %q  width %d\n", composing, runewidth.StringWidth(composing))
	for _, h := range m.history {
		b.WriteString(historyStyle.Render(formatOutput(h)))
		b.WriteByte('\n')
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render("error: " + m.err.Error()))
		b.WriteByte('\n')
	}

	b.WriteString(footerStyle.Render("ctrl+r reset  ctrl+c quit"))
	return b.String()
}

func formatOutput(h outputLine) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %s", h.keys, h.res.Action)
	if h.res.Rule > 0 {
		fmt.Fprintf(&b, "  rule %d", h.res.Rule)
	}
	if !h.res.Consumed {
		b.WriteString("  passed through")
	}
	if h.res.Commit {
		fmt.Fprintf(&b, "  commit %q", h.res.CommitText)
	}
	return b.String()
}

// Run starts the interactive program and blocks until the user quits or
// ctx is done.
func Run(ctx context.Context, s *session.Session, title string) error {
	p := tea.NewProgram(NewModel(s, title), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

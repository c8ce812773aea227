package session

import (
	"log/slog"

	"github.com/keymagic/keymagic/internal/composition"
	"github.com/keymagic/keymagic/internal/engine"
	"github.com/keymagic/keymagic/internal/km2"
	"github.com/keymagic/keymagic/internal/vk"
)

// Result is the output of ProcessKey plus the commit decision.
type Result struct {
	engine.Output

	// Commit is set when the commit policy fired. The session has already
	// reset itself; the host should commit CommitText.
	Commit     bool   `json:"commit,omitempty"`
	CommitText string `json:"commit_text,omitempty"`
}

// Session is one input context: a composition buffer bound to a keyboard.
type Session struct {
	lib     *Library
	ownsLib bool
	engine  *engine.Engine
	buf     composition.Buffer
	policy  CommitPolicy
	logger  *slog.Logger
	closed  bool
}

// Option configures a Session.
type Option func(*Session)

// WithLibrary shares compiled keyboards with other sessions using lib.
func WithLibrary(lib *Library) Option {
	return func(s *Session) {
		if lib != nil {
			s.lib = lib
		}
	}
}

// WithCommitPolicy replaces DefaultCommitPolicy. A nil policy behaves like
// NeverCommit.
func WithCommitPolicy(p CommitPolicy) Option {
	return func(s *Session) {
		if p == nil {
			p = NeverCommit
		}
		s.policy = p
	}
}

// WithLogger sets the logger for load events. A session that creates its own
// Library hands the logger on to it and its engines.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a session with no keyboard loaded.
func New(opts ...Option) *Session {
	s := &Session{
		policy: DefaultCommitPolicy,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.lib == nil {
		s.lib = NewLibrary(LibraryLogger(s.logger))
		s.ownsLib = true
	}
	return s
}

// LoadKeyboard loads the KM2 file at path. On failure the previously loaded
// keyboard, if any, stays active and the buffer is untouched.
func (s *Session) LoadKeyboard(path string) error {
	if s.closed {
		return ErrClosed
	}
	eng, err := s.lib.Acquire(path)
	if err != nil {
		s.logger.Warn("keyboard load failed", "path", path, "error", err)
		return err
	}
	s.swap(eng)
	s.logger.Info("keyboard loaded",
		"path", path,
		"name", eng.Layout().Metadata().Name,
		"rules", len(eng.Layout().Rules),
	)
	return nil
}

// LoadKeyboardBytes is LoadKeyboard for an in-memory KM2 image.
func (s *Session) LoadKeyboardBytes(data []byte) error {
	if s.closed {
		return ErrClosed
	}
	eng, err := s.lib.AcquireBytes(data)
	if err != nil {
		s.logger.Warn("keyboard load failed", "bytes", len(data), "error", err)
		return err
	}
	s.swap(eng)
	s.logger.Info("keyboard loaded",
		"bytes", len(data),
		"name", eng.Layout().Metadata().Name,
		"rules", len(eng.Layout().Rules),
	)
	return nil
}

func (s *Session) swap(eng *engine.Engine) {
	s.buf.Reset()
	if s.engine != nil {
		s.lib.Release(s.engine)
	}
	s.engine = eng
}

// ProcessKey applies ev and updates the session.
func (s *Session) ProcessKey(ev engine.KeyEvent) (Result, error) {
	if err := s.ready(); err != nil {
		return Result{}, err
	}

	var out engine.Output
	s.buf, out = s.engine.Process(s.buf, ev)

	res := Result{Output: out}
	if s.policy(ev, out) {
		res.Commit = true
		res.CommitText = out.Composition
		s.buf.Reset()
	}
	return res, nil
}

// ProcessKeyTest reports what ProcessKey would return without changing
// the session.
func (s *Session) ProcessKeyTest(ev engine.KeyEvent) (engine.Output, error) {
	if err := s.ready(); err != nil {
		return engine.Output{}, err
	}
	return s.engine.Test(s.buf, ev), nil
}

// ProcessWinKey is ProcessKey for a Windows virtual-key code.
func (s *Session) ProcessWinKey(winVK uint16, char rune, mods engine.Modifiers) (Result, error) {
	return s.ProcessKey(winEvent(winVK, char, mods))
}

// ProcessWinKeyTest is ProcessKeyTest for a Windows virtual-key code.
func (s *Session) ProcessWinKeyTest(winVK uint16, char rune, mods engine.Modifiers) (engine.Output, error) {
	return s.ProcessKeyTest(winEvent(winVK, char, mods))
}

// winEvent maps a Windows virtual-key code. Codes without a virtual key,
// such as the arrows, become characterless events the engine passes through.
func winEvent(winVK uint16, char rune, mods engine.Modifiers) engine.KeyEvent {
	k, ok := vk.FromWin(winVK)
	if !ok {
		return engine.KeyEvent{Modifiers: mods}
	}
	return engine.KeyEvent{Key: k, Char: char, Modifiers: mods}
}

func (s *Session) ready() error {
	if s.closed {
		return ErrClosed
	}
	if s.engine == nil {
		return ErrNoKeyboard
	}
	return nil
}

// Reset empties the composition, states and history.
func (s *Session) Reset() {
	s.buf.Reset()
}

// Composition returns the current composing text.
func (s *Session) Composition() string {
	return s.buf.Text()
}

// SetComposition replaces the composing text, e.g. after the host moved
// the caret. States and history are cleared.
func (s *Session) SetComposition(text string) error {
	if s.closed {
		return ErrClosed
	}
	return s.buf.Set(text)
}

// Layout returns the loaded layout or nil.
func (s *Session) Layout() *km2.Layout {
	if s.engine == nil {
		return nil
	}
	return s.engine.Layout()
}

// Close releases the keyboard. Further calls report ErrClosed.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.engine != nil {
		s.lib.Release(s.engine)
		s.engine = nil
	}
	s.buf.Reset()
	return nil
}

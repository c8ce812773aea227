package session

import (
	"log/slog"
	"sync"

	"github.com/keymagic/keymagic/internal/engine"
	"github.com/keymagic/keymagic/internal/km2"
)

// Handle identifies a session or a metadata record in a Registry. Zero is
// never issued.
type Handle uint64

// Registry is a handle table for callers that cannot hold Go pointers.
// Sessions and metadata records share one id space, so a metadata handle
// passed to a session operation is reported as InvalidHandle.
type Registry struct {
	mu       sync.Mutex
	next     Handle
	sessions map[Handle]*sessionEntry
	metadata map[Handle]km2.Metadata
	lib      *Library
	opts     []Option
}

type sessionEntry struct {
	mu sync.Mutex
	s  *Session
}

// NewRegistry creates a registry whose sessions share one Library. opts are
// applied to every session it creates; the shared Library logs with the
// logger they set unless WithLibrary supplies one.
func NewRegistry(opts ...Option) *Registry {
	cfg := Session{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	lib := cfg.lib
	if lib == nil {
		lib = NewLibrary(LibraryLogger(cfg.logger))
	}
	return &Registry{
		sessions: make(map[Handle]*sessionEntry),
		metadata: make(map[Handle]km2.Metadata),
		lib:      lib,
		opts:     opts,
	}
}

func (r *Registry) issue() Handle {
	r.next++
	return r.next
}

// NewSession creates a session and returns its handle.
func (r *Registry) NewSession() Handle {
	opts := append([]Option{WithLibrary(r.lib)}, r.opts...)
	s := New(opts...)

	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.issue()
	r.sessions[h] = &sessionEntry{s: s}
	return h
}

// FreeSession closes and forgets the session.
func (r *Registry) FreeSession(h Handle) Status {
	r.mu.Lock()
	e, ok := r.sessions[h]
	delete(r.sessions, h)
	r.mu.Unlock()
	if !ok {
		return InvalidHandle
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return StatusOf(e.s.Close())
}

// Session returns the session behind h. Callers that use it directly must
// not share it between goroutines.
func (r *Registry) Session(h Handle) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[h]
	if !ok {
		return nil, false
	}
	return e.s, true
}

// Sessions returns the number of live sessions.
func (r *Registry) Sessions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Library returns the layout library shared by the registry's sessions.
func (r *Registry) Library() *Library {
	return r.lib
}

// with runs fn on the session behind h while holding its entry lock.
func (r *Registry) with(h Handle, fn func(s *Session) error) Status {
	r.mu.Lock()
	e, ok := r.sessions[h]
	r.mu.Unlock()
	if !ok {
		return InvalidHandle
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return StatusOf(fn(e.s))
}

// LoadKeyboard loads path into the session behind h.
func (r *Registry) LoadKeyboard(h Handle, path string) Status {
	if path == "" {
		return InvalidParameter
	}
	return r.with(h, func(s *Session) error { return s.LoadKeyboard(path) })
}

// LoadKeyboardBytes loads an in-memory KM2 image into the session behind h.
func (r *Registry) LoadKeyboardBytes(h Handle, data []byte) Status {
	if len(data) == 0 {
		return InvalidParameter
	}
	return r.with(h, func(s *Session) error { return s.LoadKeyboardBytes(data) })
}

// ProcessKey feeds ev to the session behind h.
func (r *Registry) ProcessKey(h Handle, ev engine.KeyEvent) (Result, Status) {
	var res Result
	st := r.with(h, func(s *Session) (err error) {
		res, err = s.ProcessKey(ev)
		return err
	})
	return res, st
}

// ProcessKeyTest previews ev without changing the session behind h.
func (r *Registry) ProcessKeyTest(h Handle, ev engine.KeyEvent) (engine.Output, Status) {
	var out engine.Output
	st := r.with(h, func(s *Session) (err error) {
		out, err = s.ProcessKeyTest(ev)
		return err
	})
	return out, st
}

// ProcessWinKey feeds a Windows virtual-key event to the session behind h.
func (r *Registry) ProcessWinKey(h Handle, winVK uint16, char rune, mods engine.Modifiers) (Result, Status) {
	var res Result
	st := r.with(h, func(s *Session) (err error) {
		res, err = s.ProcessWinKey(winVK, char, mods)
		return err
	})
	return res, st
}

// ProcessWinKeyTest previews a Windows virtual-key event.
func (r *Registry) ProcessWinKeyTest(h Handle, winVK uint16, char rune, mods engine.Modifiers) (engine.Output, Status) {
	var out engine.Output
	st := r.with(h, func(s *Session) (err error) {
		out, err = s.ProcessWinKeyTest(winVK, char, mods)
		return err
	})
	return out, st
}

// Reset clears the composition of the session behind h.
func (r *Registry) Reset(h Handle) Status {
	return r.with(h, func(s *Session) error {
		s.Reset()
		return nil
	})
}

// Composition returns the composing text of the session behind h.
func (r *Registry) Composition(h Handle) (string, Status) {
	var text string
	st := r.with(h, func(s *Session) error {
		text = s.Composition()
		return nil
	})
	return text, st
}

// SetComposition replaces the composing text of the session behind h.
func (r *Registry) SetComposition(h Handle, text string) Status {
	return r.with(h, func(s *Session) error { return s.SetComposition(text) })
}

// LoadMetadata reads only the header and info section of a KM2 file.
func (r *Registry) LoadMetadata(path string) (Handle, Status) {
	if path == "" {
		return 0, InvalidParameter
	}
	md, err := km2.LoadMetadataFile(path)
	if err != nil {
		return 0, StatusOf(err)
	}
	return r.addMetadata(md), Success
}

// LoadMetadataBytes is LoadMetadata for an in-memory image.
func (r *Registry) LoadMetadataBytes(data []byte) (Handle, Status) {
	if len(data) == 0 {
		return 0, InvalidParameter
	}
	md, err := km2.LoadMetadata(data)
	if err != nil {
		return 0, StatusOf(err)
	}
	return r.addMetadata(md), Success
}

func (r *Registry) addMetadata(md km2.Metadata) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.issue()
	r.metadata[h] = md
	return h
}

// FreeMetadata forgets a metadata handle.
func (r *Registry) FreeMetadata(h Handle) Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.metadata[h]; !ok {
		return InvalidHandle
	}
	delete(r.metadata, h)
	return Success
}

// Metadata returns the record behind h.
func (r *Registry) Metadata(h Handle) (km2.Metadata, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	md, ok := r.metadata[h]
	return md, ok
}

// Name returns the keyboard name. ok is false for unknown handles and for
// layouts without a name.
func (r *Registry) Name(h Handle) (string, bool) {
	return r.field(h, func(md km2.Metadata) string { return md.Name })
}

// Description returns the keyboard description.
func (r *Registry) Description(h Handle) (string, bool) {
	return r.field(h, func(md km2.Metadata) string { return md.Description })
}

// Hotkey returns the raw hotkey text.
func (r *Registry) Hotkey(h Handle) (string, bool) {
	return r.field(h, func(md km2.Metadata) string { return md.Hotkey })
}

// FontFamily returns the suggested font family.
func (r *Registry) FontFamily(h Handle) (string, bool) {
	return r.field(h, func(md km2.Metadata) string { return md.FontFamily })
}

func (r *Registry) field(h Handle, get func(km2.Metadata) string) (string, bool) {
	md, ok := r.Metadata(h)
	if !ok {
		return "", false
	}
	v := get(md)
	return v, v != ""
}

// IconData copies the icon bytes into buf and returns the icon size. With
// a nil buf it only reports the size. It returns 0 for unknown handles, for
// layouts without an icon and when buf is too short.
func (r *Registry) IconData(h Handle, buf []byte) int {
	md, ok := r.Metadata(h)
	if !ok || len(md.Icon) == 0 {
		return 0
	}
	if buf == nil {
		return len(md.Icon)
	}
	if len(buf) < len(md.Icon) {
		return 0
	}
	return copy(buf, md.Icon)
}

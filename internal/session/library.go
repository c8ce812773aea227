package session

import (
	"encoding/hex"
	"log/slog"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/keymagic/keymagic/internal/engine"
	"github.com/keymagic/keymagic/internal/km2"
)

// Library shares compiled engines between sessions. Entries are keyed by
// the BLAKE2b-256 hash of the KM2 bytes and reference counted; an engine is
// dropped when its last session releases it.
type Library struct {
	mu       sync.Mutex
	entries  map[[blake2b.Size256]byte]*libraryEntry
	byEngine map[*engine.Engine][blake2b.Size256]byte
	opts     []engine.Option
	logger   *slog.Logger
}

type libraryEntry struct {
	engine *engine.Engine
	refs   int
}

// LibraryOption configures a Library.
type LibraryOption func(*Library)

// LibraryLogger sets the logger for the library and every engine it
// compiles.
func LibraryLogger(l *slog.Logger) LibraryOption {
	return func(lib *Library) {
		if l != nil {
			lib.logger = l
			lib.opts = append(lib.opts, engine.WithLogger(l))
		}
	}
}

// EngineOptions are applied to every engine the library compiles.
func EngineOptions(opts ...engine.Option) LibraryOption {
	return func(lib *Library) {
		lib.opts = append(lib.opts, opts...)
	}
}

// NewLibrary creates an empty library.
func NewLibrary(opts ...LibraryOption) *Library {
	lib := &Library{
		entries:  make(map[[blake2b.Size256]byte]*libraryEntry),
		byEngine: make(map[*engine.Engine][blake2b.Size256]byte),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(lib)
	}
	return lib
}

// Fingerprint is the hex BLAKE2b-256 digest the library keys a KM2 image
// by. Journals use it to pin a recording to exact keyboard bytes.
func Fingerprint(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Acquire returns the engine for the keyboard at path, compiling it on
// first use. Each successful Acquire must be paired with a Release.
func (l *Library) Acquire(path string) (*engine.Engine, error) {
	data, err := km2.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return l.AcquireBytes(data)
}

// AcquireBytes is Acquire for an in-memory KM2 image.
func (l *Library) AcquireBytes(data []byte) (*engine.Engine, error) {
	key := blake2b.Sum256(data)

	l.mu.Lock()
	if e, ok := l.entries[key]; ok {
		e.refs++
		l.mu.Unlock()
		return e.engine, nil
	}
	l.mu.Unlock()

	// Compile outside the lock; a racing Acquire of the same bytes keeps
	// whichever engine lands first.
	layout, err := km2.Load(data)
	if err != nil {
		return nil, err
	}
	eng, err := engine.New(layout, l.opts...)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[key]; ok {
		e.refs++
		return e.engine, nil
	}
	l.entries[key] = &libraryEntry{engine: eng, refs: 1}
	l.byEngine[eng] = key
	l.logger.Debug("keyboard compiled",
		"hash", hex.EncodeToString(key[:8]),
		"rules", len(layout.Rules),
	)
	return eng, nil
}

// Release drops one reference to e. Engines not owned by the library are
// ignored.
func (l *Library) Release(e *engine.Engine) {
	if e == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	key, ok := l.byEngine[e]
	if !ok {
		return
	}
	entry := l.entries[key]
	entry.refs--
	if entry.refs <= 0 {
		delete(l.entries, key)
		delete(l.byEngine, e)
	}
}

// Len returns the number of distinct engines currently held.
func (l *Library) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Refs returns the reference count of e, or 0 if the library does not hold it.
func (l *Library) Refs(e *engine.Engine) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	key, ok := l.byEngine[e]
	if !ok {
		return 0
	}
	return l.entries[key].refs
}

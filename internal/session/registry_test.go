package session

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keymagic/keymagic/internal/engine"
	"github.com/keymagic/keymagic/internal/km2"
	"github.com/keymagic/keymagic/internal/testutil"
)

func TestRegistry_SessionLifecycle(t *testing.T) {
	r := NewRegistry(WithCommitPolicy(NeverCommit))
	h := r.NewSession()
	require.NotZero(t, h)
	assert.Equal(t, 1, r.Sessions())

	_, st := r.ProcessKey(h, engine.CharEvent('a'))
	assert.Equal(t, NoKeyboard, st)

	assert.Equal(t, Success, r.LoadKeyboardBytes(h, circumflex().Encode(t)))
	for _, ch := range "aa" {
		_, st = r.ProcessKey(h, engine.CharEvent(ch))
		require.Equal(t, Success, st)
	}
	text, st := r.Composition(h)
	assert.Equal(t, Success, st)
	assert.Equal(t, "â", text)

	out, st := r.ProcessKeyTest(h, engine.CharEvent('e'))
	assert.Equal(t, Success, st)
	assert.Equal(t, "âe", out.Composition)

	assert.Equal(t, Success, r.Reset(h))
	text, _ = r.Composition(h)
	assert.Equal(t, "", text)

	assert.Equal(t, Success, r.SetComposition(h, "e"))
	res, st := r.ProcessWinKey(h, 0x45, 'e', engine.Modifiers{})
	assert.Equal(t, Success, st)
	assert.Equal(t, "ê", res.Composition)

	assert.Equal(t, Success, r.FreeSession(h))
	assert.Equal(t, 0, r.Sessions())
	assert.Equal(t, 0, r.Library().Len())
}

func TestRegistry_InvalidHandles(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, InvalidHandle, r.FreeSession(0))
	assert.Equal(t, InvalidHandle, r.FreeSession(42))
	assert.Equal(t, InvalidHandle, r.Reset(42))
	assert.Equal(t, InvalidHandle, r.SetComposition(42, "x"))
	_, st := r.ProcessKey(42, engine.CharEvent('a'))
	assert.Equal(t, InvalidHandle, st)
	_, st = r.Composition(42)
	assert.Equal(t, InvalidHandle, st)
	assert.Equal(t, InvalidHandle, r.FreeMetadata(42))

	h := r.NewSession()
	require.Equal(t, Success, r.FreeSession(h))
	assert.Equal(t, InvalidHandle, r.FreeSession(h), "double free")
	assert.Equal(t, InvalidHandle, r.Reset(h))

	m, st := r.LoadMetadataBytes(circumflex().Encode(t))
	require.Equal(t, Success, st)
	assert.Equal(t, InvalidHandle, r.Reset(m), "metadata handle is not a session")
	assert.Equal(t, InvalidHandle, r.FreeSession(m))
	assert.Equal(t, Success, r.FreeMetadata(m))
}

func TestRegistry_Statuses(t *testing.T) {
	r := NewRegistry()
	h := r.NewSession()
	defer r.FreeSession(h)

	assert.Equal(t, InvalidParameter, r.LoadKeyboard(h, ""))
	assert.Equal(t, InvalidParameter, r.LoadKeyboardBytes(h, nil))
	assert.Equal(t, FileNotFound, r.LoadKeyboard(h, filepath.Join(t.TempDir(), "x.km2")))
	assert.Equal(t, InvalidFormat, r.LoadKeyboardBytes(h, []byte("KMKL")))
	assert.Equal(t, Utf8Conversion, r.SetComposition(h, "\xc3"))

	_, st := r.ProcessWinKey(h, 0xFF, 0, engine.Modifiers{})
	assert.Equal(t, NoKeyboard, st)
	_, st = r.ProcessWinKeyTest(h, 0x41, 'a', engine.Modifiers{})
	assert.Equal(t, NoKeyboard, st)
}

func TestRegistry_Metadata(t *testing.T) {
	r := NewRegistry()
	path := circumflex().WriteFile(t, t.TempDir(), "c.km2")

	h, st := r.LoadMetadata(path)
	require.Equal(t, Success, st)

	name, ok := r.Name(h)
	assert.True(t, ok)
	assert.Equal(t, "Circumflex", name)
	desc, _ := r.Description(h)
	assert.Equal(t, "doubles become circumflex vowels", desc)
	hk, _ := r.Hotkey(h)
	assert.Equal(t, "ctrl+shift+k", hk)
	font, _ := r.FontFamily(h)
	assert.Equal(t, "Noto Sans", font)

	size := r.IconData(h, nil)
	require.Equal(t, 4, size)
	assert.Equal(t, 0, r.IconData(h, make([]byte, 2)), "short buffer")
	buf := make([]byte, size)
	assert.Equal(t, 4, r.IconData(h, buf))
	assert.Equal(t, []byte("\x89PNG"), buf)

	require.Equal(t, Success, r.FreeMetadata(h))
	_, ok = r.Name(h)
	assert.False(t, ok)
	assert.Equal(t, 0, r.IconData(h, nil))

	_, st = r.LoadMetadata("")
	assert.Equal(t, InvalidParameter, st)
	_, st = r.LoadMetadata(filepath.Join(t.TempDir(), "none.km2"))
	assert.Equal(t, FileNotFound, st)
}

func TestRegistry_MetadataIgnoresRuleTable(t *testing.T) {
	data := testutil.NewLayout().
		Info(km2.InfoName, "Broken").
		Rule(testutil.LHS(km2.Str("a")), km2.Str("b")).
		Encode(t)
	data = data[:len(data)-3]

	r := NewRegistry()
	h, st := r.LoadMetadataBytes(data)
	require.Equal(t, Success, st)
	name, _ := r.Name(h)
	assert.Equal(t, "Broken", name)

	s := r.NewSession()
	assert.Equal(t, InvalidFormat, r.LoadKeyboardBytes(s, data))

	_, ok := r.Description(h)
	assert.False(t, ok, "missing entries report not ok")
}

func TestRegistry_Concurrent(t *testing.T) {
	r := NewRegistry(WithCommitPolicy(NeverCommit))
	data := circumflex().Encode(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := r.NewSession()
			if r.LoadKeyboardBytes(h, data) != Success {
				t.Error("load failed")
				return
			}
			for _, ch := range "aaee" {
				r.ProcessKey(h, engine.CharEvent(ch))
			}
			if text, _ := r.Composition(h); text != "âê" {
				t.Errorf("composition = %q", text)
			}
			r.FreeSession(h)
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, r.Sessions())
	assert.Equal(t, 0, r.Library().Len())
}

func TestRegistry_LoggerReachesEngines(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	r := NewRegistry(WithCommitPolicy(NeverCommit), WithLogger(logger))
	h := r.NewSession()
	require.Equal(t, Success, r.LoadKeyboardBytes(h, circumflex().Encode(t)))
	for _, ch := range "aa" {
		_, st := r.ProcessKey(h, engine.CharEvent(ch))
		require.Equal(t, Success, st)
	}

	assert.Contains(t, logs.String(), "keyboard compiled")
	assert.Contains(t, logs.String(), "keyboard loaded")
	assert.Contains(t, logs.String(), "rule matched")
}

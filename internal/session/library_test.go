package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLibrary_SharesIdenticalKeyboards(t *testing.T) {
	lib := NewLibrary()
	data := circumflex().Encode(t)

	a, err := lib.AcquireBytes(data)
	require.NoError(t, err)
	b, err := lib.AcquireBytes(append([]byte(nil), data...))
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, 1, lib.Len())
	assert.Equal(t, 2, lib.Refs(a))

	c, err := lib.AcquireBytes(upper().Encode(t))
	require.NoError(t, err)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, lib.Len())

	lib.Release(a)
	assert.Equal(t, 1, lib.Refs(a))
	lib.Release(b)
	assert.Equal(t, 0, lib.Refs(a))
	assert.Equal(t, 1, lib.Len())

	lib.Release(c)
	lib.Release(c)
	lib.Release(nil)
	assert.Equal(t, 0, lib.Len())
}

func TestLibrary_AcquireErrors(t *testing.T) {
	lib := NewLibrary()

	_, err := lib.AcquireBytes([]byte("XXXX\x01\x05"))
	require.Error(t, err)
	assert.Equal(t, InvalidFormat, StatusOf(err))

	_, err = lib.Acquire(t.TempDir() + "/none.km2")
	assert.Equal(t, FileNotFound, StatusOf(err))
	assert.Equal(t, 0, lib.Len())
}

func TestLibrary_SessionsShareEngine(t *testing.T) {
	lib := NewLibrary()
	data := circumflex().Encode(t)

	s1 := New(WithLibrary(lib))
	s2 := New(WithLibrary(lib))
	require.NoError(t, s1.LoadKeyboardBytes(data))
	require.NoError(t, s2.LoadKeyboardBytes(data))
	assert.Equal(t, 1, lib.Len())
	assert.Same(t, s1.Layout(), s2.Layout())

	require.NoError(t, s1.LoadKeyboardBytes(upper().Encode(t)))
	assert.Equal(t, 2, lib.Len())

	require.NoError(t, s2.Close())
	assert.Equal(t, 1, lib.Len())
	require.NoError(t, s1.Close())
	assert.Equal(t, 0, lib.Len())
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]byte("KMKL"))
	assert.Len(t, a, 64)
	assert.Equal(t, a, Fingerprint([]byte("KMKL")))
	assert.NotEqual(t, a, Fingerprint([]byte("KMKM")))
}

package km2

import (
	"bytes"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func FuzzLoad(f *testing.F) {
	sample, err := Encode(sampleLayout())
	require.NoError(f, err)

	f.Add(sample)
	f.Add(sample[:len(sample)/2])
	f.Add(header15(0, 0, 0).b)
	f.Add((&image{}).str("KMKL").raw(1, 3).u16(1, 1).raw(0, 1, 1, 0).b)
	f.Add([]byte("KMKL"))
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		meta, metaErr := LoadMetadata(data)

		l, err := Load(data)
		if err != nil {
			assert.True(t, IsLoadError(err), "load error must be a *LoadError: %v", err)
			return
		}

		// Anything Load accepts has readable metadata.
		require.NoError(t, metaErr)
		assert.Equal(t, l.Metadata(), meta)

		encoded, err := Encode(l)
		require.NoError(t, err)
		again, err := Load(encoded)
		require.NoError(t, err)

		assert.Equal(t, l.Options, again.Options)
		assert.True(t, slices.Equal(l.Strings, again.Strings), "strings changed")
		assert.True(t, slices.EqualFunc(l.Info, again.Info, func(a, b InfoEntry) bool {
			return a.ID == b.ID && bytes.Equal(a.Data, b.Data)
		}), "info changed")
		assert.True(t, slices.EqualFunc(l.Rules, again.Rules, func(a, b Rule) bool {
			return slices.Equal(a.LHS, b.LHS) && slices.Equal(a.RHS, b.RHS)
		}), "rules changed")
	})
}

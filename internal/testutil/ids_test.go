package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequentialIDs(t *testing.T) {
	gen := NewSequentialIDs("rec")
	assert.Equal(t, "rec-0001", gen.Generate())
	assert.Equal(t, "rec-0002", gen.Generate())
}

func TestSequentialIDs_EmptyPrefixDefault(t *testing.T) {
	gen := NewSequentialIDs("")
	assert.Equal(t, "trace-0001", gen.Generate())
}

func TestSequentialIDs_ThreadSafe(t *testing.T) {
	gen := NewSequentialIDs("x")

	done := make(chan []string)
	for i := 0; i < 10; i++ {
		go func() {
			var ids []string
			for j := 0; j < 100; j++ {
				ids = append(ids, gen.Generate())
			}
			done <- ids
		}()
	}

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		for _, id := range <-done {
			assert.False(t, seen[id], "duplicate id %s", id)
			seen[id] = true
		}
	}
	assert.Len(t, seen, 1000)
}

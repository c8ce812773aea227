package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates trace ids of the form "<prefix>-0001",
// "<prefix>-0002", ... so journal contents are identical across runs.
//
// Thread-safety: Generate is safe for concurrent use.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs creates a generator. An empty prefix becomes "trace".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "trace"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next id.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}

package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keymagic/keymagic/internal/km2"
	"github.com/keymagic/keymagic/internal/testutil"
)

// createTestStore opens a journal in a temp dir with a deterministic clock
// and sequential trace ids.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	s, err := Open(path,
		WithClock(testutil.NewDeterministicClock()),
		WithIDGenerator(testutil.NewSequentialIDs("trace")),
	)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// circumflexKM2 is a small keyboard: "aa" => "â", "ee" => "ê".
func circumflexKM2(t *testing.T) []byte {
	t.Helper()
	return testutil.NewLayout().
		Info(km2.InfoName, "Circumflex").
		Rule(testutil.LHS(km2.Str("aa")), km2.Str("â")).
		Rule(testutil.LHS(km2.Str("ee")), km2.Str("ê")).
		Encode(t)
}

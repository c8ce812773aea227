package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keymagic/keymagic/internal/composition"
	"github.com/keymagic/keymagic/internal/engine"
	"github.com/keymagic/keymagic/internal/session"
	"github.com/keymagic/keymagic/internal/testutil"
	"github.com/keymagic/keymagic/internal/vk"
)

func TestBeginTrace(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	kb := circumflexKM2(t)

	id, err := s.BeginTrace(ctx, TraceInfo{KeyboardPath: "c.km2", Keyboard: kb, CommitKeys: []string{"space", "return"}})
	require.NoError(t, err)
	assert.Equal(t, "trace-0001", id)

	tr, err := s.ReadTrace(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, session.Fingerprint(kb), tr.KeyboardHash)
	assert.Equal(t, "c.km2", tr.KeyboardPath)
	assert.Equal(t, kb, tr.Keyboard)
	assert.Equal(t, []string{"space", "return"}, tr.CommitKeys)
	assert.True(t, testutil.Epoch.Equal(tr.CreatedAt))
	assert.Empty(t, tr.Keystrokes)
	assert.NotNil(t, tr.Keystrokes)

	_, err = s.BeginTrace(ctx, TraceInfo{})
	assert.Error(t, err)
}

func TestAppendKeystroke(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	id, err := s.BeginTrace(ctx, TraceInfo{Keyboard: circumflexKM2(t)})
	require.NoError(t, err)

	ev := engine.KeyEvent{Key: vk.KeyA, Char: 'a', Modifiers: engine.Modifiers{Shift: true}}
	res := session.Result{
		Output: engine.Output{
			Action:      composition.Action{Kind: composition.DeleteBackAndInsert, Text: "â", DeleteCount: 1},
			Composition: "â",
			Consumed:    true,
			Rule:        1,
		},
	}
	require.NoError(t, s.AppendKeystroke(ctx, id, 1, ev, res))

	// Same seq again is a no-op.
	require.NoError(t, s.AppendKeystroke(ctx, id, 1, engine.CharEvent('x'), session.Result{}))

	commit := session.Result{Commit: true, CommitText: "â "}
	require.NoError(t, s.AppendKeystroke(ctx, id, 2, engine.KeyEvent{Key: vk.Space, Char: ' '}, commit))

	tr, err := s.ReadTrace(ctx, id)
	require.NoError(t, err)
	require.Len(t, tr.Keystrokes, 2)
	assert.Equal(t, Keystroke{Seq: 1, Event: ev, Result: res}, tr.Keystrokes[0])
	assert.Equal(t, commit, tr.Keystrokes[1].Result)
	assert.Equal(t, 2, tr.TraceSummary.Keystrokes)

	err = s.AppendKeystroke(ctx, "no-such-trace", 1, ev, res)
	assert.Error(t, err, "foreign key must reject unknown traces")
}

func TestListTraces(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	traces, err := s.ListTraces(ctx)
	require.NoError(t, err)
	assert.Empty(t, traces)
	assert.NotNil(t, traces)

	kb := circumflexKM2(t)
	first, err := s.BeginTrace(ctx, TraceInfo{Keyboard: kb})
	require.NoError(t, err)
	second, err := s.BeginTrace(ctx, TraceInfo{Keyboard: kb})
	require.NoError(t, err)
	require.NoError(t, s.AppendKeystroke(ctx, second, 1, engine.CharEvent('a'), session.Result{}))

	traces, err = s.ListTraces(ctx)
	require.NoError(t, err)
	require.Len(t, traces, 2)
	assert.Equal(t, first, traces[0].ID)
	assert.Equal(t, 0, traces[0].Keystrokes)
	assert.Equal(t, second, traces[1].ID)
	assert.Equal(t, 1, traces[1].Keystrokes)
	assert.True(t, traces[0].CreatedAt.Before(traces[1].CreatedAt))
}

func TestReadTrace_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ReadTrace(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrTraceNotFound)
}

func TestDeleteTrace(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	id, err := s.BeginTrace(ctx, TraceInfo{Keyboard: circumflexKM2(t)})
	require.NoError(t, err)
	require.NoError(t, s.AppendKeystroke(ctx, id, 1, engine.CharEvent('a'), session.Result{}))

	require.NoError(t, s.DeleteTrace(ctx, id))
	_, err = s.ReadTrace(ctx, id)
	assert.ErrorIs(t, err, ErrTraceNotFound)

	var n int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM keystrokes`).Scan(&n))
	assert.Zero(t, n, "keystrokes cascade with their trace")

	assert.ErrorIs(t, s.DeleteTrace(ctx, id), ErrTraceNotFound)
}

package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/keymagic/keymagic/internal/engine"
	"github.com/keymagic/keymagic/internal/session"
)

// TraceInfo describes the session a new trace records.
type TraceInfo struct {
	KeyboardPath string
	Keyboard     []byte   // the exact KM2 image loaded
	CommitKeys   []string // commit policy key names; empty means never commit
}

// BeginTrace inserts a trace header and returns its id.
func (s *Store) BeginTrace(ctx context.Context, info TraceInfo) (string, error) {
	if len(info.Keyboard) == 0 {
		return "", fmt.Errorf("begin trace: keyboard image is empty")
	}

	id := s.ids.Generate()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO traces
		(id, keyboard_hash, keyboard_path, keyboard, commit_keys, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		id,
		session.Fingerprint(info.Keyboard),
		info.KeyboardPath,
		info.Keyboard,
		strings.Join(info.CommitKeys, ","),
		s.clock.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("begin trace: %w", err)
	}
	return id, nil
}

// AppendKeystroke records one key event and the result it produced.
// Uses ON CONFLICT DO NOTHING so rewriting the same seq is a no-op.
//
// Note: the trace must exist (foreign key constraint).
func (s *Store) AppendKeystroke(ctx context.Context, traceID string, seq int64, ev engine.KeyEvent, res session.Result) error {
	evJSON, err := marshalEvent(ev)
	if err != nil {
		return fmt.Errorf("append keystroke: %w", err)
	}
	resJSON, err := marshalResult(res)
	if err != nil {
		return fmt.Errorf("append keystroke: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO keystrokes (trace_id, seq, event, result)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(trace_id, seq) DO NOTHING
	`, traceID, seq, evJSON, resJSON)
	if err != nil {
		return fmt.Errorf("append keystroke: %w", err)
	}
	return nil
}

// DeleteTrace removes a trace and its keystrokes.
func (s *Store) DeleteTrace(ctx context.Context, traceID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM traces WHERE id = ?`, traceID)
	if err != nil {
		return fmt.Errorf("delete trace: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete trace: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete trace %s: %w", traceID, ErrTraceNotFound)
	}
	return nil
}

// Recorder writes a trace while driving its own session. Each Press runs
// the key through the session and journals the result.
type Recorder struct {
	store   *Store
	session *session.Session
	traceID string
	seq     int64
}

// NewRecorder starts a session on info.Keyboard with the commit policy
// named by info.CommitKeys and begins a trace for it.
func (s *Store) NewRecorder(ctx context.Context, info TraceInfo, opts ...session.Option) (*Recorder, error) {
	policy, err := session.PolicyFromNames(info.CommitKeys)
	if err != nil {
		return nil, err
	}
	sess := session.New(append(slices.Clone(opts), session.WithCommitPolicy(policy))...)
	if err := sess.LoadKeyboardBytes(info.Keyboard); err != nil {
		sess.Close()
		return nil, err
	}
	id, err := s.BeginTrace(ctx, info)
	if err != nil {
		sess.Close()
		return nil, err
	}
	return &Recorder{store: s, session: sess, traceID: id}, nil
}

// TraceID returns the id of the trace being written.
func (r *Recorder) TraceID() string {
	return r.traceID
}

// Composition returns the recorded session's composing text.
func (r *Recorder) Composition() string {
	return r.session.Composition()
}

// Press processes ev and journals the result.
func (r *Recorder) Press(ctx context.Context, ev engine.KeyEvent) (session.Result, error) {
	res, err := r.session.ProcessKey(ev)
	if err != nil {
		return res, err
	}
	r.seq++
	if err := r.store.AppendKeystroke(ctx, r.traceID, r.seq, ev, res); err != nil {
		return res, err
	}
	return res, nil
}

// Close releases the recorded session. The trace stays in the journal.
func (r *Recorder) Close() error {
	return r.session.Close()
}

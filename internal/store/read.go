package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/keymagic/keymagic/internal/engine"
	"github.com/keymagic/keymagic/internal/session"
)

// ErrTraceNotFound is returned for unknown trace ids.
var ErrTraceNotFound = errors.New("trace not found")

// TraceSummary is a trace header without keystrokes or keyboard bytes.
type TraceSummary struct {
	ID           string    `json:"id"`
	KeyboardHash string    `json:"keyboard_hash"`
	KeyboardPath string    `json:"keyboard_path,omitempty"`
	CommitKeys   []string  `json:"commit_keys,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	Keystrokes   int       `json:"keystrokes"`
}

// Keystroke is one journaled key event.
type Keystroke struct {
	Seq    int64           `json:"seq"`
	Event  engine.KeyEvent `json:"event"`
	Result session.Result  `json:"result"`
}

// Trace is a complete recording.
type Trace struct {
	TraceSummary
	Keyboard   []byte      `json:"-"`
	Keystrokes []Keystroke `json:"keystrokes"`
}

// ListTraces returns every trace header, oldest first.
// Returns an empty slice (not nil) for an empty journal.
func (s *Store) ListTraces(ctx context.Context) ([]TraceSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.keyboard_hash, t.keyboard_path, t.commit_keys, t.created_at,
		       (SELECT COUNT(*) FROM keystrokes k WHERE k.trace_id = t.id)
		FROM traces t
		ORDER BY t.created_at ASC, t.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query traces: %w", err)
	}
	defer rows.Close()

	traces := []TraceSummary{}
	for rows.Next() {
		var (
			ts         TraceSummary
			commitKeys string
			createdAt  string
		)
		if err := rows.Scan(&ts.ID, &ts.KeyboardHash, &ts.KeyboardPath, &commitKeys, &createdAt, &ts.Keystrokes); err != nil {
			return nil, fmt.Errorf("scan trace: %w", err)
		}
		if err := fillSummary(&ts, commitKeys, createdAt); err != nil {
			return nil, err
		}
		traces = append(traces, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate traces: %w", err)
	}
	return traces, nil
}

// ReadTrace returns the trace with all keystrokes in seq order.
func (s *Store) ReadTrace(ctx context.Context, id string) (Trace, error) {
	var (
		tr         Trace
		commitKeys string
		createdAt  string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, keyboard_hash, keyboard_path, keyboard, commit_keys, created_at
		FROM traces
		WHERE id = ?
	`, id).Scan(&tr.ID, &tr.KeyboardHash, &tr.KeyboardPath, &tr.Keyboard, &commitKeys, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Trace{}, fmt.Errorf("read trace %s: %w", id, ErrTraceNotFound)
	}
	if err != nil {
		return Trace{}, fmt.Errorf("read trace %s: %w", id, err)
	}
	if err := fillSummary(&tr.TraceSummary, commitKeys, createdAt); err != nil {
		return Trace{}, err
	}

	tr.Keystrokes, err = s.readKeystrokes(ctx, id)
	if err != nil {
		return Trace{}, err
	}
	tr.TraceSummary.Keystrokes = len(tr.Keystrokes)
	return tr, nil
}

func (s *Store) readKeystrokes(ctx context.Context, traceID string) ([]Keystroke, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, event, result
		FROM keystrokes
		WHERE trace_id = ?
		ORDER BY seq ASC
	`, traceID)
	if err != nil {
		return nil, fmt.Errorf("query keystrokes: %w", err)
	}
	defer rows.Close()

	keystrokes := []Keystroke{}
	for rows.Next() {
		var (
			k         Keystroke
			evJSON    string
			resultRaw string
		)
		if err := rows.Scan(&k.Seq, &evJSON, &resultRaw); err != nil {
			return nil, fmt.Errorf("scan keystroke: %w", err)
		}
		if k.Event, err = unmarshalEvent(evJSON); err != nil {
			return nil, err
		}
		if k.Result, err = unmarshalResult(resultRaw); err != nil {
			return nil, err
		}
		keystrokes = append(keystrokes, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keystrokes: %w", err)
	}
	return keystrokes, nil
}

func fillSummary(ts *TraceSummary, commitKeys, createdAt string) error {
	if commitKeys != "" {
		ts.CommitKeys = strings.Split(commitKeys, ",")
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return fmt.Errorf("parse created_at of %s: %w", ts.ID, err)
	}
	ts.CreatedAt = t
	return nil
}

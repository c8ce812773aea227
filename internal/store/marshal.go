package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/keymagic/keymagic/internal/engine"
	"github.com/keymagic/keymagic/internal/session"
)

// marshalJSON renders v as compact JSON without HTML escaping, so composed
// text is stored as written.
func marshalJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	// Encoder adds a trailing newline.
	return strings.TrimSpace(buf.String()), nil
}

func marshalEvent(ev engine.KeyEvent) (string, error) {
	s, err := marshalJSON(ev)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	return s, nil
}

func marshalResult(res session.Result) (string, error) {
	s, err := marshalJSON(res)
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	return s, nil
}

func unmarshalEvent(data string) (engine.KeyEvent, error) {
	var ev engine.KeyEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return engine.KeyEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return ev, nil
}

func unmarshalResult(data string) (session.Result, error) {
	var res session.Result
	if err := json.Unmarshal([]byte(data), &res); err != nil {
		return session.Result{}, fmt.Errorf("unmarshal result: %w", err)
	}
	return res, nil
}

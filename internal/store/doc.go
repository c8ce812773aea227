// Package store is the SQLite keystroke journal.
//
// A trace records one typing session: the exact KM2 image that was loaded,
// the commit policy, and every key event with the result the session
// produced for it. Because the engine is deterministic, a trace can be
// replayed later against a fresh session and every result must match.
//
// # Ordering
//
// Keystrokes are ordered by their per-trace seq, never by timestamps.
// Queries always include ORDER BY so results are identical across runs.
//
// # Database configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
package store

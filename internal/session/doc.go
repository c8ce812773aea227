// Package session is the stateful facade hosts talk to.
//
// A Session owns one composition buffer and points at one compiled engine.
// Engines are shared through a Library, keyed by the content hash of the KM2
// bytes, so a hundred text fields using the same keyboard compile it once.
//
// THREAD-SAFETY:
//   - Session: not safe for concurrent use; one goroutine per session
//   - Library and Registry: safe for concurrent use
//
// Registry wraps sessions and metadata previews in integer handles with
// status codes. It is the surface the C ABI in cmd/libkeymagic exports, and
// it never panics on freed or unknown handles.
package session

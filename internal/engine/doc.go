// Package engine implements the KeyMagic rule matching engine.
//
// An Engine is built once from a loaded layout and is immutable afterwards,
// so one Engine can serve any number of sessions. Process is a pure function
// of (buffer, key event): it returns a new buffer and leaves its input alone.
//
// PROCESSING ORDER:
//
//  1. Rules are compiled to patterns and stable-sorted once by precedes:
//     more state conditions, then more key conditions, then longer text,
//     then declaration order.
//  2. For each key event the first matching pattern wins. Text-only patterns
//     see the composing text plus the typed character. Key patterns see the
//     composing text only and must match the event's key and modifiers.
//  3. The matched suffix is replaced by the rendered output and text-only
//     rules are re-applied without key input, at most DefaultMaxRecursion
//     times.
//  4. With no match the fallback handles backspace, unused keys and plain
//     character insertion.
//
// The host action is always the scalar-level diff between the text before
// and after the key, so a host that applies actions in order stays in sync
// with Output.Composition.
package engine

package engine

import (
	"slices"
)

// precedes reports whether a must be tried before b.
//
// Rules with more switch-state conditions come first, then rules with more
// virtual-key conditions, then rules consuming more text. Ties keep
// declaration order, so the result is a strict total order.
func precedes(a, b *pattern) bool {
	if a.states != b.states {
		return a.states > b.states
	}
	if a.keys != b.keys {
		return a.keys > b.keys
	}
	if a.length != b.length {
		return a.length > b.length
	}
	return a.index < b.index
}

// sortPatterns orders patterns for first-match evaluation.
func sortPatterns(ps []*pattern) {
	slices.SortStableFunc(ps, func(a, b *pattern) int {
		switch {
		case precedes(a, b):
			return -1
		case precedes(b, a):
			return 1
		}
		return 0
	})
}

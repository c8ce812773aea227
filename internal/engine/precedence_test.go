package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keymagic/keymagic/internal/km2"
	"github.com/keymagic/keymagic/internal/testutil"
	"github.com/keymagic/keymagic/internal/vk"
)

func TestPrecedes(t *testing.T) {
	tests := []struct {
		name string
		a, b pattern
		want bool
	}{
		{"more states first", pattern{states: 1, index: 5}, pattern{keys: 3, length: 9}, true},
		{"more keys first", pattern{keys: 2, index: 5}, pattern{keys: 1, length: 9}, true},
		{"longer text first", pattern{length: 3, index: 5}, pattern{length: 2}, true},
		{"declaration order breaks ties", pattern{length: 2, index: 1}, pattern{length: 2, index: 2}, true},
		{"never precedes itself", pattern{length: 2, index: 1}, pattern{length: 2, index: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, precedes(&tt.a, &tt.b))
			if tt.want {
				assert.False(t, precedes(&tt.b, &tt.a), "order must be asymmetric")
			}
		})
	}
}

func TestSortPatterns(t *testing.T) {
	l := testutil.NewLayout().
		Vars("abc").
		Rule(testutil.LHS(km2.Str("a")), km2.Str("0")).                    // length 1
		Rule(testutil.LHS(km2.Str("ab")), km2.Str("1")).                   // length 2
		Rule(km2.Keys(vk.Shift, vk.KeyA), km2.Str("2")).                   // 2 keys
		Rule(testutil.LHS(km2.Switch(4), km2.Str("a")), km2.Str("3")).     // 1 state
		Rule(testutil.LHS(km2.Var(1)), km2.Str("4")).                      // length 3
		Rule(testutil.LHS(km2.Str("x"), km2.Keys(vk.KeyB)), km2.Str("5")). // 1 key
		Rule(testutil.LHS(km2.AnyOf(1), km2.Str("b")), km2.Str("6")).      // length 2
		Build()

	e, err := New(l)
	require.NoError(t, err)

	var order []int
	for _, p := range e.patterns {
		order = append(order, p.index)
	}
	assert.Equal(t, []int{3, 2, 5, 4, 1, 6, 0}, order)
}

func TestStopsRecursion(t *testing.T) {
	assert.True(t, stopsRecursion(""))
	assert.True(t, stopsRecursion("a"))
	assert.True(t, stopsRecursion("~"))
	assert.False(t, stopsRecursion(" "))
	assert.False(t, stopsRecursion("ab"))
	assert.False(t, stopsRecursion("က"))
}

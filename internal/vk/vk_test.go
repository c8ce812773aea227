package vk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedCodes(t *testing.T) {
	tests := []struct {
		key  Key
		code uint16
	}{
		{Null, 1},
		{Back, 2},
		{Tab, 3},
		{Return, 4},
		{Space, 12},
		{Delete, 15},
		{Key0, 16},
		{Key9, 25},
		{KeyA, 26},
		{KeyZ, 51},
		{Numpad0, 52},
		{Numpad9, 61},
		{F1, 68},
		{F12, 79},
		{LShift, 80},
		{RMenu, 85},
		{Oem1, 86},
		{Oem7, 96},
		{Ico00, 101},
	}

	for _, tt := range tests {
		t.Run(tt.key.String(), func(t *testing.T) {
			assert.Equal(t, tt.code, uint16(tt.key))
		})
	}
}

func TestNames(t *testing.T) {
	assert.Equal(t, "VK_KEY_A", KeyA.String())
	assert.Equal(t, "VK_KEY_7", Key7.String())
	assert.Equal(t, "VK_NUMPAD3", Numpad3.String())
	assert.Equal(t, "VK_F10", F10.String())
	assert.Equal(t, "VK_OEM_PLUS", OemPlus.String())
	assert.Equal(t, "VK_UNKNOWN", Key(0).String())
	assert.Equal(t, "VK_UNKNOWN", Key(500).String())
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		want Key
	}{
		{"VK_KEY_A", KeyA},
		{"vk_key_a", KeyA},
		{"KEY_A", KeyA},
		{"VK_BACK", Back},
		{"back", Back},
		{"VK_ENTER", Return},
		{"VK_ALT_GR", RMenu},
		{"VK_CAPSLOCK", Capital},
		{" VK_SPACE ", Space},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := Parse("VK_NOPE")
	assert.False(t, ok)
	_, ok = Parse("")
	assert.False(t, ok)
}

func TestWindowsMapping(t *testing.T) {
	assert.Equal(t, uint16(0x08), Back.Win())
	assert.Equal(t, uint16(0x41), KeyA.Win())
	assert.Equal(t, uint16(0x70), F1.Win())
	assert.Equal(t, uint16(0xA0), LShift.Win())
	assert.Equal(t, uint16(0xBA), Oem1.Win())

	for k := Back; k <= Last; k++ {
		back, ok := FromWin(k.Win())
		require.True(t, ok, k.String())
		assert.Equal(t, k, back)
	}

	_, ok := FromWin(0xFF)
	assert.False(t, ok)
}

func TestFromRaw(t *testing.T) {
	k, ok := FromRaw(26)
	assert.True(t, ok)
	assert.Equal(t, KeyA, k)

	_, ok = FromRaw(0)
	assert.False(t, ok)
	_, ok = FromRaw(102)
	assert.False(t, ok)
}

func TestModifiers(t *testing.T) {
	assert.Equal(t, ShiftModifier, LShift.Modifier())
	assert.Equal(t, CtrlModifier, Control.Modifier())
	assert.Equal(t, AltModifier, RMenu.Modifier())
	assert.Equal(t, NoModifier, KeyA.Modifier())
	assert.True(t, Shift.IsModifier())
	assert.False(t, Capital.IsModifier())
}

func TestTextMarshaling(t *testing.T) {
	b, err := Back.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "VK_BACK", string(b))

	b, err = Key(0).MarshalText()
	require.NoError(t, err)
	assert.Empty(t, b)

	_, err = Key(500).MarshalText()
	assert.Error(t, err)

	var k Key
	require.NoError(t, k.UnmarshalText([]byte("key_a")))
	assert.Equal(t, KeyA, k)
	require.NoError(t, k.UnmarshalText(nil))
	assert.Equal(t, Key(0), k)
	assert.Error(t, k.UnmarshalText([]byte("VK_NOPE")))
}

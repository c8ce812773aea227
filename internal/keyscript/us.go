package keyscript

import "github.com/keymagic/keymagic/internal/vk"

type press struct {
	key   vk.Key
	shift bool
}

// oem lists the US punctuation keys as unshifted, shifted pairs.
var oem = []struct {
	key          vk.Key
	plain, shift rune
}{
	{vk.Oem1, ';', ':'},
	{vk.OemPlus, '=', '+'},
	{vk.OemComma, ',', '<'},
	{vk.OemMinus, '-', '_'},
	{vk.OemPeriod, '.', '>'},
	{vk.Oem2, '/', '?'},
	{vk.Oem3, '`', '~'},
	{vk.Oem4, '[', '{'},
	{vk.Oem5, '\\', '|'},
	{vk.Oem6, ']', '}'},
	{vk.Oem7, '\'', '"'},
}

// digitShift is the shifted character on the number row, indexed by digit.
var digitShift = [10]rune{')', '!', '@', '#', '$', '%', '^', '&', '*', '('}

var usChars = buildUSChars()

func buildUSChars() map[rune]press {
	m := map[rune]press{' ': {key: vk.Space}}
	for i := 0; i < 26; i++ {
		k := vk.KeyA + vk.Key(i)
		m[rune('a'+i)] = press{key: k}
		m[rune('A'+i)] = press{key: k, shift: true}
	}
	for i := 0; i < 10; i++ {
		k := vk.Key0 + vk.Key(i)
		m[rune('0'+i)] = press{key: k}
		m[digitShift[i]] = press{key: k, shift: true}
	}
	for _, o := range oem {
		m[o.plain] = press{key: o.key}
		m[o.shift] = press{key: o.key, shift: true}
	}
	return m
}

// charFor is the character a US keyboard produces for k, or 0.
func charFor(k vk.Key, shift, caps bool) rune {
	switch {
	case k >= vk.KeyA && k <= vk.KeyZ:
		if shift != caps {
			return rune('A' + (k - vk.KeyA))
		}
		return rune('a' + (k - vk.KeyA))
	case k >= vk.Key0 && k <= vk.Key9:
		if shift {
			return digitShift[k-vk.Key0]
		}
		return rune('0' + (k - vk.Key0))
	case k >= vk.Numpad0 && k <= vk.Numpad9:
		return rune('0' + (k - vk.Numpad0))
	case k == vk.Space:
		return ' '
	}
	for _, o := range oem {
		if o.key == k {
			if shift {
				return o.shift
			}
			return o.plain
		}
	}
	return 0
}

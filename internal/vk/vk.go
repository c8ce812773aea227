// Package vk defines the portable virtual-key space shared by KM2 files,
// the matching engine and every host shim.
//
// Codes are fixed by the KM2 format: a PREDEFINED opcode in a compiled rule
// stores one of these values verbatim, so the numbering must never change.
// Hosts translate their native key codes into this space (see FromWin for
// the Windows mapping) before calling the engine. Codes outside the table
// are treated as characterless keys that match no rule.
package vk

import (
	"fmt"
	"strings"
)

// Key is a KeyMagic virtual-key code.
type Key uint16

const (
	Null    Key = 1
	Back    Key = 2
	Tab     Key = 3
	Return  Key = 4
	Shift   Key = 5
	Control Key = 6
	Menu    Key = 7 // Alt
	Pause   Key = 8
	Capital Key = 9 // Caps Lock
	Kanji   Key = 10
	Escape  Key = 11
	Space   Key = 12
	Prior   Key = 13 // Page Up
	Next    Key = 14 // Page Down
	Delete  Key = 15

	Key0 Key = 16
	Key1 Key = 17
	Key2 Key = 18
	Key3 Key = 19
	Key4 Key = 20
	Key5 Key = 21
	Key6 Key = 22
	Key7 Key = 23
	Key8 Key = 24
	Key9 Key = 25

	KeyA Key = 26
	KeyB Key = 27
	KeyC Key = 28
	KeyD Key = 29
	KeyE Key = 30
	KeyF Key = 31
	KeyG Key = 32
	KeyH Key = 33
	KeyI Key = 34
	KeyJ Key = 35
	KeyK Key = 36
	KeyL Key = 37
	KeyM Key = 38
	KeyN Key = 39
	KeyO Key = 40
	KeyP Key = 41
	KeyQ Key = 42
	KeyR Key = 43
	KeyS Key = 44
	KeyT Key = 45
	KeyU Key = 46
	KeyV Key = 47
	KeyW Key = 48
	KeyX Key = 49
	KeyY Key = 50
	KeyZ Key = 51

	Numpad0 Key = 52
	Numpad1 Key = 53
	Numpad2 Key = 54
	Numpad3 Key = 55
	Numpad4 Key = 56
	Numpad5 Key = 57
	Numpad6 Key = 58
	Numpad7 Key = 59
	Numpad8 Key = 60
	Numpad9 Key = 61

	Multiply  Key = 62
	Add       Key = 63
	Separator Key = 64
	Subtract  Key = 65
	Decimal   Key = 66
	Divide    Key = 67

	F1  Key = 68
	F2  Key = 69
	F3  Key = 70
	F4  Key = 71
	F5  Key = 72
	F6  Key = 73
	F7  Key = 74
	F8  Key = 75
	F9  Key = 76
	F10 Key = 77
	F11 Key = 78
	F12 Key = 79

	LShift   Key = 80
	RShift   Key = 81
	LControl Key = 82
	RControl Key = 83
	LMenu    Key = 84
	RMenu    Key = 85 // Right Alt / AltGr

	Oem1      Key = 86 // ;: on US
	OemPlus   Key = 87
	OemComma  Key = 88
	OemMinus  Key = 89
	OemPeriod Key = 90
	Oem2      Key = 91 // /? on US
	Oem3      Key = 92 // `~ on US
	Oem4      Key = 93 // [{ on US
	Oem5      Key = 94 // \| on US
	Oem6      Key = 95 // ]} on US
	Oem7      Key = 96 // '" on US
	Oem8      Key = 97
	OemAx     Key = 98
	Oem102    Key = 99
	IcoHelp   Key = 100
	Ico00     Key = 101
)

// First and Last bound the defined code range.
const (
	First = Null
	Last  = Ico00
)

// info describes one key: its canonical KMS name and Windows VK code.
type info struct {
	name string
	win  uint16
}

var table = buildTable()

func buildTable() [Last + 1]info {
	var t [Last + 1]info
	set := func(k Key, name string, win uint16) { t[k] = info{name: name, win: win} }

	set(Null, "NULL", 0x00)
	set(Back, "VK_BACK", 0x08)
	set(Tab, "VK_TAB", 0x09)
	set(Return, "VK_RETURN", 0x0D)
	set(Shift, "VK_SHIFT", 0x10)
	set(Control, "VK_CONTROL", 0x11)
	set(Menu, "VK_MENU", 0x12)
	set(Pause, "VK_PAUSE", 0x13)
	set(Capital, "VK_CAPITAL", 0x14)
	set(Kanji, "VK_KANJI", 0x19)
	set(Escape, "VK_ESCAPE", 0x1B)
	set(Space, "VK_SPACE", 0x20)
	set(Prior, "VK_PRIOR", 0x21)
	set(Next, "VK_NEXT", 0x22)
	set(Delete, "VK_DELETE", 0x2E)

	for i := Key(0); i < 10; i++ {
		set(Key0+i, "VK_KEY_"+string(rune('0'+i)), 0x30+uint16(i))
		set(Numpad0+i, "VK_NUMPAD"+string(rune('0'+i)), 0x60+uint16(i))
	}
	for i := Key(0); i < 26; i++ {
		set(KeyA+i, "VK_KEY_"+string(rune('A'+i)), 0x41+uint16(i))
	}

	set(Multiply, "VK_MULTIPLY", 0x6A)
	set(Add, "VK_ADD", 0x6B)
	set(Separator, "VK_SEPARATOR", 0x6C)
	set(Subtract, "VK_SUBTRACT", 0x6D)
	set(Decimal, "VK_DECIMAL", 0x6E)
	set(Divide, "VK_DIVIDE", 0x6F)

	fnames := []string{"VK_F1", "VK_F2", "VK_F3", "VK_F4", "VK_F5", "VK_F6",
		"VK_F7", "VK_F8", "VK_F9", "VK_F10", "VK_F11", "VK_F12"}
	for i, n := range fnames {
		set(F1+Key(i), n, 0x70+uint16(i))
	}

	set(LShift, "VK_LSHIFT", 0xA0)
	set(RShift, "VK_RSHIFT", 0xA1)
	set(LControl, "VK_LCONTROL", 0xA2)
	set(RControl, "VK_RCONTROL", 0xA3)
	set(LMenu, "VK_LMENU", 0xA4)
	set(RMenu, "VK_RMENU", 0xA5)

	set(Oem1, "VK_OEM_1", 0xBA)
	set(OemPlus, "VK_OEM_PLUS", 0xBB)
	set(OemComma, "VK_OEM_COMMA", 0xBC)
	set(OemMinus, "VK_OEM_MINUS", 0xBD)
	set(OemPeriod, "VK_OEM_PERIOD", 0xBE)
	set(Oem2, "VK_OEM_2", 0xBF)
	set(Oem3, "VK_OEM_3", 0xC0)
	set(Oem4, "VK_OEM_4", 0xDB)
	set(Oem5, "VK_OEM_5", 0xDC)
	set(Oem6, "VK_OEM_6", 0xDD)
	set(Oem7, "VK_OEM_7", 0xDE)
	set(Oem8, "VK_OEM_8", 0xDF)
	set(OemAx, "VK_OEM_AX", 0xE1)
	set(Oem102, "VK_OEM_102", 0xE2)
	set(IcoHelp, "VK_ICO_HELP", 0xE3)
	set(Ico00, "VK_ICO_00", 0xE4)
	return t
}

// aliases are accepted by Parse in addition to canonical names.
var aliases = map[string]Key{
	"VK_ENTER":    Return,
	"VK_CTRL":     Control,
	"VK_ALT":      Menu,
	"VK_CAPSLOCK": Capital,
	"VK_ESC":      Escape,
	"VK_ALT_GR":   RMenu,
	"VK_LCTRL":    LControl,
	"VK_RCTRL":    RControl,
	"VK_LALT":     LMenu,
	"VK_RALT":     RMenu,
}

var byName, byWin = buildIndexes()

func buildIndexes() (map[string]Key, map[uint16]Key) {
	names := make(map[string]Key, len(table)+len(aliases))
	wins := make(map[uint16]Key, len(table))
	for k := First; k <= Last; k++ {
		names[table[k].name] = k
		if k != Null {
			wins[table[k].win] = k
		}
	}
	for n, k := range aliases {
		names[n] = k
	}
	return names, wins
}

// Valid reports whether k is a defined virtual key.
func (k Key) Valid() bool {
	return k >= First && k <= Last
}

// String returns the canonical KMS name, e.g. "VK_KEY_A".
func (k Key) String() string {
	if !k.Valid() {
		return "VK_UNKNOWN"
	}
	return table[k].name
}

// Win returns the Windows virtual-key code for k, or 0 when k is undefined.
func (k Key) Win() uint16 {
	if !k.Valid() {
		return 0
	}
	return table[k].win
}

// FromWin maps a Windows virtual-key code into the KeyMagic space.
func FromWin(code uint16) (Key, bool) {
	k, ok := byWin[code]
	return k, ok
}

// FromRaw validates a raw code read from a KM2 file or a host.
func FromRaw(code uint16) (Key, bool) {
	k := Key(code)
	return k, k.Valid()
}

// Parse resolves a key name. Matching is case-insensitive and the "VK_"
// prefix is optional, so "VK_KEY_A", "key_a" and "vk_back" all resolve.
func Parse(name string) (Key, bool) {
	n := strings.ToUpper(strings.TrimSpace(name))
	if n == "" {
		return 0, false
	}
	if k, ok := byName[n]; ok {
		return k, true
	}
	k, ok := byName["VK_"+n]
	return k, ok
}

// MarshalText renders the canonical name. The zero key marshals as an empty
// string.
func (k Key) MarshalText() ([]byte, error) {
	if k == 0 {
		return nil, nil
	}
	if !k.Valid() {
		return nil, fmt.Errorf("invalid virtual key %d", uint16(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText accepts any name Parse accepts and the empty string.
func (k *Key) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*k = 0
		return nil
	}
	v, ok := Parse(string(b))
	if !ok {
		return fmt.Errorf("unknown virtual key %q", string(b))
	}
	*k = v
	return nil
}

// Modifier classifies modifier keys. Left and right variants fold into the
// generic modifier.
type Modifier uint8

const (
	NoModifier Modifier = iota
	ShiftModifier
	CtrlModifier
	AltModifier
)

// Modifier returns which modifier k stands for, if any.
func (k Key) Modifier() Modifier {
	switch k {
	case Shift, LShift, RShift:
		return ShiftModifier
	case Control, LControl, RControl:
		return CtrlModifier
	case Menu, LMenu, RMenu:
		return AltModifier
	}
	return NoModifier
}

// IsModifier reports whether k is Shift, Control or Alt in any variant.
func (k Key) IsModifier() bool {
	return k.Modifier() != NoModifier
}

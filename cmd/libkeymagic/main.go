// Command libkeymagic builds the KeyMagic engine as a C shared library for
// the platform input-method shims:
//
//	go build -buildmode=c-shared -o libkeymagic.so ./cmd/libkeymagic
//
// Engines and keyboard files are integer handles into one process-wide
// registry; 0 is never a valid handle. Strings returned to C are allocated
// with malloc and released with keymagic_free_string, or with
// keymagic_free_result for the strings inside a ProcessKeyOutput.
package main

/*
#include <stdint.h>
#include <stdlib.h>

typedef uint64_t keymagic_handle;

typedef struct {
	int action_type;
	char *text;
	int delete_count;
	char *composing_text;
	int is_processed;
} ProcessKeyOutput;

typedef struct {
	int key_code;
	int ctrl;
	int alt;
	int shift;
	int meta;
} HotkeyInfo;
*/
import "C"

import (
	"math"
	"unsafe"

	"github.com/keymagic/keymagic/internal/engine"
	"github.com/keymagic/keymagic/internal/hotkey"
	"github.com/keymagic/keymagic/internal/session"
	"github.com/keymagic/keymagic/internal/version"
	"github.com/keymagic/keymagic/internal/vk"
)

// versionString is never freed.
var versionString = C.CString(version.Version)

func main() {}

func status(st session.Status) C.int {
	return C.int(st)
}

func handle(h C.keymagic_handle) session.Handle {
	return session.Handle(h)
}

// cString returns nil when ok is false, so hosts can tell an absent field
// from an empty one.
func cString(s string, ok bool) *C.char {
	if !ok {
		return nil
	}
	return C.CString(s)
}

func clearOutput(out *C.ProcessKeyOutput) {
	out.action_type = actionNone
	out.text = nil
	out.delete_count = 0
	out.composing_text = nil
	out.is_processed = 0
}

func fillOutput(out *C.ProcessKeyOutput, o engine.Output) {
	out.action_type = C.int(actionCode(o.Action.Kind))
	if o.Action.Text != "" {
		out.text = C.CString(o.Action.Text)
	}
	out.delete_count = C.int(o.Action.DeleteCount)
	out.composing_text = C.CString(o.Composition)
	if o.Consumed {
		out.is_processed = 1
	}
}

//export keymagic_engine_new
func keymagic_engine_new() C.keymagic_handle {
	return C.keymagic_handle(registry.NewSession())
}

//export keymagic_engine_free
func keymagic_engine_free(h C.keymagic_handle) C.int {
	return status(registry.FreeSession(handle(h)))
}

//export keymagic_engine_load_keyboard
func keymagic_engine_load_keyboard(h C.keymagic_handle, path *C.char) C.int {
	if path == nil {
		return status(session.InvalidParameter)
	}
	return status(registry.LoadKeyboard(handle(h), C.GoString(path)))
}

//export keymagic_engine_load_keyboard_from_memory
func keymagic_engine_load_keyboard_from_memory(h C.keymagic_handle, data *C.uint8_t, n C.size_t) C.int {
	if data == nil || n == 0 || uint64(n) > math.MaxInt32 {
		return status(session.InvalidParameter)
	}
	return status(registry.LoadKeyboardBytes(handle(h), C.GoBytes(unsafe.Pointer(data), C.int(n))))
}

//export keymagic_engine_process_key
func keymagic_engine_process_key(h C.keymagic_handle, keyCode C.int, codepoint C.uint32_t, shift, ctrl, alt, capsLock C.int, out *C.ProcessKeyOutput) C.int {
	if out == nil {
		return status(session.InvalidParameter)
	}
	clearOutput(out)
	ev, st := keyEvent(int(keyCode), uint32(codepoint), modifiers(int(shift), int(ctrl), int(alt), int(capsLock)))
	if st != session.Success {
		return status(st)
	}
	res, st := registry.ProcessKey(handle(h), ev)
	if st == session.Success {
		fillOutput(out, res.Output)
	}
	return status(st)
}

//export keymagic_engine_process_key_test
func keymagic_engine_process_key_test(h C.keymagic_handle, keyCode C.int, codepoint C.uint32_t, shift, ctrl, alt, capsLock C.int, out *C.ProcessKeyOutput) C.int {
	if out == nil {
		return status(session.InvalidParameter)
	}
	clearOutput(out)
	ev, st := keyEvent(int(keyCode), uint32(codepoint), modifiers(int(shift), int(ctrl), int(alt), int(capsLock)))
	if st != session.Success {
		return status(st)
	}
	o, st := registry.ProcessKeyTest(handle(h), ev)
	if st == session.Success {
		fillOutput(out, o)
	}
	return status(st)
}

//export keymagic_engine_process_key_win
func keymagic_engine_process_key_win(h C.keymagic_handle, vkCode C.int, codepoint C.uint32_t, shift, ctrl, alt, capsLock C.int, out *C.ProcessKeyOutput) C.int {
	if out == nil {
		return status(session.InvalidParameter)
	}
	clearOutput(out)
	r, st := character(uint32(codepoint))
	if st != session.Success {
		return status(st)
	}
	res, st := registry.ProcessWinKey(handle(h), winKey(int(vkCode)), r, modifiers(int(shift), int(ctrl), int(alt), int(capsLock)))
	if st == session.Success {
		fillOutput(out, res.Output)
	}
	return status(st)
}

//export keymagic_engine_process_key_test_win
func keymagic_engine_process_key_test_win(h C.keymagic_handle, vkCode C.int, codepoint C.uint32_t, shift, ctrl, alt, capsLock C.int, out *C.ProcessKeyOutput) C.int {
	if out == nil {
		return status(session.InvalidParameter)
	}
	clearOutput(out)
	r, st := character(uint32(codepoint))
	if st != session.Success {
		return status(st)
	}
	o, st := registry.ProcessWinKeyTest(handle(h), winKey(int(vkCode)), r, modifiers(int(shift), int(ctrl), int(alt), int(capsLock)))
	if st == session.Success {
		fillOutput(out, o)
	}
	return status(st)
}

//export keymagic_engine_reset
func keymagic_engine_reset(h C.keymagic_handle) C.int {
	return status(registry.Reset(handle(h)))
}

//export keymagic_engine_get_composition
func keymagic_engine_get_composition(h C.keymagic_handle) *C.char {
	text, st := registry.Composition(handle(h))
	return cString(text, st == session.Success)
}

//export keymagic_engine_set_composition
func keymagic_engine_set_composition(h C.keymagic_handle, text *C.char) C.int {
	if text == nil {
		return status(session.InvalidParameter)
	}
	return status(registry.SetComposition(handle(h), C.GoString(text)))
}

//export keymagic_free_string
func keymagic_free_string(s *C.char) {
	if s != nil {
		C.free(unsafe.Pointer(s))
	}
}

//export keymagic_free_result
func keymagic_free_result(out *C.ProcessKeyOutput) {
	if out == nil {
		return
	}
	keymagic_free_string(out.text)
	keymagic_free_string(out.composing_text)
	clearOutput(out)
}

//export keymagic_km2_load
func keymagic_km2_load(path *C.char) C.keymagic_handle {
	if path == nil {
		return 0
	}
	h, st := registry.LoadMetadata(C.GoString(path))
	if st != session.Success {
		return 0
	}
	return C.keymagic_handle(h)
}

//export keymagic_km2_load_from_memory
func keymagic_km2_load_from_memory(data *C.uint8_t, n C.size_t) C.keymagic_handle {
	if data == nil || n == 0 || uint64(n) > math.MaxInt32 {
		return 0
	}
	h, st := registry.LoadMetadataBytes(C.GoBytes(unsafe.Pointer(data), C.int(n)))
	if st != session.Success {
		return 0
	}
	return C.keymagic_handle(h)
}

//export keymagic_km2_free
func keymagic_km2_free(h C.keymagic_handle) C.int {
	return status(registry.FreeMetadata(handle(h)))
}

//export keymagic_km2_get_name
func keymagic_km2_get_name(h C.keymagic_handle) *C.char {
	return cString(registry.Name(handle(h)))
}

//export keymagic_km2_get_description
func keymagic_km2_get_description(h C.keymagic_handle) *C.char {
	return cString(registry.Description(handle(h)))
}

//export keymagic_km2_get_hotkey
func keymagic_km2_get_hotkey(h C.keymagic_handle) *C.char {
	return cString(registry.Hotkey(handle(h)))
}

//export keymagic_km2_get_font_family
func keymagic_km2_get_font_family(h C.keymagic_handle) *C.char {
	return cString(registry.FontFamily(handle(h)))
}

// keymagic_km2_get_icon_data returns the icon size when buf is NULL,
// otherwise the number of bytes copied (0 when buf is too short).
//
//export keymagic_km2_get_icon_data
func keymagic_km2_get_icon_data(h C.keymagic_handle, buf *C.uint8_t, size C.size_t) C.size_t {
	if buf == nil {
		return C.size_t(registry.IconData(handle(h), nil))
	}
	if uint64(size) > math.MaxInt32 {
		size = math.MaxInt32
	}
	dst := unsafe.Slice((*byte)(unsafe.Pointer(buf)), int(size))
	return C.size_t(registry.IconData(handle(h), dst))
}

// keymagic_parse_hotkey returns 1 and fills info on success. Empty text
// (no hotkey) and invalid text both return 0 and leave info untouched.
//
//export keymagic_parse_hotkey
func keymagic_parse_hotkey(text *C.char, info *C.HotkeyInfo) C.int {
	if text == nil || info == nil {
		return 0
	}
	b, err := hotkey.Parse(C.GoString(text))
	if err != nil || b == nil {
		return 0
	}
	info.key_code = C.int(b.Key)
	info.ctrl = boolInt(b.Ctrl)
	info.alt = boolInt(b.Alt)
	info.shift = boolInt(b.Shift)
	info.meta = boolInt(b.Meta)
	return 1
}

//export keymagic_virtual_key_to_string
func keymagic_virtual_key_to_string(key C.int) *C.char {
	k := vk.Key(key)
	if key <= 0 || key > math.MaxUint16 || !k.Valid() {
		return nil
	}
	return C.CString(k.String())
}

// keymagic_get_version returns a static string; do not free it.
//
//export keymagic_get_version
func keymagic_get_version() *C.char {
	return versionString
}

func boolInt(b bool) C.int {
	if b {
		return 1
	}
	return 0
}

package km2

import (
	"encoding/binary"
	"unicode/utf16"

	"golang.org/x/text/encoding/unicode"
)

// reader is a bounds-checked little-endian cursor over the file bytes.
// No method ever slices past len(data); running out of input yields a
// Truncated LoadError tagged with the current section.
type reader struct {
	data    []byte
	pos     int
	section string
}

func newReader(data []byte) *reader {
	return &reader{data: data, section: "header"}
}

func (r *reader) remaining() int {
	return len(r.data) - r.pos
}

func (r *reader) need(n int, what string) error {
	if n < 0 || r.remaining() < n {
		return truncated(r.section, r.pos, what)
	}
	return nil
}

func (r *reader) u8(what string) (uint8, error) {
	if err := r.need(1, what); err != nil {
		return 0, err
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) u16(what string) (uint16, error) {
	if err := r.need(2, what); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) bytes(n int, what string) ([]byte, error) {
	if err := r.need(n, what); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.data[r.pos:r.pos+n])
	r.pos += n
	return out, nil
}

func (r *reader) skip(n int, what string) error {
	if err := r.need(n, what); err != nil {
		return err
	}
	r.pos += n
	return nil
}

// utf16String reads units UTF-16LE code units and decodes them.
func (r *reader) utf16String(units int, what string) (string, error) {
	start := r.pos
	raw, err := r.bytes(units*2, what)
	if err != nil {
		return "", err
	}
	s, err := decodeUTF16(raw)
	if err != nil {
		return "", malformed(r.section, start, "invalid UTF-16 in %s", what)
	}
	return s, nil
}

var utf16LE = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// decodeUTF16 converts UTF-16LE bytes to UTF-8. The x/text decoder
// substitutes U+FFFD for unpaired surrogates, so pairing is checked first to
// surface corruption instead of silently altering text.
func decodeUTF16(raw []byte) (string, error) {
	if err := checkSurrogates(raw); err != nil {
		return "", err
	}
	out, err := utf16LE.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// encodeUTF16 converts UTF-8 text to UTF-16LE bytes.
func encodeUTF16(s string) ([]byte, error) {
	return utf16LE.NewEncoder().Bytes([]byte(s))
}

type surrogateError struct{ index int }

func (e *surrogateError) Error() string {
	return "unpaired surrogate"
}

func checkSurrogates(raw []byte) error {
	n := len(raw) / 2
	for i := 0; i < n; i++ {
		u := rune(binary.LittleEndian.Uint16(raw[i*2:]))
		if !utf16.IsSurrogate(u) {
			continue
		}
		if u >= 0xDC00 || i+1 >= n {
			return &surrogateError{index: i}
		}
		next := rune(binary.LittleEndian.Uint16(raw[(i+1)*2:]))
		if next < 0xDC00 || next > 0xDFFF {
			return &surrogateError{index: i}
		}
		i++
	}
	return nil
}

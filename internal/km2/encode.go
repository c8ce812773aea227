package km2

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"
)

// Encode serializes a layout as a version 1.5 KM2 image. Load(Encode(l))
// yields a layout equal to l except that Version becomes 1.5.
func Encode(l *Layout) ([]byte, error) {
	if len(l.Strings) > math.MaxUint16 || len(l.Info) > math.MaxUint16 || len(l.Rules) > math.MaxUint16 {
		return nil, fmt.Errorf("encode: table exceeds %d entries", math.MaxUint16)
	}

	var buf bytes.Buffer
	w := func(v any) { _ = binary.Write(&buf, binary.LittleEndian, v) }

	buf.WriteString(Magic)
	buf.WriteByte(MajorVersion)
	buf.WriteByte(MaxMinorVersion)
	w(uint16(len(l.Strings)))
	w(uint16(len(l.Info)))
	w(uint16(len(l.Rules)))
	buf.WriteByte(boolByte(l.Options.TrackCaps))
	buf.WriteByte(boolByte(l.Options.SmartBackspace))
	buf.WriteByte(boolByte(l.Options.EatUnusedKeys))
	buf.WriteByte(boolByte(l.Options.USLayoutBased))
	buf.WriteByte(boolByte(l.Options.TreatCtrlAltAsRightAlt))
	buf.WriteByte(0)

	for i, s := range l.Strings {
		units, err := utf16Units(s)
		if err != nil {
			return nil, fmt.Errorf("encode string %d: %w", i+1, err)
		}
		w(uint16(len(units) / 2))
		buf.Write(units)
	}

	for _, e := range l.Info {
		if len(e.Data) > math.MaxUint16 {
			return nil, fmt.Errorf("encode info %q: %d bytes exceeds limit", reverseID(e.ID), len(e.Data))
		}
		buf.Write(e.ID[:])
		w(uint16(len(e.Data)))
		buf.Write(e.Data)
	}

	for i, r := range l.Rules {
		for _, side := range [][]Element{r.LHS, r.RHS} {
			words, err := encodeElements(side)
			if err != nil {
				return nil, fmt.Errorf("encode rule %d: %w", i, err)
			}
			if len(words)/2 > math.MaxUint16 {
				return nil, fmt.Errorf("encode rule %d: side too long", i)
			}
			w(uint16(len(words) / 2))
			buf.Write(words)
		}
	}

	return buf.Bytes(), nil
}

func encodeElements(elems []Element) ([]byte, error) {
	var buf bytes.Buffer
	w := func(v uint16) { _ = binary.Write(&buf, binary.LittleEndian, v) }
	for _, e := range elems {
		w(uint16(e.Op))
		switch {
		case e.Op == OpString:
			units, err := utf16Units(e.Text)
			if err != nil {
				return nil, err
			}
			w(uint16(len(units) / 2))
			buf.Write(units)
		case e.Op.hasOperand():
			w(e.Value)
		case e.Op == OpAnd || e.Op == OpAny:
		default:
			return nil, fmt.Errorf("invalid opcode 0x%04X", uint16(e.Op))
		}
	}
	return buf.Bytes(), nil
}

func utf16Units(s string) ([]byte, error) {
	if !utf8.ValidString(s) {
		return nil, fmt.Errorf("text %q is not valid UTF-8", s)
	}
	units, err := encodeUTF16(s)
	if err != nil {
		return nil, err
	}
	if len(units)/2 > math.MaxUint16 {
		return nil, fmt.Errorf("text of %d units exceeds limit", len(units)/2)
	}
	return units, nil
}

// NewInfo builds a text info entry for one of the Info* ids.
func NewInfo(id [4]byte, text string) InfoEntry {
	return InfoEntry{ID: id, Data: []byte(text)}
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

package km2

import (
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/keymagic/keymagic/internal/vk"
)

// header is the version-independent view of the file header.
type header struct {
	version     Version
	stringCount int
	infoCount   int
	ruleCount   int
	options     Options
}

// Load parses a complete KM2 image. The returned layout owns copies of all
// data; data may be reused by the caller afterwards.
func Load(data []byte) (*Layout, error) {
	r := newReader(data)

	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	strs, err := readStrings(r, h.stringCount)
	if err != nil {
		return nil, err
	}

	info, err := readInfo(r, h.infoCount)
	if err != nil {
		return nil, err
	}

	rules, err := readRules(r, h.ruleCount, len(strs))
	if err != nil {
		return nil, err
	}

	return &Layout{
		Version: h.version,
		Options: h.options,
		Strings: strs,
		Info:    info,
		Rules:   rules,
	}, nil
}

// LoadFile reads and parses the KM2 file at path with a single bounded read.
func LoadFile(path string) (*Layout, error) {
	data, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Load(data)
}

// LoadMetadata reads only the header and info section. The string table is
// skipped by its length prefixes and the rule table is never decoded, so a
// host can preview many keyboards cheaply.
func LoadMetadata(data []byte) (Metadata, error) {
	r := newReader(data)

	h, err := readHeader(r)
	if err != nil {
		return Metadata{}, err
	}

	r.section = "strings"
	for i := 0; i < h.stringCount; i++ {
		n, err := r.u16("string length")
		if err != nil {
			return Metadata{}, err
		}
		if err := r.skip(int(n)*2, "string data"); err != nil {
			return Metadata{}, err
		}
	}

	info, err := readInfo(r, h.infoCount)
	if err != nil {
		return Metadata{}, err
	}
	return metadataFromInfo(info), nil
}

// LoadMetadataFile is LoadMetadata over the file at path.
func LoadMetadataFile(path string) (Metadata, error) {
	data, err := ReadFile(path)
	if err != nil {
		return Metadata{}, err
	}
	return LoadMetadata(data)
}

// ReadFile reads a whole KM2 file with one bounded read. Files over 16 MiB
// are rejected as malformed without being read in full.
func ReadFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) > maxFileSize {
		return nil, malformed("", maxFileSize, "file exceeds %d bytes", maxFileSize)
	}
	return data, nil
}

func readHeader(r *reader) (header, error) {
	var h header

	magic, err := r.bytes(4, "magic")
	if err != nil {
		return h, err
	}
	if string(magic) != Magic {
		return h, malformed(r.section, 0, "invalid magic %q", magic)
	}

	major, err := r.u8("major version")
	if err != nil {
		return h, err
	}
	minor, err := r.u8("minor version")
	if err != nil {
		return h, err
	}
	h.version = Version{Major: major, Minor: minor}
	if major != MajorVersion || minor < MinMinorVersion || minor > MaxMinorVersion {
		return h, &LoadError{
			Code:    ErrCodeUnsupportedVersion,
			Section: r.section,
			Offset:  4,
			Message: fmt.Sprintf("version %s not supported", h.version),
		}
	}

	size := headerSizeV15
	switch minor {
	case 3:
		size = headerSizeV13
	case 4:
		size = headerSizeV14
	}
	// Check the whole fixed header up front so a file cut mid-header reports
	// a single Truncated error at a stable offset.
	if r.remaining() < size-6 {
		return h, truncated(r.section, len(r.data), fmt.Sprintf("%d-byte v%s header", size, h.version))
	}

	sc, _ := r.u16("string count")
	h.stringCount = int(sc)
	if minor >= 4 {
		ic, _ := r.u16("info count")
		h.infoCount = int(ic)
	}
	rc, _ := r.u16("rule count")
	h.ruleCount = int(rc)

	opt := make([]uint8, 4)
	for i := range opt {
		opt[i], _ = r.u8("layout option")
	}
	h.options = Options{
		TrackCaps:              opt[0] != 0,
		SmartBackspace:         opt[1] != 0,
		EatUnusedKeys:          opt[2] != 0,
		USLayoutBased:          opt[3] != 0,
		TreatCtrlAltAsRightAlt: true,
	}
	if minor >= 5 {
		ra, _ := r.u8("right alt option")
		h.options.TreatCtrlAltAsRightAlt = ra != 0
		_, _ = r.u8("padding")
	}
	return h, nil
}

func readStrings(r *reader, count int) ([]string, error) {
	r.section = "strings"
	strs := make([]string, 0, count)
	for i := 0; i < count; i++ {
		n, err := r.u16("string length")
		if err != nil {
			return nil, err
		}
		s, err := r.utf16String(int(n), fmt.Sprintf("string %d", i+1))
		if err != nil {
			return nil, err
		}
		strs = append(strs, s)
	}
	return strs, nil
}

func readInfo(r *reader, count int) ([]InfoEntry, error) {
	r.section = "info"
	entries := make([]InfoEntry, 0, count)
	for i := 0; i < count; i++ {
		raw, err := r.bytes(4, "info id")
		if err != nil {
			return nil, err
		}
		var id [4]byte
		copy(id[:], raw)

		n, err := r.u16("info length")
		if err != nil {
			return nil, err
		}
		start := r.pos
		data, err := r.bytes(int(n), "info data")
		if err != nil {
			return nil, err
		}
		id = canonicalInfoID(id)
		if id != InfoIcon && !utf8.Valid(data) {
			return nil, malformed(r.section, start, "info %q is not valid UTF-8", reverseID(id))
		}
		entries = append(entries, InfoEntry{ID: id, Data: data})
	}
	return entries, nil
}

func readRules(r *reader, count, stringCount int) ([]Rule, error) {
	r.section = "rules"
	rules := make([]Rule, 0, count)
	for i := 0; i < count; i++ {
		lhs, err := readElements(r, i, "lhs", stringCount)
		if err != nil {
			return nil, err
		}
		if err := validateLHS(lhs); err != nil {
			return nil, malformed(r.section, r.pos, "rule %d: %v", i, err)
		}
		rhs, err := readElements(r, i, "rhs", stringCount)
		if err != nil {
			return nil, err
		}
		rules = append(rules, Rule{LHS: lhs, RHS: rhs})
	}
	return rules, nil
}

// readElements decodes one side of a rule. The side is prefixed by its size
// in 16-bit words and every operand must lie inside that size.
func readElements(r *reader, rule int, side string, stringCount int) ([]Element, error) {
	words, err := r.u16(fmt.Sprintf("rule %d %s length", rule, side))
	if err != nil {
		return nil, err
	}
	start := r.pos
	end := start + int(words)*2
	if err := r.need(int(words)*2, fmt.Sprintf("rule %d %s", rule, side)); err != nil {
		return nil, err
	}

	// Operands are read through a sub-reader so an element can never run
	// into the next rule.
	sub := &reader{data: r.data[:end], pos: start, section: r.section}
	var elems []Element
	for sub.pos < end {
		at := sub.pos
		w, err := sub.u16("opcode")
		if err != nil {
			return nil, overrun(err, rule, side)
		}
		op := Opcode(w)
		switch {
		case op == OpString:
			n, err := sub.u16("string length")
			if err != nil {
				return nil, overrun(err, rule, side)
			}
			s, err := sub.utf16String(int(n), "rule string")
			if err != nil {
				return nil, overrun(err, rule, side)
			}
			elems = append(elems, Str(s))
		case op.hasOperand():
			v, err := sub.u16(op.String() + " operand")
			if err != nil {
				return nil, overrun(err, rule, side)
			}
			if op == OpVariable && (v == 0 || int(v) > stringCount) {
				return nil, malformed(r.section, at, "rule %d %s: variable index %d out of range", rule, side, v)
			}
			elems = append(elems, Element{Op: op, Value: v})
		case op == OpAnd || op == OpAny:
			elems = append(elems, Element{Op: op})
		default:
			return nil, malformed(r.section, at, "rule %d %s: invalid opcode 0x%04X", rule, side, w)
		}
	}
	r.pos = end
	return elems, nil
}

// overrun reclassifies running out of a rule's declared size. The file
// itself is long enough, so the rule is malformed rather than truncated.
func overrun(err error, rule int, side string) error {
	if le, ok := err.(*LoadError); ok && le.Code == ErrCodeTruncated {
		le.Code = ErrCodeMalformed
		le.Message = fmt.Sprintf("rule %d %s: element overruns declared length", rule, side)
	}
	return err
}

// validateLHS enforces that PREDEFINED only appears inside an AND group.
func validateLHS(lhs []Element) error {
	inKeys := false
	for _, e := range lhs {
		switch e.Op {
		case OpAnd:
			inKeys = true
		case OpPredefined:
			if !inKeys {
				return fmt.Errorf("virtual key %s outside an AND group", vk.Key(e.Value))
			}
		default:
			inKeys = false
		}
	}
	return nil
}

package km2

// Magic is the four-byte file signature.
const Magic = "KMKL"

// Supported format versions. Files declare major 1 and a minor between
// MinMinorVersion and MaxMinorVersion.
const (
	MajorVersion    uint8 = 1
	MinMinorVersion uint8 = 3
	MaxMinorVersion uint8 = 5
)

// Header sizes in bytes for each minor version.
const (
	headerSizeV13 = 12 // magic, version, stringCount, ruleCount, 4 options
	headerSizeV14 = 14 // adds infoCount
	headerSizeV15 = 16 // adds rightAlt option and one padding byte
)

// maxFileSize bounds the single read done by LoadFile.
const maxFileSize = 16 << 20

// Opcode identifies a rule element in the compiled rule table.
type Opcode uint16

const (
	OpString     Opcode = 0xF0 // followed by a length and UTF-16 units
	OpVariable   Opcode = 0xF1 // followed by a 1-based string table index
	OpReference  Opcode = 0xF2 // followed by a 1-based capture number ($n)
	OpPredefined Opcode = 0xF3 // followed by a virtual key code
	OpModifier   Opcode = 0xF4 // followed by a flag or a capture number
	OpAnd        Opcode = 0xF6
	OpAny        Opcode = 0xF8
	OpSwitch     Opcode = 0xF9 // followed by a state index
)

// Modifier operands that turn a preceding VARIABLE into a one-character
// class match.
const (
	FlagAnyOf    uint16 = 0xF5
	FlagNotAnyOf uint16 = 0xF7
)

// PredefinedNull is the PREDEFINED operand that blanks a rule's output.
const PredefinedNull uint16 = 1

func (op Opcode) String() string {
	switch op {
	case OpString:
		return "STRING"
	case OpVariable:
		return "VARIABLE"
	case OpReference:
		return "REFERENCE"
	case OpPredefined:
		return "PREDEFINED"
	case OpModifier:
		return "MODIFIER"
	case OpAnd:
		return "AND"
	case OpAny:
		return "ANY"
	case OpSwitch:
		return "SWITCH"
	}
	return "UNKNOWN"
}

// hasOperand reports whether the opcode is followed by one operand word.
// STRING is handled separately because its operand is a length.
func (op Opcode) hasOperand() bool {
	switch op {
	case OpVariable, OpReference, OpPredefined, OpModifier, OpSwitch:
		return true
	}
	return false
}

// Info section ids exactly as the compiler stores them on disk. They are the
// tag names written as little-endian 32-bit integers, hence reversed.
var (
	InfoName        = [4]byte{'e', 'm', 'a', 'n'}
	InfoDescription = [4]byte{'c', 's', 'e', 'd'}
	InfoFont        = [4]byte{'t', 'n', 'o', 'f'}
	InfoIcon        = [4]byte{'n', 'o', 'c', 'i'}
	InfoHotkey      = [4]byte{'y', 'k', 't', 'h'}
)

// canonicalInfoID accepts both the on-disk order and the readable order
// ("name") that some third-party writers emit, returning the on-disk form.
func canonicalInfoID(id [4]byte) [4]byte {
	for _, known := range [][4]byte{InfoName, InfoDescription, InfoFont, InfoIcon, InfoHotkey} {
		if id == known || id == reverseID(known) {
			return known
		}
	}
	return id
}

func reverseID(id [4]byte) [4]byte {
	return [4]byte{id[3], id[2], id[1], id[0]}
}

// Package km2 reads and writes KM2, the compiled KeyMagic keyboard format.
//
// A KM2 file is a little-endian image with four sections:
//
//	header   "KMKL", major, minor, table counts, layout options
//	strings  u16 length + UTF-16LE units, one entry per variable
//	info     4-byte id + u16 length + bytes (name, description, font, icon, hotkey)
//	rules    u16 word count + LHS opcodes, u16 word count + RHS opcodes
//
// Files come from untrusted sources, so every count and length read from the
// file goes through a bounds-checked cursor. A corrupt or adversarial file
// produces a *LoadError and never an out-of-range read or panic.
//
// Versions 1.3, 1.4 and 1.5 are accepted. Encode always writes 1.5.
package km2

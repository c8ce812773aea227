package compiler

import (
	"fmt"
	"os"

	"github.com/keymagic/keymagic/internal/km2"
)

// Compile lowers src into a layout. Problems are returned together as
// ValidationErrors.
func Compile(src *Source) (*km2.Layout, error) {
	l, errs := build(src)
	if len(errs) > 0 {
		return nil, errs
	}
	return l, nil
}

// CompileFile parses and compiles the layout source at path.
func CompileFile(path string) (*km2.Layout, error) {
	src, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	l, err := Compile(src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

// WriteKM2 compiles the source at srcPath and writes the KM2 image to
// outPath.
func WriteKM2(srcPath, outPath string) (*km2.Layout, error) {
	l, err := CompileFile(srcPath)
	if err != nil {
		return nil, err
	}
	data, err := km2.Encode(l)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return nil, err
	}
	return l, nil
}

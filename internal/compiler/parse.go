package compiler

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

// ParseFile reads a layout source, choosing the format by extension:
// .kms for KeyMagic scripts, .cue for CUE, .yaml or .yml for YAML.
func ParseFile(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".kms":
		return ParseKMS(data, path)
	case ".cue":
		return ParseCUE(data, path)
	case ".yaml", ".yml":
		return ParseYAML(data)
	}
	return nil, fmt.Errorf("%s: unknown layout source format", path)
}

// ParseYAML decodes a YAML layout source. Unknown top-level fields are
// rejected.
func ParseYAML(data []byte) (*Source, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var src Source
	if err := dec.Decode(&src); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return &src, nil
}

// ParseCUE evaluates a CUE layout source. The keyboard fields live at the
// top level of the file.
func ParseCUE(data []byte, filename string) (*Source, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	src := &Source{}
	var err error
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"name", &src.Name},
		{"description", &src.Description},
		{"font", &src.Font},
		{"hotkey", &src.Hotkey},
		{"icon", &src.Icon},
	} {
		if *f.dst, err = optionalString(v, f.name); err != nil {
			return nil, err
		}
	}

	if src.Options, err = parseOptions(v); err != nil {
		return nil, err
	}
	if src.Vars, err = parseVars(v); err != nil {
		return nil, err
	}
	if src.Rules, err = parseRules(v); err != nil {
		return nil, err
	}
	return src, nil
}

func optionalString(v cue.Value, path string) (string, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func parseOptions(v cue.Value) (SourceOptions, error) {
	var opts SourceOptions
	ov := v.LookupPath(cue.ParsePath("options"))
	if !ov.Exists() {
		return opts, nil
	}

	fields := map[string]**bool{
		"track_caps":            &opts.TrackCaps,
		"smart_backspace":       &opts.SmartBackspace,
		"eat_unused_keys":       &opts.EatUnusedKeys,
		"us_layout_based":       &opts.USLayoutBased,
		"ctrl_alt_as_right_alt": &opts.TreatCtrlAltAsRightAlt,
	}

	iter, err := ov.Fields()
	if err != nil {
		return opts, formatCUEError(err)
	}
	for iter.Next() {
		dst, ok := fields[iter.Label()]
		if !ok {
			return opts, &CompileError{
				Field:   "options." + iter.Label(),
				Message: "unknown option",
				Pos:     iter.Value().Pos(),
			}
		}
		b, err := iter.Value().Bool()
		if err != nil {
			return opts, formatCUEError(err)
		}
		*dst = &b
	}
	return opts, nil
}

// parseVars reads vars in declaration order.
func parseVars(v cue.Value) (Vars, error) {
	vv := v.LookupPath(cue.ParsePath("vars"))
	if !vv.Exists() {
		return nil, nil
	}

	iter, err := vv.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var vars Vars
	for iter.Next() {
		val := iter.Value()
		tokens, err := stringList(val, "vars."+iter.Label())
		if err != nil {
			return nil, err
		}
		vars = append(vars, Var{Name: iter.Label(), Value: tokens, Line: val.Pos().Line()})
	}
	return vars, nil
}

func parseRules(v cue.Value) ([]RuleSource, error) {
	rv := v.LookupPath(cue.ParsePath("rules"))
	if !rv.Exists() {
		return nil, nil
	}

	iter, err := rv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var rules []RuleSource
	for i := 0; iter.Next(); i++ {
		val := iter.Value()
		field := fmt.Sprintf("rules[%d]", i)

		lhs := val.LookupPath(cue.ParsePath("lhs"))
		if !lhs.Exists() {
			return nil, &CompileError{Field: field + ".lhs", Message: "lhs is required", Pos: val.Pos()}
		}
		r := RuleSource{Line: val.Pos().Line()}
		if r.LHS, err = stringList(lhs, field+".lhs"); err != nil {
			return nil, err
		}
		if rhs := val.LookupPath(cue.ParsePath("rhs")); rhs.Exists() {
			if r.RHS, err = stringList(rhs, field+".rhs"); err != nil {
				return nil, err
			}
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// stringList accepts a single string or a list of strings.
func stringList(v cue.Value, field string) ([]string, error) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return []string{s}, nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		var out []string
		for iter.Next() {
			s, err := iter.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, &CompileError{
		Field:   field,
		Message: fmt.Sprintf("must be a string or a list of strings, got %v", v.IncompleteKind()),
		Pos:     v.Pos(),
	}
}

// CompileError is a source error with its position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos

	// File and Line locate errors in KeyMagic scripts.
	File string
	Line int
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s: %s", e.File, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError keeps the first CUE error and its position.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}

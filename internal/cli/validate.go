package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/keymagic/keymagic/internal/compiler"
	"github.com/keymagic/keymagic/internal/engine"
	"github.com/keymagic/keymagic/internal/km2"
)

// FileValidation is the validation result of one keyboard.
type FileValidation struct {
	Path     string                     `json:"path"`
	Valid    bool                       `json:"valid"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.CycleWarning    `json:"warnings,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Files []FileValidation `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <keyboard>...",
		Short: "Check keyboards and layout sources",
		Long: `Check that keyboards load and that layout sources compile.

Compiled keyboards are decoded and their rules checked against the
element grammar. Layout sources are validated in full, reporting every
problem rather than the first. Rules that may rewrite each other
forever are reported as warnings.

Exit codes:
  0 - All keyboards valid (warnings allowed)
  1 - One or more keyboards invalid
  2 - Command error (file not found, etc.)`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	result := ValidationResult{Valid: true, Files: make([]FileValidation, 0, len(paths))}
	for _, p := range paths {
		path := opts.Config().KeyboardPath(p)
		formatter.VerboseLog("Validating %s", path)

		fv, err := validateFile(path)
		if err != nil {
			return outputLoadError(formatter, err)
		}
		if !fv.Valid {
			result.Valid = false
		}
		result.Files = append(result.Files, fv)
	}

	if err := formatter.Success(result); err != nil {
		return err
	}
	if !result.Valid {
		return NewExitError(ExitFailure, "validation failed")
	}
	return nil
}

// validateFile checks one keyboard. Only a missing file is returned as an
// error; every other problem lands in the result.
func validateFile(path string) (FileValidation, error) {
	fv := FileValidation{Path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fv, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("keyboard not found: %s", path), Err: err}
	}

	var layout *km2.Layout
	if IsLayoutSource(path) {
		src, err := compiler.ParseFile(path)
		if err != nil {
			fv.Errors = []compiler.ValidationError{sourceError(err)}
			return fv, nil
		}
		if errs := compiler.Validate(src); len(errs) > 0 {
			fv.Errors = errs
			return fv, nil
		}
		if layout, err = compiler.Compile(src); err != nil {
			fv.Errors = []compiler.ValidationError{sourceError(err)}
			return fv, nil
		}
	} else {
		kb, err := LoadKeyboard(path)
		if err != nil {
			fv.Errors = []compiler.ValidationError{{
				Field:   "km2",
				Message: err.Error(),
				Code:    loadErrorCode(err),
			}}
			return fv, nil
		}
		layout = kb.Layout
	}

	// Rules that decode may still break the element grammar.
	if _, err := engine.New(layout); err != nil {
		fv.Errors = []compiler.ValidationError{{Field: "rules", Message: err.Error(), Code: ErrCodeMalformed}}
		return fv, nil
	}

	fv.Valid = true
	fv.Warnings = compiler.AnalyzeCycles(layout)
	return fv, nil
}

func sourceError(err error) compiler.ValidationError {
	var cerr *compiler.CompileError
	if errors.As(err, &cerr) {
		line := cerr.Line
		if cerr.Pos.IsValid() {
			line = cerr.Pos.Line()
		}
		return compiler.ValidationError{Field: cerr.Field, Message: cerr.Message, Code: ErrCodeBuildFailed, Line: line}
	}
	return compiler.ValidationError{Field: "source", Message: err.Error(), Code: ErrCodeBuildFailed}
}

// WriteText renders one line per keyboard plus its problems.
func (r ValidationResult) WriteText(w io.Writer) {
	for _, f := range r.Files {
		if f.Valid {
			fmt.Fprintf(w, "✓ %s\n", f.Path)
		} else {
			fmt.Fprintf(w, "✗ %s\n", f.Path)
		}
		for _, e := range f.Errors {
			fmt.Fprintf(w, "  %s\n", e.Error())
		}
		for _, wn := range f.Warnings {
			fmt.Fprintf(w, "  warning: %s\n", wn.Message)
		}
	}
	if r.Valid {
		fmt.Fprintln(w, "All keyboards valid")
	}
}

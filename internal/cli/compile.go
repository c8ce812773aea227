package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/keymagic/keymagic/internal/compiler"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult summarizes a compiled keyboard.
type CompilationResult struct {
	Source   string                  `json:"source"`
	Output   string                  `json:"output"`
	Name     string                  `json:"name"`
	Rules    int                     `json:"rules"`
	Strings  int                     `json:"strings"`
	Bytes    int                     `json:"bytes"`
	Warnings []compiler.CycleWarning `json:"warnings,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <source>",
		Short: "Compile a layout source to a .km2 keyboard",
		Long: `Compile a KeyMagic script (.kms), YAML or CUE layout source into a KeyMagic .km2 keyboard.

Without --output the keyboard is written next to the source with a
.km2 extension.

Examples:
  keymagic compile myanmar.kms
  keymagic compile vietnamese.yaml
  keymagic compile layouts/zawgyi.cue -o build/zawgyi.km2`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, srcPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if _, err := os.Stat(srcPath); os.IsNotExist(err) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("source not found: %s", srcPath), nil)
	}
	if !IsLayoutSource(srcPath) {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric,
			fmt.Sprintf("%s: not a layout source (want .kms, .yaml, .yml or .cue)", srcPath), nil)
	}

	out := opts.Output
	if out == "" {
		out = strings.TrimSuffix(srcPath, filepath.Ext(srcPath)) + ".km2"
	}
	formatter.VerboseLog("Compiling %s -> %s", srcPath, out)

	layout, err := compiler.WriteKM2(srcPath, out)
	if err != nil {
		var pe *os.PathError
		if errors.As(err, &pe) {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
		return formatter.Fail(ExitFailure, ErrCodeBuildFailed, err.Error(), nil)
	}

	info, err := os.Stat(out)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to stat output", err)
	}

	opts.Logger().Info("keyboard compiled", "source", srcPath, "output", out, "rules", len(layout.Rules))

	return formatter.Success(CompilationResult{
		Source:   srcPath,
		Output:   out,
		Name:     layout.Metadata().Name,
		Rules:    len(layout.Rules),
		Strings:  len(layout.Strings),
		Bytes:    int(info.Size()),
		Warnings: compiler.AnalyzeCycles(layout),
	})
}

// WriteText renders the compile summary.
func (r CompilationResult) WriteText(w io.Writer) {
	fmt.Fprintf(w, "✓ Compiled %s -> %s\n", r.Source, r.Output)
	if r.Name != "" {
		fmt.Fprintf(w, "  Name: %s\n", r.Name)
	}
	fmt.Fprintf(w, "  Rules: %d, strings: %d, %d bytes\n", r.Rules, r.Strings, r.Bytes)
	for _, wn := range r.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", wn.Message)
	}
}

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/keymagic/keymagic/internal/composition"
	"github.com/keymagic/keymagic/internal/config"
	"github.com/keymagic/keymagic/internal/engine"
	"github.com/keymagic/keymagic/internal/keyscript"
	"github.com/keymagic/keymagic/internal/session"
)

// TypeOptions holds flags for the type command.
type TypeOptions struct {
	*RootOptions
	Commit commitFlags
}

// commitFlags select the commit policy for type and record.
type commitFlags struct {
	Keys     []string
	NoCommit bool
}

func (c *commitFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&c.Keys, "commit-keys", nil, "keys that commit the composition (space,return,tab,escape)")
	cmd.Flags().BoolVar(&c.NoCommit, "no-commit", false, "never commit; keep everything composing")
}

// names picks the commit keys: --no-commit, then --commit-keys, then the
// config file.
func (c *commitFlags) names(cmd *cobra.Command, cfg config.Config) []string {
	switch {
	case c.NoCommit:
		return nil
	case cmd.Flags().Changed("commit-keys"):
		return c.Keys
	}
	return cfg.CommitKeys
}

// TypeStep is the output of one typed key.
type TypeStep struct {
	Keys        string             `json:"keys"`
	Action      composition.Action `json:"action"`
	Composition string             `json:"composition"`
	Consumed    bool               `json:"consumed"`
	Rule        int                `json:"rule,omitempty"`
	Commit      string             `json:"commit,omitempty"`
}

// TypeResult holds every step plus the final state.
type TypeResult struct {
	Keyboard    string     `json:"keyboard"`
	Steps       []TypeStep `json:"steps"`
	Composition string     `json:"composition"`
	Commits     []string   `json:"commits"`
}

// NewTypeCommand creates the type command.
func NewTypeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TypeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "type <keyboard> <keys>",
		Short: "Type a key script through a keyboard",
		Long: `Type a key script through a keyboard and show what each key did.

Plain characters are typed as on a US keyboard. Other keys and chords
are written in angle brackets with '+' between modifiers and the key:

  ka<VK_BACK>         k, a, then backspace
  <CTRL+ALT+VK_KEY_Q> a chord with no character
  \<                  a literal '<'

Commit keys default to the configured [commit] keys.

Examples:
  keymagic type myanmar3.km2 "kyaw"
  keymagic type vietnamese.yaml "tieengs<VK_BACK>" --no-commit
  keymagic type myanmar3.km2 "ka " --commit-keys space --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runType(opts, args[0], args[1], cmd)
		},
	}

	opts.Commit.register(cmd)

	return cmd
}

func runType(opts *TypeOptions, name, script string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	events, err := keyscript.Parse(script)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBadKeys, err.Error(), nil)
	}

	policy, err := session.PolicyFromNames(opts.Commit.names(cmd, opts.Config()))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	kb, err := LoadKeyboard(opts.Config().KeyboardPath(name))
	if err != nil {
		return outputLoadError(formatter, err)
	}

	s := session.New(session.WithCommitPolicy(policy), session.WithLogger(opts.Logger()))
	defer s.Close()
	if err := s.LoadKeyboardBytes(kb.Image); err != nil {
		return outputLoadError(formatter, &LoadError{Code: loadErrorCode(err), Message: err.Error(), Err: err})
	}

	result := TypeResult{
		Keyboard: kb.Path,
		Steps:    make([]TypeStep, 0, len(events)),
		Commits:  []string{},
	}
	for _, ev := range events {
		res, err := s.ProcessKey(ev)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to process key", err)
		}
		result.Steps = append(result.Steps, newTypeStep(ev, res))
		if res.Commit {
			result.Commits = append(result.Commits, res.CommitText)
		}
	}
	result.Composition = s.Composition()

	return formatter.Success(result)
}

func newTypeStep(ev engine.KeyEvent, res session.Result) TypeStep {
	step := TypeStep{
		Keys:        keyscript.FormatEvent(ev),
		Action:      res.Action,
		Composition: res.Composition,
		Consumed:    res.Consumed,
		Rule:        res.Rule,
	}
	if res.Commit {
		step.Commit = res.CommitText
	}
	return step
}

// WriteText renders one row per key. The composition column is padded by
// display width so wide scripts line up.
func (r TypeResult) WriteText(w io.Writer) {
	const compWidth = 16
	for _, s := range r.Steps {
		rule := "-"
		if s.Rule > 0 {
			rule = fmt.Sprintf("rule %d", s.Rule)
		}
		line := fmt.Sprintf("%-14s %s %-8s %s",
			s.Keys,
			runewidth.FillRight(s.Composition, compWidth),
			rule,
			s.Action,
		)
		if !s.Consumed {
			line += " (passed through)"
		}
		if s.Commit != "" {
			line += fmt.Sprintf(" commit %q", s.Commit)
		}
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
	fmt.Fprintf(w, "\nComposition: %q\n", r.Composition)
	if len(r.Commits) > 0 {
		fmt.Fprintf(w, "Committed:   %q\n", strings.Join(r.Commits, ""))
	}
}

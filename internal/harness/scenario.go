package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/keymagic/keymagic/internal/composition"
	"github.com/keymagic/keymagic/internal/keyscript"
)

// Scenario defines a keystroke conformance scenario: a keyboard, the keys
// typed into it, and what the host should have seen.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Keyboard is a .km2 file or a layout source (.kms, .yaml, .yml, .cue).
	// Relative paths are resolved against the scenario file's directory.
	Keyboard string `yaml:"keyboard"`

	// CommitKeys names the keys that commit the composition (space,
	// return, tab, escape). Empty means never commit.
	CommitKeys []string `yaml:"commit_keys,omitempty"`

	// Steps are typed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the run as a whole.
	// Supported types: final_composition, commits, rule_count,
	// trace_contains, deterministic
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step types a key script and optionally checks the output of its last key.
type Step struct {
	// Keys is a key script, e.g. "ka<VK_BACK>".
	Keys string `yaml:"keys"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect checks fields of one output. Unset fields are not checked.
type Expect struct {
	Action      *composition.Action `yaml:"action,omitempty"`
	Composition *string             `yaml:"composition,omitempty"`
	Consumed    *bool               `yaml:"consumed,omitempty"`
	Rule        *int                `yaml:"rule,omitempty"`

	// Commit is the text the step's last key committed.
	Commit *string `yaml:"commit,omitempty"`
}

// Assertion validates the finished run.
type Assertion struct {
	// Type specifies the assertion type:
	// - "final_composition": composing text after the last step equals Text
	// - "commits": committed texts equal Texts, in order
	// - "rule_count": Rule matched exactly Count keys (rule 0 is the fallback)
	// - "trace_contains": some key produced an action of Kind (and Text, if set)
	// - "deterministic": replaying the journal reproduces every output
	Type string `yaml:"type"`

	Text  *string  `yaml:"text,omitempty"`
	Texts []string `yaml:"texts,omitempty"`
	Rule  int      `yaml:"rule,omitempty"`
	Count int      `yaml:"count,omitempty"`
	Kind  string   `yaml:"kind,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalComposition = "final_composition"
	AssertCommits          = "commits"
	AssertRuleCount        = "rule_count"
	AssertTraceContains    = "trace_contains"
	AssertDeterministic    = "deterministic"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, filepath.Dir(path))
}

// ParseScenario parses scenario YAML, resolving the keyboard path against
// baseDir.
func ParseScenario(data []byte, baseDir string) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Keyboard != "" && !filepath.IsAbs(scenario.Keyboard) && baseDir != "" {
		scenario.Keyboard = filepath.Join(baseDir, scenario.Keyboard)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDir loads every *.yaml and *.yml scenario directly under dir, sorted
// by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario dir: %w", err)
	}

	var scenarios []*Scenario
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		s, err := LoadScenario(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Keyboard == "" {
		return fmt.Errorf("keyboard is required")
	}
	if _, err := os.Stat(s.Keyboard); os.IsNotExist(err) {
		return fmt.Errorf("keyboard file not found: %s", s.Keyboard)
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if step.Keys == "" {
			return fmt.Errorf("steps[%d]: keys is required", i)
		}
		if _, err := keyscript.Parse(step.Keys); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertFinalComposition:
		if a.Text == nil {
			return fmt.Errorf("assertions[%d]: text is required for final_composition", index)
		}
	case AssertCommits:
		// A missing texts list asserts that nothing was committed.
	case AssertRuleCount:
		if a.Rule < 0 {
			return fmt.Errorf("assertions[%d]: rule must be non-negative for rule_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for rule_count", index)
		}
	case AssertTraceContains:
		var k composition.Kind
		if err := k.UnmarshalText([]byte(a.Kind)); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertDeterministic:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

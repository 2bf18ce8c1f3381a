package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario defines one pipeline test.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Chain is an inline pipeline, split into words as on a command line.
	Chain []string `yaml:"chain,omitempty"`

	// Pipeline is a definition file. Relative paths are resolved against
	// the scenario file's directory by LoadScenario.
	Pipeline string `yaml:"pipeline,omitempty"`

	// Inputs are fed to the run in order.
	Inputs []Input `yaml:"inputs"`

	// Assertions validate the output and stored rows.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// ExpectError makes the scenario pass only when the run fails this way.
	ExpectError *ErrorClause `yaml:"expect_error,omitempty"`

	// RunID is the fixed run id. Defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`
}

// Input is one input source.
type Input struct {
	// Name is the file name inside the input directory. Empty means
	// standard input.
	Name string `yaml:"name,omitempty"`

	// Lines are the contents, one per line.
	Lines []string `yaml:"lines"`

	// Feed controls whether the file is passed to the run. Files that only
	// serve as stage arguments set it to false.
	Feed *bool `yaml:"feed,omitempty"`
}

func (in Input) fed() bool { return in.Feed == nil || *in.Feed }

// ErrorClause specifies an expected run failure.
type ErrorClause struct {
	Code     string `yaml:"code"`
	Contains string `yaml:"contains,omitempty"`
}

// Assertion validates the outcome of a run.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Record is the expected record (output_contains).
	Record map[string]any `yaml:"record,omitempty"`

	// Records are the expected records, in order (output_order).
	Records []map[string]any `yaml:"records,omitempty"`

	// Where filters the records counted (output_count, stored).
	Where map[string]any `yaml:"where,omitempty"`

	// Count is the expected number of matches (output_count, stored).
	Count int `yaml:"count,omitempty"`

	// Table is the todb table (stored). Defaults to the store's default
	// table.
	Table string `yaml:"table,omitempty"`
}

// Assertion type constants.
const (
	AssertOutputContains = "output_contains"
	AssertOutputOrder    = "output_order"
	AssertOutputCount    = "output_count"
	AssertStored         = "stored"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected, and a relative pipeline path is resolved against the directory
// of path.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Pipeline != "" && !filepath.IsAbs(scenario.Pipeline) {
		scenario.Pipeline = filepath.Join(filepath.Dir(path), scenario.Pipeline)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case len(s.Chain) == 0 && s.Pipeline == "":
		return fmt.Errorf("one of chain or pipeline is required")
	case len(s.Chain) > 0 && s.Pipeline != "":
		return fmt.Errorf("chain and pipeline are mutually exclusive")
	}
	if s.Pipeline != "" {
		if _, err := os.Stat(s.Pipeline); os.IsNotExist(err) {
			return fmt.Errorf("pipeline file not found: %s", s.Pipeline)
		}
	}

	stdin := 0
	seen := make(map[string]bool, len(s.Inputs))
	for i, in := range s.Inputs {
		if in.Name == "" {
			stdin++
			if !in.fed() {
				return fmt.Errorf("inputs[%d]: standard input is always fed", i)
			}
			continue
		}
		if filepath.IsAbs(in.Name) || strings.HasPrefix(filepath.Clean(in.Name), "..") {
			return fmt.Errorf("inputs[%d]: name must be relative to the input directory", i)
		}
		if seen[in.Name] {
			return fmt.Errorf("inputs[%d]: duplicate name %q", i, in.Name)
		}
		seen[in.Name] = true
	}
	if stdin > 1 {
		return fmt.Errorf("at most one input may be standard input")
	}

	if len(s.Assertions) == 0 && s.ExpectError == nil {
		return fmt.Errorf("assertions or expect_error is required")
	}
	if s.ExpectError != nil && s.ExpectError.Code == "" {
		return fmt.Errorf("expect_error: code is required")
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
	case AssertOutputContains:
		if len(a.Record) == 0 {
			return fmt.Errorf("assertions[%d]: record is required for output_contains", index)
		}
	case AssertOutputOrder:
		if len(a.Records) == 0 {
			return fmt.Errorf("assertions[%d]: records list is required for output_order", index)
		}
	case AssertOutputCount, AssertStored:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

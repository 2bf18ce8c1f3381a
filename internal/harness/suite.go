package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScenarioLoadError is returned when a file in a suite is not a valid
// scenario.
type ScenarioLoadError struct {
	Path string
	Err  error
}

func (e *ScenarioLoadError) Error() string {
	return fmt.Sprintf("scenario %s: %v", e.Path, e.Err)
}

func (e *ScenarioLoadError) Unwrap() error { return e.Err }

// FindScenarios lists the .yaml and .yml files directly inside dir, sorted
// by name. A non-empty filter is a glob matched against the base name
// without its extension.
func FindScenarios(dir, filter string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		if filter != "" {
			ok, err := filepath.Match(filter, strings.TrimSuffix(e.Name(), ext))
			if err != nil {
				return nil, fmt.Errorf("bad filter %q: %w", filter, err)
			}
			if !ok {
				continue
			}
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// LoadSuite loads every scenario FindScenarios lists. Scenario names must
// be unique within a suite, since they name golden files.
func LoadSuite(dir, filter string) ([]*Scenario, error) {
	paths, err := FindScenarios(dir, filter)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]string, len(paths))
	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, &ScenarioLoadError{Path: path, Err: err}
		}
		if prev, dup := seen[s.Name]; dup {
			return nil, &ScenarioLoadError{Path: path, Err: fmt.Errorf("name %q already used by %s", s.Name, prev)}
		}
		seen[s.Name] = path
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

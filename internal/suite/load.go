package suite

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type file struct {
	Tests []TestSpec `yaml:"tests"`
}

// Load reads a suite file. The document is either a list of tests or a
// mapping with a "tests" key.
func Load(path string, logger *zap.Logger) ([]TestSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite %s: %w", path, err)
	}
	tests, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse suite %s: %w", path, err)
	}

	if logger != nil {
		for _, t := range tests {
			for i, s := range t.Steps {
				if len(s.Ignored) > 0 {
					logger.Warn("step declares more than one action, extra keys ignored",
						zap.String("test", t.Name),
						zap.Int("step", i+1),
						zap.String("action", s.Action),
						zap.Strings("ignored", s.Ignored),
					)
				}
			}
		}
	}
	return tests, nil
}

func Parse(data []byte) ([]TestSpec, error) {
	var doc yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("suite is empty")
	}

	var tests []TestSpec
	root := doc.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&tests); err != nil {
			return nil, err
		}
	case yaml.MappingNode:
		var f file
		if err := root.Decode(&f); err != nil {
			return nil, err
		}
		tests = f.Tests
	default:
		return nil, fmt.Errorf("line %d: suite must be a list of tests or a mapping with a tests key", root.Line)
	}

	seen := make(map[string]bool, len(tests))
	for i, t := range tests {
		if t.Name == "" {
			return nil, fmt.Errorf("test #%d has no name", i+1)
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("duplicate test name %q", t.Name)
		}
		seen[t.Name] = true
	}
	return tests, nil
}

// Select picks tests by name in file order. An empty selector or "all"
// selects everything; otherwise it is a comma separated list of names.
func Select(tests []TestSpec, selector string) ([]TestSpec, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" || strings.EqualFold(selector, "all") {
		return tests, nil
	}

	wanted := make(map[string]bool)
	for _, name := range strings.Split(selector, ",") {
		if name = strings.TrimSpace(name); name != "" {
			wanted[name] = true
		}
	}

	var out []TestSpec
	for _, t := range tests {
		if wanted[t.Name] {
			out = append(out, t)
			delete(wanted, t.Name)
		}
	}
	if len(wanted) > 0 {
		missing := make([]string, 0, len(wanted))
		for name := range wanted {
			missing = append(missing, name)
		}
		sort.Strings(missing)
		return nil, fmt.Errorf("unknown test(s): %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// Name derives the suite label from the file name: "smoke.yaml" becomes
// "smoke", and the conventional "config.yaml" becomes "default".
func Name(path string) string {
	base := BaseName(path)
	if base == "config" {
		return "default"
	}
	return base
}

// BaseName is the file name without directory or YAML extension.
func BaseName(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".yaml")
	return strings.TrimSuffix(base, ".yml")
}

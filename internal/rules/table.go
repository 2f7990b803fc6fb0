// Package rules holds the keyword table and the deterministic rule classifier.
package rules

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/spendwise/internal/model"
)

//go:embed default_rules.yaml
var defaultRules []byte

// Table maps each category to the keywords that select it.
// A Table is read-only once loaded and safe for concurrent use.
type Table struct {
	Keywords map[model.Category][]string `yaml:"keywords"`
}

// DefaultTable returns the built-in keyword table.
func DefaultTable() Table {
	t, err := ParseTable(defaultRules)
	if err != nil {
		panic("invalid embedded rules: " + err.Error())
	}
	return t
}

// DefaultTableYAML returns the raw embedded table, for writing starter files.
func DefaultTableYAML() []byte {
	return append([]byte(nil), defaultRules...)
}

// LoadTable reads a keyword table from a YAML file.
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("reading rules: %w", err)
	}
	t, err := ParseTable(data)
	if err != nil {
		return Table{}, fmt.Errorf("parsing rules %s: %w", path, err)
	}
	return t, nil
}

// ParseTable decodes and validates a YAML keyword table.
func ParseTable(data []byte) (Table, error) {
	var raw struct {
		Keywords map[string][]string `yaml:"keywords"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Table{}, err
	}

	t := Table{Keywords: make(map[model.Category][]string, len(raw.Keywords))}
	for name, words := range raw.Keywords {
		cat, ok := model.ParseCategory(name)
		if !ok {
			return Table{}, fmt.Errorf("unknown category %q", name)
		}
		for _, w := range words {
			if w = strings.TrimSpace(w); w != "" {
				t.Keywords[cat] = append(t.Keywords[cat], w)
			}
		}
	}
	return t, nil
}

// Marshal encodes the table as YAML.
func (t Table) Marshal() ([]byte, error) {
	return yaml.Marshal(t)
}

// Size returns the total keyword count.
func (t Table) Size() int {
	n := 0
	for _, words := range t.Keywords {
		n += len(words)
	}
	return n
}

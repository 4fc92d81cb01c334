// Package config loads the declarative per-filter artifacts that drive the
// pipeline: which rows to keep, which bracket domain (if any) to apply, and
// how to order categories for display. One YAML file per filter under a
// config directory, e.g. configs/income-brackets.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/panelsight-org/panelsight/engine"
)

// FilterableColumns are the dimension columns a filter may constrain, in
// grouping-priority order (see GroupColumn).
var FilterableColumns = []string{"daypart", "demographic", "characteristic", "income_bracket", "age_bracket"}

// Filter is one declarative filter configuration.
type Filter struct {
	Title      string                `yaml:"title"`
	Brackets   string                `yaml:"brackets,omitempty"` // "", "income", or "age"
	Dimensions map[string]StringList `yaml:"dimensions"`
	Order      []string              `yaml:"order,omitempty"` // explicit category order override
}

// StringList accepts either a single YAML scalar or a sequence, mirroring
// the single-value-or-list shape of the filter artifacts.
type StringList []string

func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*l = StringList{s}
		return nil
	case yaml.SequenceNode:
		var vals []string
		if err := node.Decode(&vals); err != nil {
			return err
		}
		*l = StringList(vals)
		return nil
	default:
		return fmt.Errorf("dimension filter must be a string or a list, got %v", node.Kind)
	}
}

// Load reads and parses a filter file.
func Load(path string) (*Filter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading filter config: %w", err)
	}

	f := &Filter{}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parsing filter config: %w", err)
	}

	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return f, nil
}

// LoadNamed loads dir/<name>.yaml.
func LoadNamed(dir, name string) (*Filter, error) {
	return Load(filepath.Join(dir, name+".yaml"))
}

// Names lists the filter names (file basenames without extension) in a
// config directory, sorted by the directory listing order.
func Names(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading config directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".yaml") {
			names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
		}
	}
	return names, nil
}

// Validate checks the artifact's structural rules.
func (f *Filter) Validate() error {
	if strings.TrimSpace(f.Title) == "" {
		return fmt.Errorf("filter config has no title")
	}
	switch f.Brackets {
	case "", "income", "age":
	default:
		return fmt.Errorf("unknown bracket domain %q (want income or age)", f.Brackets)
	}
	for col, vals := range f.Dimensions {
		if !filterable(col) {
			return fmt.Errorf("dimension %q is not filterable (want one of %v)", col, FilterableColumns)
		}
		if len(vals) == 0 {
			return fmt.Errorf("dimension %q has no allowed values", col)
		}
	}
	return nil
}

// EngineFilters converts the artifact into engine filters, dropping the
// bracket columns: those do not exist until after decomposition, and the
// bracket engine replaces the source column's categories wholesale.
func (f *Filter) EngineFilters() engine.Filters {
	dims := make(map[string][]string)
	for col, vals := range f.Dimensions {
		if col == "income_bracket" || col == "age_bracket" {
			continue
		}
		dims[col] = append([]string(nil), vals...)
	}
	return engine.Filters{Dimensions: dims}
}

// GroupColumn returns the first filterable column with more than one allowed
// value — the column the rendered output is grouped and colored by — or ""
// if every constraint is single-valued.
func (f *Filter) GroupColumn() string {
	for _, col := range FilterableColumns {
		if vals, ok := f.Dimensions[col]; ok && len(vals) > 1 {
			return col
		}
	}
	return ""
}

// CategoryOrder returns the explicit display order for a column: the Order
// override if set, otherwise the column's declared value list.
func (f *Filter) CategoryOrder(col string) []string {
	if len(f.Order) > 0 {
		return f.Order
	}
	if vals, ok := f.Dimensions[col]; ok {
		return vals
	}
	return nil
}

func filterable(col string) bool {
	for _, c := range FilterableColumns {
		if c == col {
			return true
		}
	}
	return false
}

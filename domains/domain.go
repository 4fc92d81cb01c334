// Package domains binds the bracket engine to the concrete survey
// dimensions that ship with the measurement table: income levels over the
// "characteristic" column and age groups over the "demographic" column.
//
// Each domain is a fixed instantiation — expression table, label map,
// grouping keys, source column — declared once and never mutated.
package domains

import (
	"fmt"

	"github.com/panelsight-org/panelsight/engine"
)

// Domain is a fixed bracket-decomposition setup for one survey dimension.
type Domain struct {
	Name          string
	SourceColumn  string   // overlapping-category column being replaced
	BracketColumn string   // long-form output column holding display labels
	GroupKeys     []string // everything except the decomposed dimension

	Expressions *engine.ExpressionTable
	Labels      *engine.LabelMap

	// AllowedMetrics is the additive allow-list: only count-style metrics
	// can be split by inclusion-exclusion. Ratio and average metrics are
	// rejected here, at the call site, not inside the builder.
	AllowedMetrics []string
}

// Decomposition is the output of Domain.Decompose.
type Decomposition struct {
	Wide     *engine.WideTable
	Long     []engine.Record // nil when melt=false
	Warnings []engine.Warning
}

// DefaultMetrics returns the domain's full additive allow-list, used when
// the caller passes no metrics.
func (d *Domain) DefaultMetrics() []string {
	return append([]string(nil), d.AllowedMetrics...)
}

// Decompose runs the wide bracket builder over the view and, when melt is
// true, reshapes the result into long form with display labels. A nil
// metrics slice means the domain's full allow-list; a metric outside the
// allow-list is a *engine.ConfigError.
func (d *Domain) Decompose(view engine.RecordView, metrics []string, melt bool) (*Decomposition, error) {
	if metrics == nil {
		metrics = d.DefaultMetrics()
	}
	for _, m := range metrics {
		if !d.allowed(m) {
			return nil, &engine.ConfigError{
				Key:    m,
				Reason: fmt.Sprintf("metric is not additive; %s brackets accept only %v", d.Name, d.AllowedMetrics),
			}
		}
	}

	if err := d.Expressions.Validate(d.Labels); err != nil {
		return nil, err
	}

	wide, err := engine.BuildWide(view, d.GroupKeys, d.SourceColumn, d.Expressions, metrics)
	if err != nil {
		return nil, err
	}

	dec := &Decomposition{Wide: wide, Warnings: wide.Warnings}
	if !melt {
		return dec, nil
	}

	long, err := engine.Melt(wide, d.Labels, d.BracketColumn, metrics, engine.WithStrictLabels())
	if err != nil {
		return nil, err
	}
	dec.Long = long
	return dec, nil
}

func (d *Domain) allowed(metric string) bool {
	for _, m := range d.AllowedMetrics {
		if m == metric {
			return true
		}
	}
	return false
}

// ByName returns a shipped domain by its bracket-filter name.
func ByName(name string) (*Domain, bool) {
	switch name {
	case Income.Name:
		return Income, true
	case Age.Name:
		return Age, true
	}
	return nil, false
}

package engine

import (
	"sort"
	"strings"
)

// ============================================================================
// BRACKETS — Decomposition of Overlapping Cumulative Categories
// ============================================================================
// Survey tables report cumulative categories ("$25K+", "$50K+", ...) that
// overlap. BuildWide turns them into disjoint brackets ("$25K–$50K") by
// evaluating a signed linear combination per bracket, then summing by
// grouping key. Melt reshapes the wide result into one row per
// (group, bracket) with display labels.
//
// An expression is a signed-coefficient term list: the first label is added
// (+1) and every subsequent label is subtracted (-1) because it double-counts
// members already in the first. For properly nested source data, summing all
// brackets reproduces the largest cumulative category per group.
// ============================================================================

// Term is one signed component of a bracket expression.
type Term struct {
	Label string  `json:"label"`
	Coef  float64 `json:"coef"` // +1 or -1
}

// Expression is an ordered signed-coefficient list over source labels.
type Expression []Term

// Expr builds an Expression from one added label and any number of
// subtracted labels: the inclusion-exclusion encoding for nested categories.
func Expr(add string, subtract ...string) Expression {
	expr := Expression{{Label: add, Coef: 1}}
	for _, label := range subtract {
		expr = append(expr, Term{Label: label, Coef: -1})
	}
	return expr
}

// coefficients folds an expression into a per-label coefficient map.
func (e Expression) coefficients() map[string]float64 {
	coefs := make(map[string]float64, len(e))
	for _, t := range e {
		coefs[t.Label] += t.Coef
	}
	return coefs
}

// ============================================================================
// EXPRESSION TABLE — ordered bracket_key → Expression
// ============================================================================

// ExpressionTable maps bracket keys to expressions, preserving insertion
// order. Declarative data, immutable once built — inject at call time rather
// than sharing module state.
type ExpressionTable struct {
	keys  []string
	exprs map[string]Expression
}

// NewExpressionTable creates an empty expression table.
func NewExpressionTable() *ExpressionTable {
	return &ExpressionTable{exprs: make(map[string]Expression)}
}

// Add registers a bracket expression. Re-adding a key replaces the
// expression but keeps its original position.
func (t *ExpressionTable) Add(key string, expr Expression) *ExpressionTable {
	if _, exists := t.exprs[key]; !exists {
		t.keys = append(t.keys, key)
	}
	t.exprs[key] = expr
	return t
}

// Keys returns bracket keys in declared order.
func (t *ExpressionTable) Keys() []string { return t.keys }

// Expr returns the expression for a bracket key.
func (t *ExpressionTable) Expr(key string) (Expression, bool) {
	e, ok := t.exprs[key]
	return e, ok
}

// Len returns the number of brackets.
func (t *ExpressionTable) Len() int { return len(t.keys) }

// Validate checks structural soundness: at least one bracket, every
// expression non-empty with non-blank labels, and exact key correspondence
// with the paired label map (every expression key labelled, every label
// keyed). Independent of data.
func (t *ExpressionTable) Validate(labels *LabelMap) error {
	if t.Len() == 0 {
		return &ConfigError{Key: "(table)", Reason: "expression table is empty"}
	}
	for _, key := range t.keys {
		expr := t.exprs[key]
		if len(expr) == 0 {
			return &ConfigError{Key: key, Reason: "expression has no terms"}
		}
		for _, term := range expr {
			if strings.TrimSpace(term.Label) == "" {
				return &ConfigError{Key: key, Reason: "expression has a blank source label"}
			}
		}
		if _, ok := labels.Label(key); !ok {
			return &ConfigError{Key: key, Reason: "no display label for bracket key"}
		}
	}
	for _, key := range labels.Keys() {
		if _, ok := t.exprs[key]; !ok {
			return &ConfigError{Key: key, Reason: "display label has no bracket expression"}
		}
	}
	return nil
}

// ============================================================================
// LABEL MAP — ordered bracket_key → display label
// ============================================================================

// LabelMap maps bracket keys to display labels, preserving insertion order.
// The declared order becomes the canonical display order downstream.
type LabelMap struct {
	keys   []string
	labels map[string]string
}

// NewLabelMap creates an empty label map.
func NewLabelMap() *LabelMap {
	return &LabelMap{labels: make(map[string]string)}
}

// Set registers a display label for a bracket key.
func (m *LabelMap) Set(key, label string) *LabelMap {
	if _, exists := m.labels[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.labels[key] = label
	return m
}

// Keys returns bracket keys in declared order.
func (m *LabelMap) Keys() []string { return m.keys }

// Label returns the display label for a bracket key.
func (m *LabelMap) Label(key string) (string, bool) {
	l, ok := m.labels[key]
	return l, ok
}

// Labels returns display labels in declared order, for use as an explicit
// category order on legends and axes.
func (m *LabelMap) Labels() []string {
	out := make([]string, len(m.keys))
	for i, k := range m.keys {
		out[i] = m.labels[k]
	}
	return out
}

// Len returns the number of labels.
func (m *LabelMap) Len() int { return len(m.keys) }

// ============================================================================
// WIDE BRACKET BUILDER
// ============================================================================

// WideColumn names the derived column for a (metric, bracket) pair.
// Unique across an operation as long as bracket keys are unique.
func WideColumn(metric, bracketKey string) string {
	return metric + "_" + bracketKey
}

// keySep joins grouping-key values into a map key. Unit separator — never
// appears in survey labels.
const keySep = "\x1f"

// BuildWide computes one row per unique grouping-key combination with one
// derived column per (metric × bracket), each the signed sum of source rows
// at the expression's labels, aggregated with sum.
//
// A label that never appears in sourceCol contributes zero (no error),
// recorded as a WarnAbsentLabel warning. Negative computed values are
// recorded as WarnNegativeValue warnings. Missing group keys, source column,
// or metrics are a *SchemaError. Empty metrics is valid and degenerate:
// grouping keys with no derived columns.
//
// Input row order never affects output; rows are sorted by grouping-key
// tuple.
func BuildWide(view RecordView, groupKeys []string, sourceCol string, exprs *ExpressionTable, metrics []string) (*WideTable, error) {
	if err := checkColumns(view, groupKeys, sourceCol, metrics); err != nil {
		return nil, err
	}

	// Compile expressions to coefficient maps once.
	coefs := make(map[string]map[string]float64, exprs.Len())
	for _, key := range exprs.Keys() {
		expr, _ := exprs.Expr(key)
		coefs[key] = expr.coefficients()
	}

	// Derived column order is metric-major: all brackets for the first
	// metric, then the next.
	columns := make([]string, 0, len(metrics)*exprs.Len())
	for _, metric := range metrics {
		for _, key := range exprs.Keys() {
			columns = append(columns, WideColumn(metric, key))
		}
	}

	// Single pass: accumulate signed contributions per group.
	rows := make(map[string]*WideRow)
	seenLabels := make(map[string]bool)
	for i := 0; i < view.Len(); i++ {
		label := view.Dimension(i, sourceCol)
		seenLabels[label] = true

		tuple := make([]string, len(groupKeys))
		for j, k := range groupKeys {
			tuple[j] = view.Dimension(i, k)
		}
		mapKey := strings.Join(tuple, keySep)

		row, ok := rows[mapKey]
		if !ok {
			row = &WideRow{Keys: make(map[string]string, len(groupKeys)), Values: make(map[string]float64, len(columns))}
			for j, k := range groupKeys {
				row.Keys[k] = tuple[j]
			}
			for _, c := range columns {
				row.Values[c] = 0
			}
			rows[mapKey] = row
		}

		for _, metric := range metrics {
			val := view.Measure(i, metric)
			for _, key := range exprs.Keys() {
				if coef := coefs[key][label]; coef != 0 {
					row.Values[WideColumn(metric, key)] += coef * val
				}
			}
		}
	}

	table := &WideTable{
		GroupKeys: append([]string(nil), groupKeys...),
		Columns:   columns,
		Brackets:  append([]string(nil), exprs.Keys()...),
		Rows:      make([]WideRow, 0, len(rows)),
	}

	mapKeys := make([]string, 0, len(rows))
	for k := range rows {
		mapKeys = append(mapKeys, k)
	}
	sort.Strings(mapKeys)
	for _, k := range mapKeys {
		table.Rows = append(table.Rows, *rows[k])
	}

	// Data-quality warnings: configured labels absent from this slice,
	// and negative computed bracket values.
	for _, key := range exprs.Keys() {
		expr, _ := exprs.Expr(key)
		for _, term := range expr {
			if !seenLabels[term.Label] {
				table.Warnings = append(table.Warnings, Warning{
					Kind:   WarnAbsentLabel,
					Column: sourceCol,
					Label:  term.Label,
				})
			}
		}
	}
	for _, row := range table.Rows {
		for _, col := range columns {
			if v := row.Values[col]; v < 0 {
				table.Warnings = append(table.Warnings, Warning{
					Kind:   WarnNegativeValue,
					Column: col,
					Group:  groupLabel(row.Keys, groupKeys),
					Value:  v,
				})
			}
		}
	}

	return table, nil
}

// checkColumns verifies every referenced column exists in the view.
func checkColumns(view RecordView, groupKeys []string, sourceCol string, metrics []string) error {
	dims := toSet(view.DimensionKeys())
	meas := toSet(view.MeasureKeys())

	var missing []string
	for _, k := range groupKeys {
		if !dims[k] {
			missing = append(missing, k)
		}
	}
	if sourceCol != "" && !dims[sourceCol] {
		missing = append(missing, sourceCol)
	}
	for _, m := range metrics {
		if !meas[m] {
			missing = append(missing, m)
		}
	}
	if len(missing) != 0 {
		sort.Strings(missing)
		return &SchemaError{Missing: missing}
	}
	return nil
}

func groupLabel(keys map[string]string, order []string) string {
	vals := make([]string, len(order))
	for i, k := range order {
		vals[i] = keys[k]
	}
	return strings.Join(vals, "/")
}

// ============================================================================
// BRACKET MELTER
// ============================================================================

// Melt reshapes a wide bracket table into long form: for every bracket key
// in the label map's declared order, one block of rows (one per wide row)
// with the grouping keys copied verbatim, bracketCol set to the display
// label, and each metric copied from its {metric}_{key} column only when
// that column exists — absent columns are omitted, not zero-filled.
//
// Block emission order is the label map's key order; downstream category
// ordering relies on it. In strict mode a label-map key with no wide column
// for any requested metric, or a wide bracket with no label, is a
// *ConfigError. The default policy skips those checks: unlabelled wide
// brackets are ignored and unmatched label keys emit label-only rows.
func Melt(wide *WideTable, labels *LabelMap, bracketCol string, metrics []string, opts ...MeltOption) ([]Record, error) {
	cfg := applyMeltOptions(opts)

	if cfg.Strict {
		for _, bracket := range wide.Brackets {
			if _, ok := labels.Label(bracket); !ok {
				return nil, &ConfigError{Key: bracket, Reason: "wide bracket has no display label"}
			}
		}
		for _, key := range labels.Keys() {
			covered := false
			for _, metric := range metrics {
				if wide.HasColumn(WideColumn(metric, key)) {
					covered = true
					break
				}
			}
			if !covered {
				return nil, &ConfigError{Key: key, Reason: "display label has no wide bracket columns"}
			}
		}
	}

	records := make([]Record, 0, labels.Len()*len(wide.Rows))
	for _, key := range labels.Keys() {
		display, _ := labels.Label(key)
		for _, row := range wide.Rows {
			rec := Record{
				Dimensions: make(map[string]string, len(wide.GroupKeys)+1),
				Measures:   make(map[string]float64, len(metrics)),
			}
			for _, gk := range wide.GroupKeys {
				rec.Dimensions[gk] = row.Keys[gk]
			}
			rec.Dimensions[bracketCol] = display
			for _, metric := range metrics {
				col := WideColumn(metric, key)
				if wide.HasColumn(col) {
					rec.Measures[metric] = row.Values[col]
				}
			}
			records = append(records, rec)
		}
	}
	return records, nil
}

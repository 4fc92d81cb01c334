package engine

// ============================================================================
// PANELSIGHT ENGINE TYPES — Audience Table Decomposition
// ============================================================================
// A Record is one observation row from the measurement table: one
// month × daypart × demographic × characteristic combination, carrying
// sibling numeric metrics (reach_imp, grp_imp, ...).
//
// Dependency note: engine has ZERO external dependencies.
// ============================================================================

// Record is a single data row with string dimensions and numeric measures.
//
// Example: Record{Dimensions["daypart"]="Total Day", Measures["reach_imp"]=500}
type Record struct {
	Dimensions map[string]string  `json:"dimensions"`
	Measures   map[string]float64 `json:"measures"`
}

// ============================================================================
// FILTERS — declarative row selection
// ============================================================================

// Filters define which records to include.
// Keys are dimension names. Values are allowed values, matched verbatim
// (case- and whitespace-sensitive). OR within a dimension, AND across
// dimensions. Empty = all.
type Filters struct {
	Dimensions map[string][]string `json:"dimensions"`
}

// HasFilter returns true if a specific dimension filter is set.
func (f Filters) HasFilter(dimension string) bool {
	if f.Dimensions == nil {
		return false
	}
	vals, ok := f.Dimensions[dimension]
	return ok && len(vals) > 0
}

// IsEmpty returns true if no filters are set.
func (f Filters) IsEmpty() bool {
	if f.Dimensions == nil {
		return true
	}
	for _, vals := range f.Dimensions {
		if len(vals) > 0 {
			return false
		}
	}
	return true
}

// ============================================================================
// WIDE TABLE — one row per group, one column per (metric × bracket)
// ============================================================================

// WideRow is one aggregated row of a WideTable.
type WideRow struct {
	Keys   map[string]string  `json:"keys"`   // grouping-key values
	Values map[string]float64 `json:"values"` // derived {metric}_{bracket} columns
}

// WideTable is the wide-form output of BuildWide: one row per unique
// grouping-key combination, one numeric column per (metric × bracket).
// Ephemeral — produced and consumed within one pipeline run.
type WideTable struct {
	GroupKeys []string  `json:"groupKeys"`
	Columns   []string  `json:"columns"`  // derived columns, metric-major order
	Brackets  []string  `json:"brackets"` // bracket keys used, declared order
	Rows      []WideRow `json:"rows"`
	Warnings  []Warning `json:"warnings,omitempty"`
}

// HasColumn reports whether a derived column was produced.
func (t *WideTable) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// ============================================================================
// GROUP — intermediate aggregation result
// ============================================================================

// Group represents a grouped/aggregated result.
// Consumers convert these into table rows or chart series.
type Group struct {
	Key       string     `json:"key"`
	Label     string     `json:"label"`
	Value     float64    `json:"value"`
	Count     int        `json:"count"`
	SubGroups []Group    `json:"subGroups,omitempty"`
	View      RecordView `json:"-"` // sub-view for records in this group (zero-copy)
}

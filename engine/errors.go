package engine

import (
	"fmt"
	"strings"
)

// ============================================================================
// ERRORS & WARNINGS
// ============================================================================
// SchemaError and ConfigError are fatal to the call that raised them and are
// never swallowed. Warnings are advisory data-quality signals: the
// computation proceeds with the value as computed, and callers decide
// whether to log or surface them.
// ============================================================================

// SchemaError reports required columns absent from the input dataset
// (grouping keys, source column, or metrics).
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("dataset is missing required columns: %s", strings.Join(e.Missing, ", "))
}

// ConfigError reports an inconsistency between declarative artifacts:
// an expression-table key with no label (or vice versa), or a metric
// outside the additive allow-list.
type ConfigError struct {
	Key    string // offending bracket key or metric
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid bracket configuration: %s: %s", e.Key, e.Reason)
}

// WarningKind classifies a data-quality warning.
type WarningKind string

const (
	// WarnAbsentLabel — a configured source label never appears in the
	// filtered dataset. The bracket's contribution from that label is zero.
	WarnAbsentLabel WarningKind = "absent_label"

	// WarnNegativeValue — a computed bracket value is negative, which for
	// properly nested survey data should not happen. Treated as a signal of
	// inconsistent upstream data, not a hard error.
	WarnNegativeValue WarningKind = "negative_value"
)

// Warning is a non-fatal data-quality finding attached to a result.
type Warning struct {
	Kind   WarningKind `json:"kind"`
	Column string      `json:"column"`          // source or derived column
	Label  string      `json:"label,omitempty"` // offending source label
	Group  string      `json:"group,omitempty"` // grouping-key tuple
	Value  float64     `json:"value,omitempty"`
}

func (w Warning) String() string {
	switch w.Kind {
	case WarnAbsentLabel:
		return fmt.Sprintf("label %q never appears in column %q", w.Label, w.Column)
	case WarnNegativeValue:
		return fmt.Sprintf("negative bracket value %.2f in %s for group %s", w.Value, w.Column, w.Group)
	default:
		return string(w.Kind)
	}
}

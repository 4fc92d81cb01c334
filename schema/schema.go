package schema

import (
	"fmt"
	"strings"
)

// ============================================================================
// SCHEMA — Describes the shape of the audience-measurement table
// ============================================================================
// The measurement provider's export has a fixed shape, so the schema is
// declared rather than discovered. The CSV helper uses it to classify
// columns; the pipeline uses the additive flags as the bracket metric
// allow-list.
// ============================================================================

// Config describes the complete shape of a dataset.
type Config struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	Dimensions []DimensionMeta `json:"dimensions"`
	Measures   []MeasureMeta   `json:"measures"`
}

// DimensionMeta describes a string field used for grouping/filtering.
type DimensionMeta struct {
	Key            string `json:"key"`
	DisplayName    string `json:"displayName"`
	Description    string `json:"description,omitempty"`
	IsTemporal     bool   `json:"isTemporal,omitempty"`
	TemporalFormat string `json:"temporalFormat,omitempty"`
}

// MeasureMeta describes a numeric field used for aggregation.
type MeasureMeta struct {
	Key         string `json:"key"`
	DisplayName string `json:"displayName"`
	Description string `json:"description,omitempty"`
	Unit        string `json:"unit,omitempty"` // "impressions", "percent", "ratio"

	// Additive marks count-style metrics that can be validly summed and
	// split by inclusion-exclusion. Rates and averages are not additive and
	// must never be bracket-decomposed.
	Additive bool `json:"additive,omitempty"`
}

// Audience returns the schema of the longitudinal audience table: one row
// per month × daypart × demographic × characteristic, with sibling metric
// columns.
func Audience() Config {
	return Config{
		Name:        "audience",
		Description: "Monthly audience measurement by daypart, demographic, and characteristic",
		Dimensions: []DimensionMeta{
			{Key: "month", DisplayName: "Month", IsTemporal: true, TemporalFormat: "Jan 2006"},
			{Key: "daypart", DisplayName: "Daypart"},
			{Key: "demographic", DisplayName: "Demographic"},
			{Key: "characteristic", DisplayName: "Characteristic"},
		},
		Measures: []MeasureMeta{
			{Key: "reach_imp", DisplayName: "Reach Impressions", Unit: "impressions", Additive: true},
			{Key: "grp_imp", DisplayName: "GRP Impressions", Unit: "impressions", Additive: true},
			{Key: "reach_pct", DisplayName: "Reach %", Unit: "percent"},
			{Key: "avg_freq", DisplayName: "Average Frequency", Unit: "ratio"},
		},
	}
}

// Validate checks structural soundness: non-blank unique keys and no
// overlap between dimensions and measures.
func (c Config) Validate() error {
	seen := make(map[string]string)
	for _, d := range c.Dimensions {
		if strings.TrimSpace(d.Key) == "" {
			return fmt.Errorf("schema %q: blank dimension key", c.Name)
		}
		if prev, ok := seen[d.Key]; ok {
			return fmt.Errorf("schema %q: key %q declared as both %s and dimension", c.Name, d.Key, prev)
		}
		seen[d.Key] = "dimension"
	}
	for _, m := range c.Measures {
		if strings.TrimSpace(m.Key) == "" {
			return fmt.Errorf("schema %q: blank measure key", c.Name)
		}
		if prev, ok := seen[m.Key]; ok {
			return fmt.Errorf("schema %q: key %q declared as both %s and measure", c.Name, m.Key, prev)
		}
		seen[m.Key] = "measure"
	}
	return nil
}

// DimensionKeys returns all dimension keys.
func (c Config) DimensionKeys() []string {
	keys := make([]string, len(c.Dimensions))
	for i, d := range c.Dimensions {
		keys[i] = d.Key
	}
	return keys
}

// MeasureKeys returns all measure keys.
func (c Config) MeasureKeys() []string {
	keys := make([]string, len(c.Measures))
	for i, m := range c.Measures {
		keys[i] = m.Key
	}
	return keys
}

// AdditiveMeasureKeys returns the keys of additive (summable) measures.
func (c Config) AdditiveMeasureKeys() []string {
	var keys []string
	for _, m := range c.Measures {
		if m.Additive {
			keys = append(keys, m.Key)
		}
	}
	return keys
}

// IsAdditive reports whether a measure key is additive.
func (c Config) IsAdditive(key string) bool {
	for _, m := range c.Measures {
		if m.Key == key {
			return m.Additive
		}
	}
	return false
}

// HasMeasure reports whether a measure key is declared.
func (c Config) HasMeasure(key string) bool {
	for _, m := range c.Measures {
		if m.Key == key {
			return true
		}
	}
	return false
}

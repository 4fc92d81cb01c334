package helpers

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/panelsight-org/panelsight/engine"
	"github.com/panelsight-org/panelsight/schema"
)

// ============================================================================
// CSV HELPER — Parses measurement exports into []engine.Record
// ============================================================================
// Consumer reads the CSV from wherever it lives. This helper converts the
// raw bytes into generic Records using the schema, cleaning headers and
// normalizing the month column on the way in, and writes engine output back
// out as flat CSV.
// ============================================================================

// ParseCSV parses CSV bytes into Records using the schema for
// classification. Each row becomes a Record with dimensions (string) and
// measures (numeric). Headers are trimmed and snake_cased; values in the
// temporal month column are normalized to "2006-01".
func ParseCSV(data []byte, sch schema.Config) ([]engine.Record, error) {
	reader := csv.NewReader(strings.NewReader(string(data)))

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV headers: %w", err)
	}

	dimSet := make(map[string]bool)
	temporal := make(map[string]bool)
	for _, d := range sch.Dimensions {
		dimSet[d.Key] = true
		if d.IsTemporal {
			temporal[d.Key] = true
		}
	}
	measSet := make(map[string]bool)
	for _, m := range sch.Measures {
		measSet[m.Key] = true
	}

	type colMapping struct {
		schemaKey   string
		isDimension bool
		isMeasure   bool
	}

	mappings := make([]colMapping, len(headers))
	for i, h := range headers {
		key := toSnakeCase(strings.TrimSpace(h))
		if dimSet[key] {
			mappings[i] = colMapping{schemaKey: key, isDimension: true}
		} else if measSet[key] {
			mappings[i] = colMapping{schemaKey: key, isMeasure: true}
		}
		// Unmapped columns are silently skipped
	}

	var records []engine.Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // skip malformed rows
		}

		rec := engine.Record{
			Dimensions: make(map[string]string),
			Measures:   make(map[string]float64),
		}

		for i, val := range row {
			if i >= len(mappings) {
				break
			}
			m := mappings[i]
			val = strings.TrimSpace(val)

			if m.isDimension {
				if temporal[m.schemaKey] {
					val = NormalizeMonth(val)
				}
				rec.Dimensions[m.schemaKey] = val
			} else if m.isMeasure {
				if f, err := strconv.ParseFloat(strings.ReplaceAll(val, ",", ""), 64); err == nil {
					rec.Measures[m.schemaKey] = f
				}
			}
		}

		records = append(records, rec)
	}

	return records, nil
}

// ParseCSVView parses CSV into a RecordView (convenience wrapper).
func ParseCSVView(data []byte, sch schema.Config) (engine.RecordView, error) {
	records, err := ParseCSV(data, sch)
	if err != nil {
		return nil, err
	}
	return engine.NewSliceView(records), nil
}

// NormalizeMonth converts a month value to the canonical "2006-01" form,
// which sorts chronologically as a plain string. Accepts the export's
// "Jan 2006" format and the already-canonical form; anything else is
// returned unchanged.
func NormalizeMonth(val string) string {
	if t, err := time.Parse("2006-01", val); err == nil {
		return t.Format("2006-01")
	}
	if t, err := time.Parse("Jan 2006", val); err == nil {
		return t.Format("2006-01")
	}
	return val
}

// MonthLabel converts a canonical "2006-01" month back to the display form
// "Jan 2006". Non-canonical values pass through unchanged.
func MonthLabel(val string) string {
	if t, err := time.Parse("2006-01", val); err == nil {
		return t.Format("Jan 2006")
	}
	return val
}

// ============================================================================
// CSV OUTPUT
// ============================================================================

// WriteTable writes a header row and string rows as CSV.
func WriteTable(w io.Writer, header []string, rows [][]string) error {
	out := csv.NewWriter(w)
	if err := out.Write(header); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for _, row := range rows {
		if err := out.Write(row); err != nil {
			return fmt.Errorf("writing CSV row: %w", err)
		}
	}
	out.Flush()
	return out.Error()
}

// WriteRecords writes records as flat CSV: the given dimension columns
// first, then the measure columns. Missing measures render as empty cells
// rather than zeros, so an omitted bracket metric stays visibly absent.
func WriteRecords(w io.Writer, records []engine.Record, dims, measures []string) error {
	header := append(append([]string(nil), dims...), measures...)
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row := make([]string, 0, len(header))
		for _, d := range dims {
			row = append(row, rec.Dimensions[d])
		}
		for _, m := range measures {
			if v, ok := rec.Measures[m]; ok {
				row = append(row, formatMeasure(v))
			} else {
				row = append(row, "")
			}
		}
		rows = append(rows, row)
	}
	return WriteTable(w, header, rows)
}

// WriteView writes a RecordView as flat CSV using its registered keys.
func WriteView(w io.Writer, view engine.RecordView) error {
	dims := view.DimensionKeys()
	measures := view.MeasureKeys()
	header := append(append([]string(nil), dims...), measures...)

	rows := make([][]string, 0, view.Len())
	for i := 0; i < view.Len(); i++ {
		row := make([]string, 0, len(header))
		for _, d := range dims {
			row = append(row, view.Dimension(i, d))
		}
		for _, m := range measures {
			row = append(row, formatMeasure(view.Measure(i, m)))
		}
		rows = append(rows, row)
	}
	return WriteTable(w, header, rows)
}

// WriteWide writes a WideTable as CSV: grouping keys then derived columns.
func WriteWide(w io.Writer, t *engine.WideTable) error {
	header := append(append([]string(nil), t.GroupKeys...), t.Columns...)
	rows := make([][]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		row := make([]string, 0, len(header))
		for _, k := range t.GroupKeys {
			row = append(row, r.Keys[k])
		}
		for _, c := range t.Columns {
			row = append(row, formatMeasure(r.Values[c]))
		}
		rows = append(rows, row)
	}
	return WriteTable(w, header, rows)
}

// FlattenGroups converts aggregated groups into CSV rows. Top-level groups
// without subgroups become (key, value) rows; nested groups become
// (key, subkey, value) rows.
func FlattenGroups(groups []engine.Group) [][]string {
	var rows [][]string
	for _, g := range groups {
		if len(g.SubGroups) == 0 {
			rows = append(rows, []string{g.Key, formatMeasure(g.Value)})
			continue
		}
		for _, sg := range g.SubGroups {
			rows = append(rows, []string{g.Key, sg.Key, formatMeasure(sg.Value)})
		}
	}
	return rows
}

// SortedMonths returns the distinct months of a view in chronological order.
func SortedMonths(view engine.RecordView) []string {
	months := engine.UniqueValues(view, "month")
	sort.Strings(months) // canonical "2006-01" sorts chronologically
	return months
}

func formatMeasure(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// toSnakeCase converts "Column Name" → "column_name" and "Reach %" →
// "reach_pct".
func toSnakeCase(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "%", " pct")
	s = strings.Join(strings.Fields(s), "_")
	s = strings.ReplaceAll(s, "-", "_")
	return s
}

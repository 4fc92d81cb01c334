// Package pipeline runs filter × metric × view combinations over a loaded
// audience table and writes flat CSV output. Each combination is an
// independent item producing an explicit result; a failing item is recorded
// and skipped, never aborting the batch.
package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/panelsight-org/panelsight/config"
	"github.com/panelsight-org/panelsight/domains"
	"github.com/panelsight-org/panelsight/engine"
	"github.com/panelsight-org/panelsight/helpers"
	"github.com/panelsight-org/panelsight/schema"
)

// Views supported by the runner.
const (
	ViewTimeline = "timeline" // metric summed per month across a month range
	ViewBar      = "bar"      // metric summed for one month, optionally vs another
)

// Item is one batch combination.
type Item struct {
	Filter string `json:"filter"`
	Metric string `json:"metric"`
	View   string `json:"view"`
}

// ItemResult is the explicit per-item outcome collected into a Report.
type ItemResult struct {
	ID uuid.UUID `json:"id"`
	Item

	Output   string           `json:"output,omitempty"` // written CSV path
	Rows     int              `json:"rows"`
	Warnings []engine.Warning `json:"warnings,omitempty"`
	Err      error            `json:"-"`
	Skipped  bool             `json:"skipped,omitempty"` // invalid combination, not attempted
}

// Report collects a batch run.
type Report struct {
	RunID    uuid.UUID    `json:"runId"`
	Started  time.Time    `json:"started"`
	Finished time.Time    `json:"finished"`
	Items    []ItemResult `json:"items"`
}

// Failed returns the items that errored.
func (r *Report) Failed() []ItemResult {
	var out []ItemResult
	for _, it := range r.Items {
		if it.Err != nil {
			out = append(out, it)
		}
	}
	return out
}

// Succeeded returns the items that produced output.
func (r *Report) Succeeded() []ItemResult {
	var out []ItemResult
	for _, it := range r.Items {
		if it.Err == nil && !it.Skipped {
			out = append(out, it)
		}
	}
	return out
}

// Runner executes items against one loaded dataset.
type Runner struct {
	Data      engine.RecordView
	Schema    schema.Config
	ConfigDir string
	OutDir    string
	Logger    *slog.Logger
}

// Run executes one combination. Month bounds are canonical "2006-01"
// values: for a timeline, [compareMonth, month] is the inclusive range; for
// a bar view, month is the selected month and compareMonth an optional
// comparison.
func (r *Runner) Run(item Item, month, compareMonth string) ItemResult {
	res := ItemResult{ID: uuid.New(), Item: item}

	view, groupCol, order, warnings, err := r.prepare(item)
	res.Warnings = warnings
	if err != nil {
		res.Err = err
		return res
	}

	switch item.View {
	case ViewTimeline:
		view = engine.ApplyRange(view, "month", compareMonth, month)
	case ViewBar:
		view, err = r.selectMonths(view, month, compareMonth)
		if err != nil {
			res.Err = err
			return res
		}
	default:
		res.Err = fmt.Errorf("unknown view %q", item.View)
		return res
	}

	groupBy := []string{"month"}
	if groupCol != "" {
		groupBy = append(groupBy, groupCol)
	}
	groups := engine.GroupAndAggregate(view, groupBy, item.Metric, "sum", "chronological", 0)

	if groupCol != "" {
		engine.ApplyCategoryOrder(groups, order)
	}

	header := []string{"month", item.Metric}
	if groupCol != "" {
		header = []string{"month", groupCol, item.Metric}
	}
	rows := helpers.FlattenGroups(groups)

	out, err := r.write(item, header, rows)
	if err != nil {
		res.Err = err
		return res
	}
	res.Output = out
	res.Rows = len(rows)

	for _, w := range res.Warnings {
		r.logger().Warn("data quality", "filter", item.Filter, "metric", item.Metric, "warning", w.String())
	}
	r.logger().Info("item complete", "filter", item.Filter, "metric", item.Metric, "view", item.View, "rows", res.Rows, "output", out)
	return res
}

// prepare loads the filter artifact, applies it, and runs bracket
// decomposition when the artifact binds a domain. Returns the view to
// aggregate, the grouping column, and that column's display order.
func (r *Runner) prepare(item Item) (engine.RecordView, string, []string, []engine.Warning, error) {
	cfg, err := config.LoadNamed(r.ConfigDir, item.Filter)
	if err != nil {
		return nil, "", nil, nil, err
	}

	if !r.Schema.HasMeasure(item.Metric) {
		return nil, "", nil, nil, &engine.SchemaError{Missing: []string{item.Metric}}
	}

	filtered, err := engine.ApplyFilters(r.Data, cfg.EngineFilters())
	if err != nil {
		return nil, "", nil, nil, err
	}

	groupCol := cfg.GroupColumn()

	if cfg.Brackets == "" {
		return filtered, groupCol, cfg.CategoryOrder(groupCol), nil, nil
	}

	domain, ok := domains.ByName(cfg.Brackets)
	if !ok {
		return nil, "", nil, nil, &engine.ConfigError{Key: cfg.Brackets, Reason: "no such bracket domain"}
	}

	dec, err := domain.Decompose(filtered, []string{item.Metric}, true)
	if err != nil {
		return nil, "", nil, nil, err
	}

	long := engine.NewSliceView(dec.Long)
	if err := r.writeWorkingData(long); err != nil {
		return nil, "", nil, nil, err
	}
	if groupCol == "" {
		groupCol = domain.BracketColumn
	}
	order := cfg.CategoryOrder(groupCol)
	if len(order) == 0 {
		order = domain.Labels.Labels() // canonical bracket display order
	}
	return long, groupCol, order, dec.Warnings, nil
}

// selectMonths keeps the selected month, virtually concatenated with the
// comparison month when one is set.
func (r *Runner) selectMonths(view engine.RecordView, month, compareMonth string) (engine.RecordView, error) {
	selected, err := engine.ApplyFilters(view, engine.Filters{Dimensions: map[string][]string{"month": {month}}})
	if err != nil {
		return nil, err
	}
	if compareMonth == "" {
		return selected, nil
	}
	compared, err := engine.ApplyFilters(view, engine.Filters{Dimensions: map[string][]string{"month": {compareMonth}}})
	if err != nil {
		return nil, err
	}
	return engine.Concat(compared, selected), nil
}

// RunAll executes every combination, skipping invalid ones up front: a
// bracket filter only accepts the additive metrics. One failing item never
// stops the batch.
func (r *Runner) RunAll(filters, metrics, views []string, month, compareMonth string) *Report {
	report := &Report{RunID: uuid.New(), Started: time.Now()}

	for _, filter := range filters {
		bracketed := isBracketFilter(r.ConfigDir, filter)
		for _, metric := range metrics {
			for _, view := range views {
				item := Item{Filter: filter, Metric: metric, View: view}
				if bracketed && !r.Schema.IsAdditive(metric) {
					r.logger().Info("skipping invalid combination", "filter", filter, "metric", metric, "view", view)
					report.Items = append(report.Items, ItemResult{ID: uuid.New(), Item: item, Skipped: true})
					continue
				}
				res := r.Run(item, month, compareMonth)
				if res.Err != nil {
					r.logger().Error("item failed", "filter", filter, "metric", metric, "view", view, "error", res.Err)
				}
				report.Items = append(report.Items, res)
			}
		}
	}

	report.Finished = time.Now()
	return report
}

func (r *Runner) write(item Item, header []string, rows [][]string) (string, error) {
	dir := filepath.Join(r.OutDir, "csv")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s_%s.csv", item.View, item.Filter, item.Metric))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()
	if err := helpers.WriteTable(f, header, rows); err != nil {
		return "", err
	}
	return path, nil
}

// writeWorkingData dumps the post-decomposition rows for inspection,
// overwritten on every bracketed item.
func (r *Runner) writeWorkingData(view engine.RecordView) error {
	dir := filepath.Join(r.OutDir, "csv")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, "working-data.csv"))
	if err != nil {
		return fmt.Errorf("creating working data file: %w", err)
	}
	defer f.Close()
	return helpers.WriteView(f, view)
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// isBracketFilter reports whether a filter artifact binds a bracket domain.
// Unloadable configs are not bracketed here; Run surfaces their real error.
func isBracketFilter(dir, name string) bool {
	cfg, err := config.LoadNamed(dir, name)
	return err == nil && cfg.Brackets != ""
}

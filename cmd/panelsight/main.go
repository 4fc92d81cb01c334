package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/panelsight-org/panelsight/config"
	"github.com/panelsight-org/panelsight/engine"
	"github.com/panelsight-org/panelsight/helpers"
	"github.com/panelsight-org/panelsight/logging"
	"github.com/panelsight-org/panelsight/pipeline"
	"github.com/panelsight-org/panelsight/schema"
)

const version = "0.1.0"

var (
	filePath     string
	configDir    string
	outDir       string
	metric       string
	filterName   string
	view         string
	month        string
	compareMonth string
	runAll       bool
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "panelsight",
	Short: "Panelsight — audience measurement tables to chart-ready CSV",
	Long: `Panelsight loads a monthly audience-measurement CSV, applies a declarative
filter, optionally decomposes cumulative income or age categories into
exclusive brackets, and writes aggregated CSV output per view.

Examples:
  panelsight --file data/2023-01_2025-09.csv
  panelsight --file data.csv --filter dayparts --metric reach_pct
  panelsight --file data.csv --plot bar --filter income-brackets --month 2025-03
  panelsight --file data.csv --run-all`,
	RunE: run,
}

func run(cmd *cobra.Command, args []string) error {
	logger := logging.Setup(os.Stderr, logLevel)

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("reading data file: %w", err)
	}

	sch := schema.Audience()
	records, err := helpers.ParseCSV(data, sch)
	if err != nil {
		return err
	}
	dataset := engine.NewSliceView(records)
	logger.Info("data loaded", "file", filePath, "rows", dataset.Len())

	months := helpers.SortedMonths(dataset)
	if len(months) == 0 {
		return fmt.Errorf("no month values found in %s", filePath)
	}
	endMonth, startMonth, err := resolveMonths(months)
	if err != nil {
		return err
	}

	runner := &pipeline.Runner{
		Data:      dataset,
		Schema:    sch,
		ConfigDir: configDir,
		OutDir:    outDir,
		Logger:    logger,
	}

	if runAll {
		filters, err := config.Names(configDir)
		if err != nil {
			return err
		}
		report := runner.RunAll(filters, sch.MeasureKeys(), []string{pipeline.ViewTimeline, pipeline.ViewBar}, endMonth, startMonth)
		ok, failed := len(report.Succeeded()), len(report.Failed())
		logger.Info("batch complete", "run_id", report.RunID, "succeeded", ok, "failed", failed)
		if failed > 0 {
			for _, it := range report.Failed() {
				fmt.Fprintf(os.Stderr, "failed: %s %s/%s: %v\n", it.View, it.Filter, it.Metric, it.Err)
			}
		}
		return nil
	}

	res := runner.Run(pipeline.Item{Filter: filterName, Metric: metric, View: view}, endMonth, startMonth)
	if res.Err != nil {
		return res.Err
	}
	fmt.Printf("wrote %s rows to %s\n", engine.FormatInt(res.Rows), res.Output)
	return nil
}

// resolveMonths applies the month-flag defaults: the end month defaults to
// the latest month in the data; the comparison month defaults to the
// earliest for timelines and stays empty for bar views.
func resolveMonths(months []string) (end, start string, err error) {
	end = helpers.NormalizeMonth(month)
	if month != "" && engine.ParseMonthOrder(end) == 0 {
		return "", "", fmt.Errorf("invalid --month %q (want YYYY-MM)", month)
	}
	if end == "" {
		end = months[len(months)-1]
	}

	start = helpers.NormalizeMonth(compareMonth)
	if compareMonth != "" && engine.ParseMonthOrder(start) == 0 {
		return "", "", fmt.Errorf("invalid --compare-month %q (want YYYY-MM)", compareMonth)
	}
	if start == "" && (view == pipeline.ViewTimeline || runAll) {
		start = months[0]
	}
	return end, start, nil
}

func init() {
	rootCmd.Flags().StringVar(&filePath, "file", "", "path to the audience CSV export (required)")
	rootCmd.Flags().StringVar(&configDir, "config-dir", "configs", "directory of filter YAML artifacts")
	rootCmd.Flags().StringVarP(&outDir, "out", "o", "output", "output directory")
	rootCmd.Flags().StringVarP(&metric, "metric", "m", "reach_imp",
		"metric to aggregate (reach_imp, grp_imp, reach_pct, avg_freq); bracket filters accept only reach_imp and grp_imp")
	rootCmd.Flags().StringVarP(&filterName, "filter", "f", "totals", "name of a YAML filter (without extension) in the config dir")
	rootCmd.Flags().StringVarP(&view, "plot", "p", pipeline.ViewTimeline, "view to produce: timeline or bar")
	rootCmd.Flags().StringVar(&month, "month", "", "month to plot for bar, or timeline end month (YYYY-MM; default latest)")
	rootCmd.Flags().StringVar(&compareMonth, "compare-month", "", "comparison month for bar, or timeline start month (YYYY-MM)")
	rootCmd.Flags().BoolVarP(&runAll, "run-all", "a", false, "run every filter × metric × view combination")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.MarkFlagRequired("file")
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// Package panelsight turns longitudinal audience-measurement tables into
// chart-ready data.
//
// Usage:
//
//	import (
//	    "github.com/panelsight-org/panelsight/domains"
//	    "github.com/panelsight-org/panelsight/engine"
//	)
//
//	view, _ := engine.ApplyFilters(data, filters)
//	dec, err := domains.Income.Decompose(view, nil, true)
//
// The engine filters generic dimension/measure records, decomposes
// overlapping cumulative survey categories (e.g. "$25K+", "$50K+") into
// mutually exclusive brackets, and reshapes the result into long form for
// downstream aggregation and rendering.
//
// Rendering is handled separately by consumers. The engine never reads
// files or calls any external service — all computation is local.
package panelsight

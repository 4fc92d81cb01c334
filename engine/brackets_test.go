package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── Fixtures ─────────────────────────────────────────────────────────────────

// obs builds one observation row.
func obs(month, daypart, demographic, characteristic string, reach, grp float64) Record {
	return Record{
		Dimensions: map[string]string{
			"month":          month,
			"daypart":        daypart,
			"demographic":    demographic,
			"characteristic": characteristic,
		},
		Measures: map[string]float64{
			"reach_imp": reach,
			"grp_imp":   grp,
		},
	}
}

var incomeGroupKeys = []string{"daypart", "demographic", "month"}

func incomeExprs() *ExpressionTable {
	return NewExpressionTable().
		Add("0_25k", Expr("Less than $25K")).
		Add("25_50k", Expr("$25K+", "$50K+")).
		Add("50_75k", Expr("$50K+", "$75K+")).
		Add("75_100k", Expr("$75K+", "$100K+")).
		Add("100_200k", Expr("$100K+", "$200K+")).
		Add("200k_plus", Expr("$200K+"))
}

func incomeLabels() *LabelMap {
	return NewLabelMap().
		Set("0_25k", "Less than $25K").
		Set("25_50k", "$25K-$50K").
		Set("50_75k", "$50K-$75K").
		Set("75_100k", "$75K-$100K").
		Set("100_200k", "$100K-$200K").
		Set("200k_plus", "$200K+")
}

// incomeRecords is the single-group income scenario: cumulative tiers for
// (Total Day, Persons 18+, 2025-03).
func incomeRecords() []Record {
	tiers := []struct {
		label string
		reach float64
	}{
		{"Less than $25K", 100},
		{"$25K+", 400},
		{"$50K+", 250},
		{"$75K+", 150},
		{"$100K+", 90},
		{"$200K+", 20},
	}
	records := make([]Record, 0, len(tiers))
	for _, t := range tiers {
		records = append(records, obs("2025-03", "Total Day", "Persons 18+", t.label, t.reach, t.reach*2))
	}
	return records
}

// ── Expression table ─────────────────────────────────────────────────────────

func TestExprSignsFirstAddRestSubtract(t *testing.T) {
	expr := Expr("$25K+", "$50K+", "$75K+")
	require.Len(t, expr, 3)
	assert.Equal(t, Term{Label: "$25K+", Coef: 1}, expr[0])
	assert.Equal(t, Term{Label: "$50K+", Coef: -1}, expr[1])
	assert.Equal(t, Term{Label: "$75K+", Coef: -1}, expr[2])
}

func TestExpressionTableKeepsDeclaredOrder(t *testing.T) {
	exprs := incomeExprs()
	assert.Equal(t, []string{"0_25k", "25_50k", "50_75k", "75_100k", "100_200k", "200k_plus"}, exprs.Keys())
}

func TestExpressionTableValidate(t *testing.T) {
	t.Run("matching key sets pass", func(t *testing.T) {
		require.NoError(t, incomeExprs().Validate(incomeLabels()))
	})

	t.Run("expression key without label fails", func(t *testing.T) {
		labels := incomeLabels()
		exprs := incomeExprs().Add("extra", Expr("$300K+"))
		err := exprs.Validate(labels)
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "extra", cfgErr.Key)
	})

	t.Run("label without expression key fails", func(t *testing.T) {
		labels := incomeLabels().Set("orphan", "Orphan")
		err := incomeExprs().Validate(labels)
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "orphan", cfgErr.Key)
	})

	t.Run("empty table fails", func(t *testing.T) {
		err := NewExpressionTable().Validate(NewLabelMap())
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
	})

	t.Run("blank source label fails", func(t *testing.T) {
		exprs := NewExpressionTable().Add("bad", Expr("  "))
		labels := NewLabelMap().Set("bad", "Bad")
		err := exprs.Validate(labels)
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "bad", cfgErr.Key)
	})
}

// ── Wide bracket builder ─────────────────────────────────────────────────────

func TestBuildWideIncomeScenario(t *testing.T) {
	view := NewSliceView(incomeRecords())

	wide, err := BuildWide(view, incomeGroupKeys, "characteristic", incomeExprs(), []string{"reach_imp"})
	require.NoError(t, err)
	require.Len(t, wide.Rows, 1)

	row := wide.Rows[0]
	assert.Equal(t, "Total Day", row.Keys["daypart"])
	assert.Equal(t, "Persons 18+", row.Keys["demographic"])
	assert.Equal(t, "2025-03", row.Keys["month"])

	want := map[string]float64{
		"reach_imp_0_25k":     100,
		"reach_imp_25_50k":    150, // 400 - 250
		"reach_imp_50_75k":    100, // 250 - 150
		"reach_imp_75_100k":   60,  // 150 - 90
		"reach_imp_100_200k":  70,  // 90 - 20
		"reach_imp_200k_plus": 20,
	}
	for col, v := range want {
		assert.InDelta(t, v, row.Values[col], 1e-9, col)
	}
}

func TestBuildWideAgeScenario(t *testing.T) {
	ages := map[string]float64{
		"P2-11":  50,
		"P2+":    900,
		"P18+":   800,
		"P35-64": 500,
		"P65+":   200,
	}
	var records []Record
	for label, v := range ages {
		records = append(records, Record{
			Dimensions: map[string]string{
				"month": "2025-03", "daypart": "Total Day",
				"characteristic": "Total", "demographic": label,
			},
			Measures: map[string]float64{"reach_imp": v},
		})
	}

	exprs := NewExpressionTable().
		Add("P2_11", Expr("P2-11")).
		Add("P12_17", Expr("P2+", "P2-11", "P18+")).
		Add("P18_34", Expr("P18+", "P35-64", "P65+")).
		Add("P35_64", Expr("P35-64")).
		Add("P65_plus", Expr("P65+"))

	wide, err := BuildWide(NewSliceView(records), []string{"daypart", "characteristic", "month"}, "demographic", exprs, []string{"reach_imp"})
	require.NoError(t, err)
	require.Len(t, wide.Rows, 1)

	row := wide.Rows[0]
	assert.InDelta(t, 50, row.Values["reach_imp_P2_11"], 1e-9)
	assert.InDelta(t, 50, row.Values["reach_imp_P12_17"], 1e-9) // 900 - 50 - 800
	assert.InDelta(t, 100, row.Values["reach_imp_P18_34"], 1e-9)
	assert.InDelta(t, 500, row.Values["reach_imp_P35_64"], 1e-9)
	assert.InDelta(t, 200, row.Values["reach_imp_P65_plus"], 1e-9)

	// Conservation: this fixture is properly nested under P2+, so the
	// brackets sum back to the universal category per group.
	var sum float64
	for _, col := range wide.Columns {
		sum += row.Values[col]
	}
	assert.InDelta(t, ages["P2+"], sum, 1e-9)
}

func TestBuildWideConservationAcrossGroups(t *testing.T) {
	// Properly nested age tiers for several (daypart, month) groups.
	type tier struct {
		p2_11, p12_17, p18_34, p35_64, p65 float64
	}
	groups := map[[2]string]tier{
		{"Prime Time", "2025-01"}: {40, 30, 120, 310, 95},
		{"Prime Time", "2025-02"}: {45, 28, 118, 305, 99},
		{"Daytime", "2025-01"}:    {80, 55, 90, 200, 160},
	}

	var records []Record
	add := func(daypart, month, label string, v float64) {
		records = append(records, Record{
			Dimensions: map[string]string{
				"month": month, "daypart": daypart,
				"characteristic": "Total", "demographic": label,
			},
			Measures: map[string]float64{"grp_imp": v},
		})
	}
	for key, tr := range groups {
		daypart, month := key[0], key[1]
		p2 := tr.p2_11 + tr.p12_17 + tr.p18_34 + tr.p35_64 + tr.p65
		p18 := tr.p18_34 + tr.p35_64 + tr.p65
		add(daypart, month, "P2-11", tr.p2_11)
		add(daypart, month, "P2+", p2)
		add(daypart, month, "P18+", p18)
		add(daypart, month, "P35-64", tr.p35_64)
		add(daypart, month, "P65+", tr.p65)
	}

	exprs := NewExpressionTable().
		Add("P2_11", Expr("P2-11")).
		Add("P12_17", Expr("P2+", "P2-11", "P18+")).
		Add("P18_34", Expr("P18+", "P35-64", "P65+")).
		Add("P35_64", Expr("P35-64")).
		Add("P65_plus", Expr("P65+"))

	wide, err := BuildWide(NewSliceView(records), []string{"daypart", "characteristic", "month"}, "demographic", exprs, []string{"grp_imp"})
	require.NoError(t, err)
	require.Len(t, wide.Rows, len(groups))
	assert.Empty(t, wide.Warnings)

	for _, row := range wide.Rows {
		tr := groups[[2]string{row.Keys["daypart"], row.Keys["month"]}]
		universe := tr.p2_11 + tr.p12_17 + tr.p18_34 + tr.p35_64 + tr.p65
		var sum float64
		for _, col := range wide.Columns {
			sum += row.Values[col]
		}
		assert.InDelta(t, universe, sum, 1e-9, "group %v", row.Keys)
	}
}

func TestBuildWideInputOrderNeverMatters(t *testing.T) {
	records := incomeRecords()
	forward, err := BuildWide(NewSliceView(records), incomeGroupKeys, "characteristic", incomeExprs(), []string{"reach_imp", "grp_imp"})
	require.NoError(t, err)

	reversed := make([]Record, len(records))
	for i, r := range records {
		reversed[len(records)-1-i] = r
	}
	backward, err := BuildWide(NewSliceView(reversed), incomeGroupKeys, "characteristic", incomeExprs(), []string{"reach_imp", "grp_imp"})
	require.NoError(t, err)

	assert.Equal(t, forward.Columns, backward.Columns)
	assert.Equal(t, forward.Rows, backward.Rows)
}

func TestBuildWideSortsRowsByGroupTuple(t *testing.T) {
	records := append(incomeRecords(),
		obs("2025-01", "Total Day", "Persons 18+", "$200K+", 5, 10),
		obs("2025-02", "Total Day", "Persons 18+", "$200K+", 7, 14),
	)
	wide, err := BuildWide(NewSliceView(records), incomeGroupKeys, "characteristic", incomeExprs(), []string{"reach_imp"})
	require.NoError(t, err)
	require.Len(t, wide.Rows, 3)
	assert.Equal(t, "2025-01", wide.Rows[0].Keys["month"])
	assert.Equal(t, "2025-02", wide.Rows[1].Keys["month"])
	assert.Equal(t, "2025-03", wide.Rows[2].Keys["month"])
}

func TestBuildWideAbsentLabelContributesZero(t *testing.T) {
	// "$200K+" never occurs: its single-label bracket is exactly zero for
	// every group and no error is raised.
	var records []Record
	for _, r := range incomeRecords() {
		if r.Dimensions["characteristic"] != "$200K+" {
			records = append(records, r)
		}
	}

	wide, err := BuildWide(NewSliceView(records), incomeGroupKeys, "characteristic", incomeExprs(), []string{"reach_imp"})
	require.NoError(t, err)
	require.Len(t, wide.Rows, 1)
	assert.Zero(t, wide.Rows[0].Values["reach_imp_200k_plus"])
	// "$100K+" minus a missing "$200K+" keeps the full tier value.
	assert.InDelta(t, 90, wide.Rows[0].Values["reach_imp_100_200k"], 1e-9)

	var absent []string
	for _, w := range wide.Warnings {
		if w.Kind == WarnAbsentLabel {
			absent = append(absent, w.Label)
		}
	}
	assert.Equal(t, []string{"$200K+", "$200K+"}, absent) // referenced by two expressions
}

func TestBuildWideNegativeValueWarns(t *testing.T) {
	// Inconsistent tiers: "$50K+" exceeds "$25K+", so 25_50k goes negative.
	records := []Record{
		obs("2025-03", "Total Day", "Persons 18+", "$25K+", 100, 0),
		obs("2025-03", "Total Day", "Persons 18+", "$50K+", 130, 0),
	}
	exprs := NewExpressionTable().Add("25_50k", Expr("$25K+", "$50K+"))

	wide, err := BuildWide(NewSliceView(records), incomeGroupKeys, "characteristic", exprs, []string{"reach_imp"})
	require.NoError(t, err, "negative values are advisory, not fatal")
	assert.InDelta(t, -30, wide.Rows[0].Values["reach_imp_25_50k"], 1e-9)

	found := false
	for _, w := range wide.Warnings {
		if w.Kind == WarnNegativeValue && w.Column == "reach_imp_25_50k" {
			found = true
			assert.InDelta(t, -30, w.Value, 1e-9)
		}
	}
	assert.True(t, found, "expected a negative-value warning")
}

func TestBuildWideEmptyMetricsIsDegenerate(t *testing.T) {
	wide, err := BuildWide(NewSliceView(incomeRecords()), incomeGroupKeys, "characteristic", incomeExprs(), nil)
	require.NoError(t, err)
	assert.Empty(t, wide.Columns)
	require.Len(t, wide.Rows, 1)
	assert.Equal(t, "Total Day", wide.Rows[0].Keys["daypart"])
}

func TestBuildWideMissingColumnsAreSchemaErrors(t *testing.T) {
	view := NewSliceView(incomeRecords())

	tests := []struct {
		name      string
		groupKeys []string
		sourceCol string
		metrics   []string
		missing   []string
	}{
		{"missing group key", []string{"daypart", "station"}, "characteristic", []string{"reach_imp"}, []string{"station"}},
		{"missing source column", incomeGroupKeys, "income_tier", []string{"reach_imp"}, []string{"income_tier"}},
		{"missing metric", incomeGroupKeys, "characteristic", []string{"viewers"}, []string{"viewers"}},
		{"several missing", []string{"station"}, "income_tier", []string{"viewers"}, []string{"income_tier", "station", "viewers"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildWide(view, tt.groupKeys, tt.sourceCol, incomeExprs(), tt.metrics)
			var schemaErr *SchemaError
			require.ErrorAs(t, err, &schemaErr)
			assert.Equal(t, tt.missing, schemaErr.Missing)
		})
	}
}

func TestBuildWideMetricMajorColumnOrder(t *testing.T) {
	exprs := NewExpressionTable().
		Add("a", Expr("A")).
		Add("b", Expr("B"))
	wide, err := BuildWide(NewSliceView(incomeRecords()), incomeGroupKeys, "characteristic", exprs, []string{"reach_imp", "grp_imp"})
	require.NoError(t, err)
	assert.Equal(t, []string{"reach_imp_a", "reach_imp_b", "grp_imp_a", "grp_imp_b"}, wide.Columns)
}

// ── Melter ───────────────────────────────────────────────────────────────────

func TestMeltShapeAndOrder(t *testing.T) {
	records := append(incomeRecords(),
		obs("2025-04", "Total Day", "Persons 18+", "$25K+", 410, 820),
		obs("2025-04", "Total Day", "Persons 18+", "$50K+", 260, 520),
	)
	wide, err := BuildWide(NewSliceView(records), incomeGroupKeys, "characteristic", incomeExprs(), []string{"reach_imp", "grp_imp"})
	require.NoError(t, err)
	require.Len(t, wide.Rows, 2)

	labels := incomeLabels()
	long, err := Melt(wide, labels, "income_bracket", []string{"reach_imp", "grp_imp"})
	require.NoError(t, err)

	// k brackets × g groups rows, in label-map block order.
	require.Len(t, long, labels.Len()*len(wide.Rows))
	assert.Equal(t, "Less than $25K", long[0].Dimensions["income_bracket"])
	assert.Equal(t, "Less than $25K", long[1].Dimensions["income_bracket"])
	assert.Equal(t, "$25K-$50K", long[2].Dimensions["income_bracket"])
	assert.Equal(t, "$200K+", long[len(long)-1].Dimensions["income_bracket"])

	// Group keys copied verbatim from the source wide rows.
	for _, rec := range long {
		assert.Equal(t, "Total Day", rec.Dimensions["daypart"])
		assert.Equal(t, "Persons 18+", rec.Dimensions["demographic"])
	}

	// Values pulled from the matching wide columns.
	assert.InDelta(t, 150, long[2].Measures["reach_imp"], 1e-9)
	assert.InDelta(t, 300, long[2].Measures["grp_imp"], 1e-9)
}

func TestMeltOmitsMissingMetricColumns(t *testing.T) {
	wide, err := BuildWide(NewSliceView(incomeRecords()), incomeGroupKeys, "characteristic", incomeExprs(), []string{"reach_imp"})
	require.NoError(t, err)

	// grp_imp was never built: its column must be absent, not zero-filled.
	long, err := Melt(wide, incomeLabels(), "income_bracket", []string{"reach_imp", "grp_imp"})
	require.NoError(t, err)
	for _, rec := range long {
		_, hasReach := rec.Measures["reach_imp"]
		_, hasGrp := rec.Measures["grp_imp"]
		assert.True(t, hasReach)
		assert.False(t, hasGrp, "missing wide column must stay absent")
	}
}

func TestMeltStrictLabelCorrespondence(t *testing.T) {
	wide, err := BuildWide(NewSliceView(incomeRecords()), incomeGroupKeys, "characteristic", incomeExprs(), []string{"reach_imp"})
	require.NoError(t, err)

	t.Run("label without wide columns fails strict", func(t *testing.T) {
		labels := incomeLabels().Set("300k_plus", "$300K+")
		_, err := Melt(wide, labels, "income_bracket", []string{"reach_imp"}, WithStrictLabels())
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "300k_plus", cfgErr.Key)
	})

	t.Run("wide bracket without label fails strict", func(t *testing.T) {
		labels := NewLabelMap().Set("0_25k", "Less than $25K")
		_, err := Melt(wide, labels, "income_bracket", []string{"reach_imp"}, WithStrictLabels())
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
	})

	t.Run("lenient mode drops silently", func(t *testing.T) {
		labels := NewLabelMap().Set("0_25k", "Less than $25K")
		long, err := Melt(wide, labels, "income_bracket", []string{"reach_imp"})
		require.NoError(t, err)
		require.Len(t, long, 1)
		assert.Equal(t, "Less than $25K", long[0].Dimensions["income_bracket"])
	})
}

func TestMeltRoundTripTotals(t *testing.T) {
	// Totals survive the reshape: summing reach_imp over the long rows
	// equals summing all bracket columns of the wide table.
	wide, err := BuildWide(NewSliceView(incomeRecords()), incomeGroupKeys, "characteristic", incomeExprs(), []string{"reach_imp"})
	require.NoError(t, err)

	long, err := Melt(wide, incomeLabels(), "income_bracket", []string{"reach_imp"})
	require.NoError(t, err)

	var wideSum float64
	for _, row := range wide.Rows {
		for _, col := range wide.Columns {
			wideSum += row.Values[col]
		}
	}
	assert.InDelta(t, wideSum, SumMeasure(NewSliceView(long), "reach_imp"), 1e-9)
	assert.InDelta(t, 500, wideSum, 1e-9) // per the scenario: 100+150+100+60+70+20
}

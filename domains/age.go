package domains

import "github.com/panelsight-org/panelsight/engine"

// Age decomposes cumulative persons-age groups reported in the
// "demographic" column into exclusive brackets.
//
// P12_17 is derived by subtracting both P2-11 and P18+ from P2+, which
// assumes P2+ strictly contains their union with no gap. Verify against the
// provider's category definitions before leaning on conservation for this
// bracket; the expression is kept as the survey defines it.
var Age = &Domain{
	Name:           "age",
	SourceColumn:   "demographic",
	BracketColumn:  "age_bracket",
	GroupKeys:      []string{"daypart", "characteristic", "month"},
	AllowedMetrics: []string{"reach_imp", "grp_imp"},

	Expressions: engine.NewExpressionTable().
		Add("P2_11", engine.Expr("P2-11")).
		Add("P12_17", engine.Expr("P2+", "P2-11", "P18+")).
		Add("P18_34", engine.Expr("P18+", "P35-64", "P65+")).
		Add("P35_64", engine.Expr("P35-64")).
		Add("P65_plus", engine.Expr("P65+")),

	Labels: engine.NewLabelMap().
		Set("P2_11", "Ages 2-11").
		Set("P12_17", "Ages 12-17").
		Set("P18_34", "Ages 18-34").
		Set("P35_64", "Ages 35-64").
		Set("P65_plus", "Ages 65+"),
}

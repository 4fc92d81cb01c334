package domains

import "github.com/panelsight-org/panelsight/engine"

// Income decomposes cumulative household-income categories reported in the
// "characteristic" column into exclusive brackets. Each bracket subtracts
// the next cumulative tier from its own: $25K+ minus $50K+ leaves $25K–$50K.
// "Less than $25K" and "$200K+" are already exclusive, so their expressions
// are single-term.
var Income = &Domain{
	Name:           "income",
	SourceColumn:   "characteristic",
	BracketColumn:  "income_bracket",
	GroupKeys:      []string{"daypart", "demographic", "month"},
	AllowedMetrics: []string{"reach_imp", "grp_imp"},

	Expressions: engine.NewExpressionTable().
		Add("0_25k", engine.Expr("Less than $25K")).
		Add("25_50k", engine.Expr("$25K+", "$50K+")).
		Add("50_75k", engine.Expr("$50K+", "$75K+")).
		Add("75_100k", engine.Expr("$75K+", "$100K+")).
		Add("100_200k", engine.Expr("$100K+", "$200K+")).
		Add("200k_plus", engine.Expr("$200K+")),

	Labels: engine.NewLabelMap().
		Set("0_25k", "Less than $25K").
		Set("25_50k", "$25K-$50K").
		Set("50_75k", "$50K-$75K").
		Set("75_100k", "$75K-$100K").
		Set("100_200k", "$100K-$200K").
		Set("200k_plus", "$200K+"),
}

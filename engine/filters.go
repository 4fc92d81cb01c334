package engine

import "sort"

// ============================================================================
// FILTERS — Generic Dimension-Based Filtering via RecordView
// ============================================================================
// Single-pass filter: checks ALL dimension constraints per record in one loop.
// Returns a SubView (index list into parent) — zero data copy.
//
// Matching is verbatim (case- and whitespace-sensitive): survey labels like
// "P2-11" and "$25K+" must never alias under normalization.
// ============================================================================

// ApplyFilters returns a view of records matching all dimension filters.
// Dimensions are AND-combined; values within a dimension are OR-combined.
// Empty filter = no restriction (returns original view). A referenced
// dimension that does not exist in the view is a *SchemaError.
// Applying the same filters twice yields the same result as applying once.
func ApplyFilters(view RecordView, filters Filters) (RecordView, error) {
	if filters.IsEmpty() {
		return view, nil
	}

	available := make(map[string]bool)
	for _, k := range view.DimensionKeys() {
		available[k] = true
	}

	// Pre-build lookup sets for each dimension filter
	sets := make(map[string]map[string]bool)
	var missing []string
	for dim, allowed := range filters.Dimensions {
		if len(allowed) == 0 {
			continue
		}
		if !available[dim] {
			missing = append(missing, dim)
			continue
		}
		sets[dim] = toSet(allowed)
	}
	if len(missing) != 0 {
		sort.Strings(missing)
		return nil, &SchemaError{Missing: missing}
	}

	if len(sets) == 0 {
		return view, nil
	}

	// Single pass — record passes if it matches ALL dimension filters
	n := view.Len()
	indices := make([]int, 0, n)
	for i := 0; i < n; i++ {
		pass := true
		for dim, set := range sets {
			if !set[view.Dimension(i, dim)] {
				pass = false
				break
			}
		}
		if pass {
			indices = append(indices, i)
		}
	}

	return newSubView(view, indices), nil
}

// ApplyRange returns a view of records whose value in dimension dim falls
// within [from, to] by string comparison. Canonical "2006-01" month values
// make this a chronological range. Empty bounds are open.
func ApplyRange(view RecordView, dim, from, to string) RecordView {
	n := view.Len()
	indices := make([]int, 0, n)
	for i := 0; i < n; i++ {
		val := view.Dimension(i, dim)
		if from != "" && val < from {
			continue
		}
		if to != "" && val > to {
			continue
		}
		indices = append(indices, i)
	}
	return newSubView(view, indices)
}

// toSet converts a string slice to a lookup set.
func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}

package domain

import "sort"

// MonthlyTotal is one location_totals row: a location's incident count for
// one month.
type MonthlyTotal struct {
	Location   string
	Period     Period
	Total      int
	Fractional float64
}

// MonthlyCategoryTotal is one category_totals row.
type MonthlyCategoryTotal struct {
	Location   string
	Category   string
	Period     Period
	Total      int
	Fractional float64
}

// MonthlyTotals groups a location's records by month. Months in expected
// that have no records get a zero row so a re-ingest overwrites stale counts.
// Rows are ordered by month.
func MonthlyTotals(loc Location, records []IncidentRecord, expected []Period, policy RatePolicy) []MonthlyTotal {
	byMonth := make(map[Period]int, len(expected))
	for _, p := range expected {
		byMonth[p] = 0
	}
	for _, r := range records {
		byMonth[r.Period]++
	}

	out := make([]MonthlyTotal, 0, len(byMonth))
	for p, n := range byMonth {
		out = append(out, MonthlyTotal{
			Location:   loc.Name,
			Period:     p,
			Total:      n,
			Fractional: policy.Fractional(n, loc.Population),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out
}

// MonthlyCategoryTotals groups a location's records by (category, month).
// Fractional is the category's share of the location's population, under
// the same policy as location totals. Rows are ordered by month, then category.
func MonthlyCategoryTotals(loc Location, records []IncidentRecord, policy RatePolicy) []MonthlyCategoryTotal {
	type key struct {
		category string
		period   Period
	}
	counts := make(map[key]int)
	for _, r := range records {
		counts[key{r.Category, r.Period}]++
	}

	out := make([]MonthlyCategoryTotal, 0, len(counts))
	for k, n := range counts {
		out = append(out, MonthlyCategoryTotal{
			Location:   loc.Name,
			Category:   k.category,
			Period:     k.period,
			Total:      n,
			Fractional: policy.Fractional(n, loc.Population),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Period != out[j].Period {
			return out[i].Period < out[j].Period
		}
		return out[i].Category < out[j].Category
	})
	return out
}

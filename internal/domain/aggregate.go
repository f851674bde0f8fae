package domain

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Counts maps a location name to its incident total.
type Counts map[string]int

// CategoryCounts maps a raw category code to its incident total.
type CategoryCounts map[string]int

// Total sums every category.
func (c CategoryCounts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// CountByLocation tallies records per location name.
func CountByLocation(recordsByLocation map[string][]IncidentRecord) Counts {
	out := make(Counts, len(recordsByLocation))
	for name, records := range recordsByLocation {
		out[name] = len(records)
	}
	return out
}

// CountCategories tallies records per raw category code.
func CountCategories(records []IncidentRecord) CategoryCounts {
	out := make(CategoryCounts)
	for _, r := range records {
		out[r.Category]++
	}
	return out
}

// Totals builds one LocationStat per location, in the order given.
// Locations absent from counts get a zero total.
func Totals(locations []Location, counts Counts, policy RatePolicy) []LocationStat {
	out := make([]LocationStat, 0, len(locations))
	for _, loc := range locations {
		total := counts[loc.Name]
		out = append(out, LocationStat{
			Location:   loc.Name,
			Total:      total,
			Fractional: policy.Fractional(total, loc.Population),
		})
	}
	return out
}

// MapStats is Totals with each location's coordinates attached.
func MapStats(locations []Location, counts Counts, policy RatePolicy) []MapStat {
	totals := Totals(locations, counts, policy)
	out := make([]MapStat, 0, len(totals))
	for i, stat := range totals {
		out = append(out, MapStat{
			LocationStat: stat,
			Lat:          locations[i].Lat,
			Lng:          locations[i].Lng,
		})
	}
	return out
}

// CategoryRatios converts one location's category counts into percentage
// shares of that location's total. Rows are ordered by descending count with
// ties broken by category code. Empty counts produce an empty table.
func CategoryRatios(counts CategoryCounts, policy RatePolicy) []CategoryStat {
	total := counts.Total()
	out := make([]CategoryStat, 0, len(counts))
	if total == 0 {
		return out
	}

	codes := make([]string, 0, len(counts))
	for code, n := range counts {
		if n > 0 {
			codes = append(codes, code)
		}
	}
	sort.Slice(codes, func(i, j int) bool {
		if counts[codes[i]] != counts[codes[j]] {
			return counts[codes[i]] > counts[codes[j]]
		}
		return codes[i] < codes[j]
	})

	for _, code := range codes {
		out = append(out, CategoryStat{
			Category: CategoryLabel(code),
			Ratio:    policy.Ratio(counts[code], total),
		})
	}
	return out
}

// CategoryLabel turns a police category code into a display label:
// "anti-social-behaviour" -> "Anti social behaviour".
func CategoryLabel(code string) string {
	s := strings.ToLower(strings.ReplaceAll(code, "-", " "))
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

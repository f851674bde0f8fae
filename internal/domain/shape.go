package domain

import (
	"cmp"
	"slices"
)

// SortLocationStats returns a stably sorted copy of rows ordered by column
// ("location", "total" or "fractional").
func SortLocationStats(rows []LocationStat, column string, ascending bool) ([]LocationStat, error) {
	compare, err := locationStatCompare(column)
	if err != nil {
		return nil, err
	}
	return sortedCopy(rows, compare, ascending), nil
}

// SortMapStats returns a stably sorted copy of rows ordered by column
// ("location", "total", "fractional", "lat" or "lng").
func SortMapStats(rows []MapStat, column string, ascending bool) ([]MapStat, error) {
	var compare func(a, b MapStat) int
	switch column {
	case "lat":
		compare = func(a, b MapStat) int { return cmp.Compare(a.Lat, b.Lat) }
	case "lng":
		compare = func(a, b MapStat) int { return cmp.Compare(a.Lng, b.Lng) }
	default:
		inner, err := locationStatCompare(column)
		if err != nil {
			return nil, err
		}
		compare = func(a, b MapStat) int { return inner(a.LocationStat, b.LocationStat) }
	}
	return sortedCopy(rows, compare, ascending), nil
}

// SortCategoryStats returns a stably sorted copy of rows ordered by column
// ("category" or "ratio").
func SortCategoryStats(rows []CategoryStat, column string, ascending bool) ([]CategoryStat, error) {
	var compare func(a, b CategoryStat) int
	switch column {
	case "category":
		compare = func(a, b CategoryStat) int { return cmp.Compare(a.Category, b.Category) }
	case "ratio":
		compare = func(a, b CategoryStat) int { return cmp.Compare(a.Ratio, b.Ratio) }
	default:
		return nil, &UnknownColumnError{Column: column}
	}
	return sortedCopy(rows, compare, ascending), nil
}

func locationStatCompare(column string) (func(a, b LocationStat) int, error) {
	switch column {
	case "location":
		return func(a, b LocationStat) int { return cmp.Compare(a.Location, b.Location) }, nil
	case "total":
		return func(a, b LocationStat) int { return cmp.Compare(a.Total, b.Total) }, nil
	case "fractional":
		return func(a, b LocationStat) int { return cmp.Compare(a.Fractional, b.Fractional) }, nil
	default:
		return nil, &UnknownColumnError{Column: column}
	}
}

// sortedCopy stable-sorts a copy. Descending order negates the comparison so
// equal rows keep their input order either way.
func sortedCopy[T any](rows []T, compare func(a, b T) int, ascending bool) []T {
	out := slices.Clone(rows)
	if out == nil {
		out = []T{}
	}
	if ascending {
		slices.SortStableFunc(out, compare)
	} else {
		slices.SortStableFunc(out, func(a, b T) int { return compare(b, a) })
	}
	return out
}

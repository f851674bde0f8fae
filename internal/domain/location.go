package domain

import (
	"fmt"
	"strings"
)

// Location is a named place from the reference table.
type Location struct {
	Name       string  `json:"name"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	Population int     `json:"population"`
}

// IncidentRecord is one reported crime as returned by a record source.
type IncidentRecord struct {
	Category string  `json:"category"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Period   Period  `json:"month"`
}

// LocationStat is the incident total and population-normalised rate for one location.
type LocationStat struct {
	Location   string  `json:"location"`
	Total      int     `json:"total"`
	Fractional float64 `json:"fractional"`
}

// CategoryStat is the share of a location's incidents falling into one category.
type CategoryStat struct {
	Category string  `json:"category"`
	Ratio    float64 `json:"ratio"`
}

// MapStat is a LocationStat with coordinates for plotting.
type MapStat struct {
	LocationStat
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// StatType selects which LocationStat column a view displays.
type StatType string

const (
	StatTotal      StatType = "total"
	StatFractional StatType = "fractional"
)

// ParseStatType accepts "total" or "fractional" in any case.
// An empty string defaults to StatTotal.
func ParseStatType(s string) (StatType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "total":
		return StatTotal, nil
	case "fractional":
		return StatFractional, nil
	default:
		return "", fmt.Errorf("invalid stat type %q", s)
	}
}

// Column returns the LocationStat column this stat type sorts by.
func (s StatType) Column() string {
	return string(s)
}

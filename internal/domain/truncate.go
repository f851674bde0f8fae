package domain

import (
	"strconv"
	"strings"
)

// RatePolicy controls how derived rates are scaled and truncated.
type RatePolicy struct {
	// FractionalScale multiplies total/population before truncation
	// (100 reports incidents per 100 residents). 1 yields the plain
	// total/population ratio.
	FractionalScale float64
	// FractionalWidth is the character budget for fractional values.
	FractionalWidth int
	// RatioWidth is the character budget for category ratios.
	RatioWidth int
}

// DefaultRatePolicy reproduces the values the dashboard has always shown.
func DefaultRatePolicy() RatePolicy {
	return RatePolicy{FractionalScale: 100, FractionalWidth: 5, RatioWidth: 3}
}

// Fractional returns total/population scaled and truncated.
// A non-positive population yields 0.
func (p RatePolicy) Fractional(total, population int) float64 {
	if population <= 0 {
		return 0
	}
	return Truncate(float64(total)/float64(population)*p.FractionalScale, p.FractionalWidth)
}

// Ratio returns count as a truncated percentage of total. A zero total yields 0.
func (p RatePolicy) Ratio(count, total int) float64 {
	if total <= 0 {
		return 0
	}
	return Truncate(float64(count)/float64(total)*100, p.RatioWidth)
}

// Truncate keeps the first width characters of v's shortest fixed-point
// decimal form and parses the result back. It never rounds and never drops
// integer digits: Truncate(9.4339, 3) == 9.4, Truncate(1234.5, 3) == 1234.
// A width <= 0 disables truncation.
func Truncate(v float64, width int) float64 {
	if width <= 0 {
		return v
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	cut := width
	if dot := strings.IndexByte(s, '.'); dot >= 0 && dot > cut {
		cut = dot
	} else if dot < 0 && len(s) > cut {
		cut = len(s)
	}
	if len(s) > cut {
		s = s[:cut]
	}
	s = strings.TrimSuffix(s, ".")
	out, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return v
	}
	return out
}

package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Period is a calendar month in "YYYY-MM" form.
type Period string

// NewPeriod formats a year and month as a Period without validating them.
func NewPeriod(year, month int) Period {
	return Period(fmt.Sprintf("%04d-%02d", year, month))
}

// ParsePeriod parses "YYYY-MM", rejecting months outside 1-12.
func ParsePeriod(s string) (Period, error) {
	year, month, err := splitPeriod(strings.TrimSpace(s))
	if err != nil {
		return "", err
	}
	return NewPeriod(year, month), nil
}

// YearMonth splits a well-formed period. Malformed periods yield zeros.
func (p Period) YearMonth() (int, int) {
	y, m, err := splitPeriod(string(p))
	if err != nil {
		return 0, 0
	}
	return y, m
}

func splitPeriod(s string) (int, int, error) {
	y, m, ok := strings.Cut(s, "-")
	if !ok || len(y) != 4 || len(m) != 2 {
		return 0, 0, fmt.Errorf("invalid period %q: want YYYY-MM", s)
	}
	year, err := strconv.Atoi(y)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid period %q: %w", s, err)
	}
	month, err := strconv.Atoi(m)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid period %q: %w", s, err)
	}
	if month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("invalid period %q: month out of range", s)
	}
	return year, month, nil
}

// PeriodRange is an inclusive range of calendar months.
type PeriodRange struct {
	StartYear  int `json:"start_year"`
	StartMonth int `json:"start_month"`
	EndYear    int `json:"end_year"`
	EndMonth   int `json:"end_month"`
}

// ParsePeriodRange builds a range from two "YYYY-MM" keys and validates it.
func ParsePeriodRange(start, end string) (PeriodRange, error) {
	s, err := ParsePeriod(start)
	if err != nil {
		return PeriodRange{}, err
	}
	e, err := ParsePeriod(end)
	if err != nil {
		return PeriodRange{}, err
	}
	sy, sm := s.YearMonth()
	ey, em := e.YearMonth()
	r := PeriodRange{StartYear: sy, StartMonth: sm, EndYear: ey, EndMonth: em}
	if err := r.Validate(); err != nil {
		return PeriodRange{}, err
	}
	return r, nil
}

// Validate checks month and year bounds and that start is not after end.
func (r PeriodRange) Validate() error {
	fail := func(reason string) error {
		return &InvalidRangeError{
			StartYear: r.StartYear, StartMonth: r.StartMonth,
			EndYear: r.EndYear, EndMonth: r.EndMonth,
			Reason: reason,
		}
	}
	switch {
	case r.StartMonth < 1 || r.StartMonth > 12:
		return fail("start month must be 1-12")
	case r.EndMonth < 1 || r.EndMonth > 12:
		return fail("end month must be 1-12")
	case r.StartYear < 1 || r.StartYear > 9999 || r.EndYear < 1 || r.EndYear > 9999:
		return fail("year must be 1-9999")
	case r.StartYear*12+r.StartMonth > r.EndYear*12+r.EndMonth:
		return fail("start is after end")
	}
	return nil
}

// Periods expands the range into its ordered month keys.
func (r PeriodRange) Periods() ([]Period, error) {
	return DateRange(r.StartYear, r.StartMonth, r.EndYear, r.EndMonth)
}

// Len is the number of months in a valid range.
func (r PeriodRange) Len() int {
	return (r.EndYear*12 + r.EndMonth) - (r.StartYear*12 + r.StartMonth) + 1
}

// DateRange returns every month from start to end inclusive as "YYYY-MM"
// keys in chronological order.
func DateRange(startYear, startMonth, endYear, endMonth int) ([]Period, error) {
	r := PeriodRange{StartYear: startYear, StartMonth: startMonth, EndYear: endYear, EndMonth: endMonth}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	out := make([]Period, 0, r.Len())
	for y := startYear; y <= endYear; y++ {
		first, last := 1, 12
		if y == startYear {
			first = startMonth
		}
		if y == endYear {
			last = endMonth
		}
		for m := first; m <= last; m++ {
			out = append(out, NewPeriod(y, m))
		}
	}
	return out, nil
}

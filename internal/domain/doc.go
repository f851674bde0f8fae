// Package domain models UK street-level crime data and the statistics
// derived from it.
//
// # Data Source
//
// Incident records come from the UK Police API street-level crime endpoint
// (https://data.police.uk/docs/method/crime-street/). A query is a point
// (lat, lng) and an optional month; the API returns every crime reported
// within a one-mile radius of the point for that month, or for the latest
// published month when no date is given. The ingest loader stores the same
// records pre-aggregated in PostgreSQL.
//
// # Police API Conventions
//
// Category codes:
//
//	Lower-case words joined by hyphens, e.g. "anti-social-behaviour",
//	"criminal-damage-arson", "theft-from-the-person".
//	Displayed as labels by replacing hyphens with spaces and capitalising the
//	first letter: "Anti social behaviour". See [CategoryLabel].
//
// Months:
//
//	"YYYY-MM", e.g. "2023-07". Lexicographic order is chronological order,
//	so periods compare as plain strings. See [Period].
//
// Coordinates:
//
//	The API encodes latitude and longitude as decimal strings inside a nested
//	"location" object. Records are snapped to anonymised map points, so the
//	coordinates are not the exact incident location.
//
// Not found:
//
//	HTTP 404 means "no data for this point/month" and is treated as an empty
//	result, never as an error.
//
// # Derived Statistics
//
// Totals count incidents per location. The fractional rate divides the total
// by the location's population and scales it (per 100 residents by default).
// Category ratios are the percentage of one location's incidents in each
// category. Both are truncated, not rounded, by a [RatePolicy] so values match
// what the original dashboard displayed:
//
//	fractional: 6729 / 11262000 * 100 = 0.05975...  →  "0.059"  (5 characters)
//	ratio:      1254 / 4180 * 100     = 30.0        →  "30"     (3 characters)
//
// Truncation biases results downward; consumers depend on the exact values.
package domain

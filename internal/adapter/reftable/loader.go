// Package reftable loads the location reference table (name, coordinates,
// population) from CSV or XLSX.
package reftable

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/couchcryptid/crime-stats-service/internal/domain"
	"github.com/xuri/excelize/v2"
)

// Header aliases accepted for each column, compared case-insensitively.
var columnAliases = map[string][]string{
	"name":       {"city", "name", "location"},
	"lat":        {"lat", "latitude"},
	"lng":        {"lng", "lon", "longitude"},
	"population": {"population"},
}

// Load reads path (CSV, or XLSX by extension) into a Gazetteer. Duplicate
// names keep their first row and are logged.
func Load(path string, logger *slog.Logger) (*domain.Gazetteer, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	locs, err := ParseRows(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	g, dupes := domain.NewGazetteer(locs)
	for _, name := range dupes {
		logger.Warn("duplicate reference location ignored", "location", name, "path", path)
	}
	logger.Info("reference table loaded", "path", path, "locations", g.Len())
	return g, nil
}

func readRows(path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return readXLSX(path)
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open reference table: %w", err)
		}
		defer f.Close()
		return ReadCSV(f)
	}
}

// ReadCSV returns every record of a CSV stream. Rows may vary in width.
func ReadCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

// ParseRows maps a header row plus data rows to locations. Extra columns are
// ignored and blank rows skipped. A row with unparsable numbers or a
// non-positive population fails the whole table.
func ParseRows(rows [][]string) ([]domain.Location, error) {
	if len(rows) == 0 {
		return nil, errors.New("reference table is empty")
	}
	idx, err := indexColumns(rows[0])
	if err != nil {
		return nil, err
	}

	locs := make([]domain.Location, 0, len(rows)-1)
	for i, row := range rows[1:] {
		line := i + 2
		if blank(row) {
			continue
		}
		loc, err := parseRow(row, idx)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		locs = append(locs, loc)
	}
	return locs, nil
}

func indexColumns(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(columnAliases))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		for col, aliases := range columnAliases {
			if _, seen := idx[col]; seen {
				continue
			}
			for _, a := range aliases {
				if h == a {
					idx[col] = i
				}
			}
		}
	}
	for _, col := range []string{"name", "lat", "lng", "population"} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("missing %q column (accepted: %s)", col, strings.Join(columnAliases[col], ", "))
		}
	}
	return idx, nil
}

func parseRow(row []string, idx map[string]int) (domain.Location, error) {
	cell := func(col string) string {
		if i := idx[col]; i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	name := cell("name")
	if name == "" {
		return domain.Location{}, errors.New("empty location name")
	}
	if strings.ContainsAny(name, ",|") {
		return domain.Location{}, fmt.Errorf("%s: location name must not contain ',' or '|'", name)
	}
	lat, err := strconv.ParseFloat(cell("lat"), 64)
	if err != nil {
		return domain.Location{}, fmt.Errorf("%s: invalid lat %q", name, cell("lat"))
	}
	lng, err := strconv.ParseFloat(cell("lng"), 64)
	if err != nil {
		return domain.Location{}, fmt.Errorf("%s: invalid lng %q", name, cell("lng"))
	}
	pop, err := parsePopulation(cell("population"))
	if err != nil || pop <= 0 {
		return domain.Location{}, fmt.Errorf("%s: population must be a positive integer, got %q", name, cell("population"))
	}
	return domain.Location{Name: name, Lat: lat, Lng: lng, Population: pop}, nil
}

// parsePopulation accepts "11262000", "11,262,000" and "11262000.0".
func parsePopulation(s string) (int, error) {
	s = strings.ReplaceAll(s, ",", "")
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("fractional population %q", s)
	}
	return int(f), nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

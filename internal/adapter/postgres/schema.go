package postgres

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS location_totals (
	location   TEXT NOT NULL,
	month      TEXT NOT NULL,
	total      INTEGER NOT NULL,
	fractional DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (location, month)
)`,
	`CREATE TABLE IF NOT EXISTS category_totals (
	location   TEXT NOT NULL,
	category   TEXT NOT NULL,
	month      TEXT NOT NULL,
	total      INTEGER NOT NULL,
	fractional DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (location, category, month)
)`,
	`CREATE INDEX IF NOT EXISTS idx_category_totals_location_month ON category_totals (location, month)`,
}

// EnsureSchema creates the aggregate tables and indexes if they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	s.logger.Debug("schema ensured", "statements", len(schema))
	return nil
}

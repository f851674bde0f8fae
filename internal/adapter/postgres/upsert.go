package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/couchcryptid/crime-stats-service/internal/domain"
)

const (
	upsertLocationTotal = `INSERT INTO location_totals (location, month, total, fractional)
VALUES ($1, $2, $3, $4)
ON CONFLICT (location, month) DO UPDATE SET total = EXCLUDED.total, fractional = EXCLUDED.fractional`

	upsertCategoryTotal = `INSERT INTO category_totals (location, category, month, total, fractional)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (location, category, month) DO UPDATE SET total = EXCLUDED.total, fractional = EXCLUDED.fractional`
)

// UpsertLocationTotals writes rows in one transaction.
func (s *Store) UpsertLocationTotals(ctx context.Context, rows []domain.MonthlyTotal) error {
	if len(rows) == 0 {
		return nil
	}
	err := s.inTx(ctx, upsertLocationTotal, func(stmt *sql.Stmt) error {
		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, r.Location, string(r.Period), r.Total, r.Fractional); err != nil {
				return fmt.Errorf("upsert %s %s: %w", r.Location, r.Period, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.metrics.RowsUpserted.WithLabelValues("location_totals").Add(float64(len(rows)))
	return nil
}

// UpsertCategoryTotals writes rows in one transaction.
func (s *Store) UpsertCategoryTotals(ctx context.Context, rows []domain.MonthlyCategoryTotal) error {
	if len(rows) == 0 {
		return nil
	}
	err := s.inTx(ctx, upsertCategoryTotal, func(stmt *sql.Stmt) error {
		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, r.Location, r.Category, string(r.Period), r.Total, r.Fractional); err != nil {
				return fmt.Errorf("upsert %s %s %s: %w", r.Location, r.Category, r.Period, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.metrics.RowsUpserted.WithLabelValues("category_totals").Add(float64(len(rows)))
	return nil
}

func (s *Store) inTx(ctx context.Context, query string, fn func(*sql.Stmt) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	if err := fn(stmt); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

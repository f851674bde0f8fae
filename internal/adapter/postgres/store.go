// Package postgres is the pre-aggregated record source. It reads monthly
// totals written by the ingest loader from location_totals and
// category_totals.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/crime-stats-service/internal/domain"
	"github.com/couchcryptid/crime-stats-service/internal/observability"
	"github.com/lib/pq"
)

const backend = "store"

// Store reads and writes pre-aggregated monthly totals.
type Store struct {
	db      *sql.DB
	metrics *observability.Metrics
	logger  *slog.Logger
}

// Open connects to PostgreSQL using a lib/pq DSN.
func Open(dsn string, metrics *observability.Metrics, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	return New(db, metrics, logger), nil
}

// New wraps an existing connection pool.
func New(db *sql.DB, metrics *observability.Metrics, logger *slog.Logger) *Store {
	return &Store{db: db, metrics: metrics, logger: logger}
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres unreachable: %w", err)
	}
	return nil
}

const (
	countsByMonthsQuery = `SELECT location, SUM(total) FROM location_totals
WHERE location = ANY($1) AND month = ANY($2)
GROUP BY location`

	countsLatestQuery = `SELECT location, SUM(total) FROM location_totals
WHERE location = ANY($1)
AND month = (SELECT MAX(month) FROM location_totals WHERE location = ANY($1))
GROUP BY location`

	categoriesByMonthsQuery = `SELECT category, SUM(total) FROM category_totals
WHERE location = $1 AND month = ANY($2)
GROUP BY category`

	categoriesLatestQuery = `SELECT category, SUM(total) FROM category_totals
WHERE location = $1
AND month = (SELECT MAX(month) FROM category_totals WHERE location = $1)
GROUP BY category`
)

// Counts sums location_totals for every location across periods in one
// query. With no periods it reads the most recent month stored for the set.
// Locations with no rows are absent from the result.
func (s *Store) Counts(ctx context.Context, locs []domain.Location, periods []domain.Period) (domain.Counts, error) {
	names := make([]string, len(locs))
	for i, l := range locs {
		names[i] = l.Name
	}

	query, args := countsLatestQuery, []any{pq.Array(names)}
	if len(periods) > 0 {
		query, args = countsByMonthsQuery, []any{pq.Array(names), pq.Array(periodStrings(periods))}
	}

	counts := make(domain.Counts, len(locs))
	err := s.query(ctx, query, args, func(rows *sql.Rows) error {
		var name string
		var total int
		if err := rows.Scan(&name, &total); err != nil {
			return err
		}
		counts[name] = total
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query location totals: %w", err)
	}
	return counts, nil
}

// CategoryCounts sums category_totals for one location across periods.
func (s *Store) CategoryCounts(ctx context.Context, loc domain.Location, periods []domain.Period) (domain.CategoryCounts, error) {
	query, args := categoriesLatestQuery, []any{loc.Name}
	if len(periods) > 0 {
		query, args = categoriesByMonthsQuery, []any{loc.Name, pq.Array(periodStrings(periods))}
	}

	counts := make(domain.CategoryCounts)
	err := s.query(ctx, query, args, func(rows *sql.Rows) error {
		var category string
		var total int
		if err := rows.Scan(&category, &total); err != nil {
			return err
		}
		counts[category] = total
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query category totals for %s: %w", loc.Name, err)
	}
	return counts, nil
}

func (s *Store) query(ctx context.Context, query string, args []any, scan func(*sql.Rows) error) (err error) {
	start := time.Now()
	defer func() {
		s.metrics.RetrievalDuration.WithLabelValues(backend).Observe(time.Since(start).Seconds())
		outcome := "success"
		if err != nil {
			outcome = "error"
			s.logger.Warn("store query failed", "error", err)
		}
		s.metrics.RetrievalRequests.WithLabelValues(backend, outcome).Inc()
	}()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func periodStrings(periods []domain.Period) []string {
	out := make([]string, len(periods))
	for i, p := range periods {
		out[i] = string(p)
	}
	return out
}

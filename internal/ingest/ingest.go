// Package ingest populates the pre-aggregated store from the live record
// source, one location at a time.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/crime-stats-service/internal/domain"
	"github.com/couchcryptid/crime-stats-service/internal/observability"
)

// RecordFetcher returns raw incident records for a location. An empty period
// list means the latest published month.
type RecordFetcher interface {
	FetchAll(ctx context.Context, loc domain.Location, periods []domain.Period) ([]domain.IncidentRecord, error)
}

// Sink stores monthly aggregates.
type Sink interface {
	UpsertLocationTotals(ctx context.Context, rows []domain.MonthlyTotal) error
	UpsertCategoryTotals(ctx context.Context, rows []domain.MonthlyCategoryTotal) error
}

// RecordPublisher forwards cleaned records downstream.
type RecordPublisher interface {
	Publish(ctx context.Context, location string, records []domain.IncidentRecord) error
}

// errPublish marks a failure after the location's rows were stored.
var errPublish = errors.New("publish")

// Summary counts what one run wrote. A location whose rows were stored but
// whose records could not be published counts in PublishFailed, not Failed.
type Summary struct {
	Locations     int
	Failed        int
	PublishFailed int
	Records       int
	TotalRows     int
	CategoryRows  int
	RecordsPushed int
}

// Loader fetches, aggregates, and stores records for a list of locations.
type Loader struct {
	gazetteer *domain.Gazetteer
	fetcher   RecordFetcher
	sink      Sink
	publisher RecordPublisher // nil disables publishing
	policy    domain.RatePolicy
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewLoader creates a Loader. publisher may be nil.
func NewLoader(g *domain.Gazetteer, fetcher RecordFetcher, sink Sink, publisher RecordPublisher, policy domain.RatePolicy, logger *slog.Logger, metrics *observability.Metrics) *Loader {
	if policy == (domain.RatePolicy{}) {
		policy = domain.DefaultRatePolicy()
	}
	return &Loader{
		gazetteer: g,
		fetcher:   fetcher,
		sink:      sink,
		publisher: publisher,
		policy:    policy,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run ingests every named location over r, or the latest month when r is nil.
// A failing location is logged and skipped; the joined failures are returned
// after all locations have been attempted. Unknown names fail before any
// fetch.
func (l *Loader) Run(ctx context.Context, names []string, r *domain.PeriodRange) (Summary, error) {
	var periods []domain.Period
	if r != nil {
		var err error
		if periods, err = r.Periods(); err != nil {
			return Summary{}, err
		}
	}
	locs, err := l.gazetteer.Resolve(names)
	if err != nil {
		return Summary{}, err
	}

	var (
		sum  Summary
		errs []error
	)
	for _, loc := range locs {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		sum.Locations++
		if err := l.ingestLocation(ctx, loc, periods, &sum); err != nil {
			if errors.Is(err, errPublish) {
				sum.PublishFailed++
				l.logger.Warn("location stored, publish failed", "location", loc.Name, "error", err)
			} else {
				sum.Failed++
				l.logger.Error("ingest location failed", "location", loc.Name, "error", err)
			}
			errs = append(errs, fmt.Errorf("ingest %s: %w", loc.Name, err))
			continue
		}
	}

	l.logger.Info("ingest complete",
		"locations", sum.Locations,
		"failed", sum.Failed,
		"publish_failed", sum.PublishFailed,
		"records", sum.Records,
		"total_rows", sum.TotalRows,
		"category_rows", sum.CategoryRows,
		"published", sum.RecordsPushed,
	)
	return sum, errors.Join(errs...)
}

func (l *Loader) ingestLocation(ctx context.Context, loc domain.Location, periods []domain.Period, sum *Summary) error {
	records, err := l.fetcher.FetchAll(ctx, loc, periods)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	totals := domain.MonthlyTotals(loc, records, periods, l.policy)
	if err := l.sink.UpsertLocationTotals(ctx, totals); err != nil {
		return fmt.Errorf("store totals: %w", err)
	}
	categories := domain.MonthlyCategoryTotals(loc, records, l.policy)
	if err := l.sink.UpsertCategoryTotals(ctx, categories); err != nil {
		return fmt.Errorf("store category totals: %w", err)
	}
	sum.Records += len(records)
	sum.TotalRows += len(totals)
	sum.CategoryRows += len(categories)

	if l.publisher != nil && len(records) > 0 {
		if err := l.publisher.Publish(ctx, loc.Name, records); err != nil {
			return fmt.Errorf("%w: %w", errPublish, err)
		}
		sum.RecordsPushed += len(records)
		l.metrics.RecordsPublished.Add(float64(len(records)))
	}

	l.logger.Info("location ingested",
		"location", loc.Name,
		"records", len(records),
		"months", len(totals),
	)
	return nil
}

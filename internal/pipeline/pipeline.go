// Package pipeline runs one query end to end: period expansion, location
// resolution, memoized retrieval, aggregation and result shaping.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/couchcryptid/crime-stats-service/internal/domain"
	"github.com/couchcryptid/crime-stats-service/internal/memo"
	"github.com/couchcryptid/crime-stats-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Source retrieves incident tallies. The live police client and the
// pre-aggregated store both implement it.
type Source interface {
	Counts(ctx context.Context, locations []domain.Location, periods []domain.Period) (domain.Counts, error)
	CategoryCounts(ctx context.Context, location domain.Location, periods []domain.Period) (domain.CategoryCounts, error)
}

// CallBounded is implemented by sources that put their own deadline on
// every upstream call. Their attempts run without the pipeline Timeout, since
// one attempt may cover many calls.
type CallBounded interface {
	PerCallTimeout() time.Duration
}

// Options tunes retrieval and derived values.
type Options struct {
	Timeout     time.Duration // per attempt, for sources that are not CallBounded
	MaxAttempts int
	Backoff     time.Duration // first retry delay, doubled per attempt up to maxBackoff
	Policy      domain.RatePolicy
	Clock       clockwork.Clock
}

// DefaultOptions mirrors the config defaults.
func DefaultOptions() Options {
	return Options{
		Timeout:     10 * time.Second,
		MaxAttempts: 3,
		Backoff:     200 * time.Millisecond,
		Policy:      domain.DefaultRatePolicy(),
		Clock:       clockwork.NewRealClock(),
	}
}

const maxBackoff = 5 * time.Second

// Caches holds one memo per query kind.
type Caches struct {
	Totals     *memo.Memo[[]domain.LocationStat]
	Map        *memo.Memo[[]domain.MapStat]
	Categories *memo.Memo[[]domain.CategoryStat]
}

// NewMemoryCaches returns process-lifetime caches.
func NewMemoryCaches(logger *slog.Logger) Caches {
	return Caches{
		Totals:     memo.New[[]domain.LocationStat](domain.KindTotals, nil, logger),
		Map:        memo.New[[]domain.MapStat](domain.KindMap, nil, logger),
		Categories: memo.New[[]domain.CategoryStat](domain.KindCategories, nil, logger),
	}
}

// Pipeline serves totals, map and category queries.
type Pipeline struct {
	gazetteer *domain.Gazetteer
	source    Source
	caches    Caches
	opts      Options
	selfTimed bool
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New creates a Pipeline. Zero-valued options fall back to DefaultOptions.
func New(g *domain.Gazetteer, source Source, caches Caches, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	def := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = def.Backoff
	}
	if opts.Policy == (domain.RatePolicy{}) {
		opts.Policy = def.Policy
	}
	if opts.Clock == nil {
		opts.Clock = def.Clock
	}
	if caches.Totals == nil || caches.Map == nil || caches.Categories == nil {
		mem := NewMemoryCaches(logger)
		if caches.Totals == nil {
			caches.Totals = mem.Totals
		}
		if caches.Map == nil {
			caches.Map = mem.Map
		}
		if caches.Categories == nil {
			caches.Categories = mem.Categories
		}
	}
	if g != nil {
		metrics.ReferenceLocations.Set(float64(g.Len()))
	}
	selfTimed := false
	if cb, ok := source.(CallBounded); ok && cb.PerCallTimeout() > 0 {
		selfTimed = true
	}
	return &Pipeline{
		gazetteer: g,
		source:    source,
		caches:    caches,
		opts:      opts,
		selfTimed: selfTimed,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness reports ready once the reference table holds locations.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if p.gazetteer == nil || p.gazetteer.Len() == 0 {
		return errors.New("reference table not loaded")
	}
	return nil
}

// Locations returns the default location list: the first limit names in
// reference order.
func (p *Pipeline) Locations(limit int) []string {
	return p.gazetteer.Names(limit)
}

// Periods expands a range into its month keys.
func (p *Pipeline) Periods(r domain.PeriodRange) ([]domain.Period, error) {
	return r.Periods()
}

// CacheStats returns counters for every memo, keyed by query kind.
func (p *Pipeline) CacheStats() map[string]memo.Stats {
	return map[string]memo.Stats{
		p.caches.Totals.Name():     p.caches.Totals.Stats(),
		p.caches.Map.Name():        p.caches.Map.Stats(),
		p.caches.Categories.Name(): p.caches.Categories.Stats(),
	}
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/couchcryptid/crime-stats-service/internal/domain"
)

// ErrInvalidRequest marks malformed query parameters other than the typed
// domain errors.
var ErrInvalidRequest = errors.New("invalid request")

// Request selects locations and an optional period range for the totals and
// map views. A nil Range means the latest published month.
type Request struct {
	Locations []string
	StatType  domain.StatType
	Range     *domain.PeriodRange
	Sort      string // column; empty uses the view's default
	Order     string // "asc", "desc", or empty for the view's default
}

// CategoryRequest selects one location for the category breakdown.
type CategoryRequest struct {
	Location string
	Range    *domain.PeriodRange
	Sort     string
	Order    string
}

// Meta is common to every result. A degraded result carries empty rows and
// the retrieval error; it is never cached.
type Meta struct {
	Periods     []domain.Period `json:"periods"`
	Cached      bool            `json:"cached"`
	Degraded    bool            `json:"degraded"`
	Error       string          `json:"error,omitempty"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// TotalsResult is the per-location totals table.
type TotalsResult struct {
	StatType domain.StatType       `json:"stat"`
	Rows     []domain.LocationStat `json:"rows"`
	Meta
}

// MapResult is the totals table with coordinates.
type MapResult struct {
	StatType domain.StatType  `json:"stat"`
	Rows     []domain.MapStat `json:"rows"`
	Meta
}

// CategoryResult is one location's category breakdown.
type CategoryResult struct {
	Location string                `json:"location"`
	Rows     []domain.CategoryStat `json:"rows"`
	Meta
}

// Totals returns one row per requested location, sorted by the stat column
// ascending unless the request says otherwise.
func (p *Pipeline) Totals(ctx context.Context, req Request) (TotalsResult, error) {
	stat, err := domain.ParseStatType(string(req.StatType))
	if err != nil {
		return TotalsResult{}, p.reject(domain.KindTotals, fmt.Errorf("%w: %w", ErrInvalidRequest, err))
	}
	column := orDefault(req.Sort, stat.Column())
	asc, err := parseOrder(req.Order, true)
	if err == nil {
		_, err = domain.SortLocationStats(nil, column, asc)
	}
	if err != nil {
		return TotalsResult{}, p.reject(domain.KindTotals, err)
	}

	periods, locs, err := p.resolve(req.Range, req.Locations)
	if err != nil {
		return TotalsResult{}, p.reject(domain.KindTotals, err)
	}

	res := TotalsResult{StatType: stat, Meta: p.meta(periods)}
	key := domain.QueryKey{Kind: domain.KindTotals, Locations: names(locs), Periods: periods}
	rows, hit, err := memoized(ctx, p, p.caches.Totals, key, func(ctx context.Context) ([]domain.LocationStat, error) {
		if len(locs) == 0 {
			return []domain.LocationStat{}, nil
		}
		counts, err := p.source.Counts(ctx, locs, periods)
		if err != nil {
			return nil, err
		}
		return domain.Totals(locs, counts, p.opts.Policy), nil
	})
	if err != nil {
		res.Rows = []domain.LocationStat{}
		p.degrade(&res.Meta, domain.KindTotals, err)
		return res, nil
	}

	res.Rows, _ = domain.SortLocationStats(rows, column, asc)
	res.Cached = hit
	p.metrics.Queries.WithLabelValues(domain.KindTotals, "ok").Inc()
	return res, nil
}

// Map returns totals joined with coordinates, in request order unless a sort
// column is given. Order applies only together with Sort.
func (p *Pipeline) Map(ctx context.Context, req Request) (MapResult, error) {
	stat, err := domain.ParseStatType(string(req.StatType))
	if err != nil {
		return MapResult{}, p.reject(domain.KindMap, fmt.Errorf("%w: %w", ErrInvalidRequest, err))
	}
	asc, err := parseOrder(req.Order, true)
	switch {
	case err != nil:
	case req.Sort != "":
		_, err = domain.SortMapStats(nil, req.Sort, asc)
	case req.Order != "":
		err = fmt.Errorf("%w: order %q needs a sort column; map rows otherwise keep request order", ErrInvalidRequest, req.Order)
	}
	if err != nil {
		return MapResult{}, p.reject(domain.KindMap, err)
	}

	periods, locs, err := p.resolve(req.Range, req.Locations)
	if err != nil {
		return MapResult{}, p.reject(domain.KindMap, err)
	}

	res := MapResult{StatType: stat, Meta: p.meta(periods)}
	key := domain.QueryKey{Kind: domain.KindMap, Locations: names(locs), Periods: periods}
	rows, hit, err := memoized(ctx, p, p.caches.Map, key, func(ctx context.Context) ([]domain.MapStat, error) {
		if len(locs) == 0 {
			return []domain.MapStat{}, nil
		}
		counts, err := p.source.Counts(ctx, locs, periods)
		if err != nil {
			return nil, err
		}
		return domain.MapStats(locs, counts, p.opts.Policy), nil
	})
	if err != nil {
		res.Rows = []domain.MapStat{}
		p.degrade(&res.Meta, domain.KindMap, err)
		return res, nil
	}

	res.Rows = rows
	if req.Sort != "" {
		res.Rows, _ = domain.SortMapStats(rows, req.Sort, asc)
	}
	res.Cached = hit
	p.metrics.Queries.WithLabelValues(domain.KindMap, "ok").Inc()
	return res, nil
}

// Categories returns the category breakdown for one location, by ratio
// descending unless the request says otherwise.
func (p *Pipeline) Categories(ctx context.Context, req CategoryRequest) (CategoryResult, error) {
	if strings.TrimSpace(req.Location) == "" {
		return CategoryResult{}, p.reject(domain.KindCategories, fmt.Errorf("%w: location is required", ErrInvalidRequest))
	}
	column := orDefault(req.Sort, "ratio")
	asc, err := parseOrder(req.Order, false)
	if err == nil {
		_, err = domain.SortCategoryStats(nil, column, asc)
	}
	if err != nil {
		return CategoryResult{}, p.reject(domain.KindCategories, err)
	}

	periods, locs, err := p.resolve(req.Range, []string{req.Location})
	if err != nil {
		return CategoryResult{}, p.reject(domain.KindCategories, err)
	}
	loc := locs[0]

	res := CategoryResult{Location: loc.Name, Meta: p.meta(periods)}
	key := domain.QueryKey{Kind: domain.KindCategories, Locations: []string{loc.Name}, Periods: periods}
	rows, hit, err := memoized(ctx, p, p.caches.Categories, key, func(ctx context.Context) ([]domain.CategoryStat, error) {
		counts, err := p.source.CategoryCounts(ctx, loc, periods)
		if err != nil {
			return nil, err
		}
		return domain.CategoryRatios(counts, p.opts.Policy), nil
	})
	if err != nil {
		res.Rows = []domain.CategoryStat{}
		p.degrade(&res.Meta, domain.KindCategories, err)
		return res, nil
	}

	res.Rows, _ = domain.SortCategoryStats(rows, column, asc)
	res.Cached = hit
	p.metrics.Queries.WithLabelValues(domain.KindCategories, "ok").Inc()
	return res, nil
}

func (p *Pipeline) resolve(r *domain.PeriodRange, locationNames []string) ([]domain.Period, []domain.Location, error) {
	var periods []domain.Period
	if r != nil {
		var err error
		if periods, err = r.Periods(); err != nil {
			return nil, nil, err
		}
	}
	locs, err := p.gazetteer.Resolve(locationNames)
	if err != nil {
		return nil, nil, err
	}
	return periods, locs, nil
}

func (p *Pipeline) meta(periods []domain.Period) Meta {
	if periods == nil {
		periods = []domain.Period{}
	}
	return Meta{Periods: periods, GeneratedAt: p.opts.Clock.Now().UTC()}
}

func (p *Pipeline) reject(kind string, err error) error {
	p.metrics.Queries.WithLabelValues(kind, "rejected").Inc()
	return err
}

func (p *Pipeline) degrade(m *Meta, kind string, err error) {
	p.logger.Error("query degraded", "kind", kind, "error", err)
	p.metrics.Queries.WithLabelValues(kind, "degraded").Inc()
	m.Degraded = true
	m.Error = err.Error()
}

func parseOrder(s string, def bool) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return def, nil
	case "asc", "ascending":
		return true, nil
	case "desc", "descending":
		return false, nil
	default:
		return false, fmt.Errorf("%w: order %q must be asc or desc", ErrInvalidRequest, s)
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func names(locs []domain.Location) []string {
	out := make([]string, len(locs))
	for i, l := range locs {
		out[i] = l.Name
	}
	return out
}

package httpadapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/couchcryptid/crime-stats-service/internal/domain"
	"github.com/couchcryptid/crime-stats-service/internal/memo"
	"github.com/couchcryptid/crime-stats-service/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

// QueryService is the subset of *pipeline.Pipeline the API serves.
type QueryService interface {
	Totals(ctx context.Context, req pipeline.Request) (pipeline.TotalsResult, error)
	Map(ctx context.Context, req pipeline.Request) (pipeline.MapResult, error)
	Categories(ctx context.Context, req pipeline.CategoryRequest) (pipeline.CategoryResult, error)
	Locations(limit int) []string
	Periods(r domain.PeriodRange) ([]domain.Period, error)
	CacheStats() map[string]memo.Stats
}

// errBadParam marks a malformed query string parameter.
var errBadParam = errors.New("bad parameter")

func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r.URL.Query())
	if err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.svc.Totals(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, res)
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r.URL.Query())
	if err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.svc.Map(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, res)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rng, err := parseRange(q)
	if err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.svc.Categories(r.Context(), pipeline.CategoryRequest{
		Location: strings.TrimSpace(q.Get("location")),
		Range:    rng,
		Sort:     q.Get("sort"),
		Order:    q.Get("order"),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, res)
}

func (s *Server) handlePeriods(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRange(r.URL.Query())
	if err == nil && rng == nil {
		err = fmt.Errorf("%w: start and end are required", errBadParam)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	periods, err := s.svc.Periods(*rng)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"periods": periods})
}

func (s *Server) handleLocations(w http.ResponseWriter, r *http.Request) {
	limit := s.defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, fmt.Errorf("%w: limit %q must be a non-negative integer", errBadParam, v))
			return
		}
		limit = n
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"locations": s.svc.Locations(limit)})
}

func (s *Server) handleCache(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, s.svc.CacheStats())
}

func parseRequest(q url.Values) (pipeline.Request, error) {
	rng, err := parseRange(q)
	if err != nil {
		return pipeline.Request{}, err
	}
	return pipeline.Request{
		Locations: splitList(q["locations"]),
		StatType:  domain.StatType(q.Get("stat")),
		Range:     rng,
		Sort:      q.Get("sort"),
		Order:     q.Get("order"),
	}, nil
}

// parseRange reads start/end as YYYY-MM. Both absent means no range.
func parseRange(q url.Values) (*domain.PeriodRange, error) {
	start, end := strings.TrimSpace(q.Get("start")), strings.TrimSpace(q.Get("end"))
	if start == "" && end == "" {
		return nil, nil
	}
	if start == "" || end == "" {
		return nil, fmt.Errorf("%w: start and end must be given together", errBadParam)
	}
	rng, err := domain.ParsePeriodRange(start, end)
	if err != nil {
		var rangeErr *domain.InvalidRangeError
		if errors.As(err, &rangeErr) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", errBadParam, err)
	}
	return &rng, nil
}

// splitList accepts both locations=a,b and locations=a&locations=b.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	var (
		rangeErr *domain.InvalidRangeError
		colErr   *domain.UnknownColumnError
		locErr   *domain.UnknownLocationError
	)
	switch {
	case errors.As(err, &locErr):
		return http.StatusNotFound
	case errors.As(err, &rangeErr), errors.As(err, &colErr),
		errors.Is(err, pipeline.ErrInvalidRequest), errors.Is(err, errBadParam):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

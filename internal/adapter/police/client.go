// Package police is the live record source: it queries the data.police.uk
// street-level crime endpoint once per (coordinate, month).
package police

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/crime-stats-service/internal/domain"
	"github.com/couchcryptid/crime-stats-service/internal/memo"
	"github.com/couchcryptid/crime-stats-service/internal/observability"
)

const backend = "live"

// DefaultBaseURL is the public police API root.
const DefaultBaseURL = "https://data.police.uk/api"

// Client fetches incident records from the police API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	callTimeout time.Duration
	months      *memo.Memo[domain.CategoryCounts] // per (location, published month)
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// NewClient creates a police API client. The timeout bounds each outbound
// call, not a whole multi-month retrieval.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient:  &http.Client{},
		baseURL:     strings.TrimRight(baseURL, "/"),
		callTimeout: timeout,
		months:      memo.New[domain.CategoryCounts]("police_months", nil, logger),
		metrics:     metrics,
		logger:      logger,
	}
}

// PerCallTimeout reports the deadline applied to each outbound call.
func (c *Client) PerCallTimeout() time.Duration { return c.callTimeout }

// Fetch returns every street-level crime near loc in period. An empty period
// asks for the latest month the API has published. A 404 is an empty result.
func (c *Client) Fetch(ctx context.Context, loc domain.Location, period domain.Period) ([]domain.IncidentRecord, error) {
	params := url.Values{
		"lat": {strconv.FormatFloat(loc.Lat, 'f', -1, 64)},
		"lng": {strconv.FormatFloat(loc.Lng, 'f', -1, 64)},
	}
	if period != "" {
		params.Set("date", string(period))
	}
	u := c.baseURL + "/crimes-street/all-crime?" + params.Encode()

	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	start := time.Now()
	records, err := c.doRequest(ctx, u)
	c.metrics.RetrievalDuration.WithLabelValues(backend).Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		c.metrics.RetrievalRequests.WithLabelValues(backend, "error").Inc()
		c.logger.Warn("police api request failed", "location", loc.Name, "period", period, "error", err)
		return nil, err
	case len(records) == 0:
		c.metrics.RetrievalRequests.WithLabelValues(backend, "empty").Inc()
	default:
		c.metrics.RetrievalRequests.WithLabelValues(backend, "success").Inc()
	}
	return records, nil
}

// Counts tallies records per location across periods.
func (c *Client) Counts(ctx context.Context, locs []domain.Location, periods []domain.Period) (domain.Counts, error) {
	out := make(domain.Counts, len(locs))
	for _, loc := range locs {
		byCategory, err := c.CategoryCounts(ctx, loc, periods)
		if err != nil {
			return nil, err
		}
		out[loc.Name] = byCategory.Total()
	}
	return out, nil
}

// CategoryCounts tallies one location's records per category across periods.
// Tallies for named months are kept, so a retry or an overlapping range only
// calls the API for months not yet seen. The latest month is always fetched.
func (c *Client) CategoryCounts(ctx context.Context, loc domain.Location, periods []domain.Period) (domain.CategoryCounts, error) {
	if len(periods) == 0 {
		records, err := c.Fetch(ctx, loc, "")
		if err != nil {
			return nil, fmt.Errorf("fetch %s latest: %w", loc.Name, err)
		}
		return domain.CountCategories(records), nil
	}

	out := make(domain.CategoryCounts)
	for _, p := range periods {
		key := domain.QueryKey{Kind: "month", Locations: []string{loc.Name}, Periods: []domain.Period{p}}
		month, _, err := c.months.Do(ctx, key.String(), func(ctx context.Context) (domain.CategoryCounts, error) {
			records, err := c.Fetch(ctx, loc, p)
			if err != nil {
				return nil, err
			}
			return domain.CountCategories(records), nil
		})
		if err != nil {
			return nil, fmt.Errorf("fetch %s %s: %w", loc.Name, p, err)
		}
		for category, n := range month {
			out[category] += n
		}
	}
	return out, nil
}

// FetchAll returns loc's records for every period, or the latest month when
// periods is empty.
func (c *Client) FetchAll(ctx context.Context, loc domain.Location, periods []domain.Period) ([]domain.IncidentRecord, error) {
	if len(periods) == 0 {
		return c.Fetch(ctx, loc, "")
	}
	var out []domain.IncidentRecord
	for _, p := range periods {
		records, err := c.Fetch(ctx, loc, p)
		if err != nil {
			return nil, fmt.Errorf("fetch %s %s: %w", loc.Name, p, err)
		}
		out = append(out, records...)
	}
	return out, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]domain.IncidentRecord, error) {
	// Parameters travel in the query string even for POST.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("police api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("police api error: status %d: %s", resp.StatusCode, body)
	}

	var crimes []crime
	if err := json.NewDecoder(resp.Body).Decode(&crimes); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	records := make([]domain.IncidentRecord, len(crimes))
	for i, cr := range crimes {
		records[i] = domain.IncidentRecord{
			Category: cr.Category,
			Lat:      parseCoord(cr.Location.Latitude),
			Lng:      parseCoord(cr.Location.Longitude),
			Period:   domain.Period(cr.Month),
		}
	}
	return records, nil
}

// parseCoord reads the API's string-encoded coordinates. Anonymised records
// occasionally carry blanks, which become 0.
func parseCoord(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

// Police API response types.

type crime struct {
	Category string        `json:"category"`
	Location crimeLocation `json:"location"`
	Month    string        `json:"month"`
}

type crimeLocation struct {
	Latitude  string `json:"latitude"`  // decimal degrees as a string
	Longitude string `json:"longitude"` // decimal degrees as a string
}

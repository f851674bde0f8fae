package pipeline

import (
	"context"
	"time"

	"github.com/couchcryptid/crime-stats-service/internal/domain"
	"github.com/couchcryptid/crime-stats-service/internal/memo"
	sharedretry "github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"
)

// memoized serves key from m, computing it with retries on a miss.
func memoized[V any](ctx context.Context, p *Pipeline, m *memo.Memo[V], key domain.QueryKey, fetch func(context.Context) (V, error)) (V, bool, error) {
	k := key.String()
	v, hit, err := m.Do(ctx, k, func(ctx context.Context) (V, error) {
		return retrieve(ctx, p, key.Kind, k, fetch)
	})

	result := "miss"
	if hit {
		result = "hit"
	}
	p.metrics.MemoLookups.WithLabelValues(m.Name(), result).Inc()
	p.metrics.MemoSize.WithLabelValues(m.Name()).Set(float64(m.Stats().Size))
	return v, hit, err
}

// retrieve runs fetch, retrying with exponential backoff. Each attempt gets
// the Timeout deadline unless the source bounds its own calls. The final
// failure is wrapped in a *domain.RetrievalError.
func retrieve[V any](ctx context.Context, p *Pipeline, kind, key string, fetch func(context.Context) (V, error)) (V, error) {
	backoff := p.opts.Backoff
	var lastErr error

	for attempt := 1; attempt <= p.opts.MaxAttempts; attempt++ {
		attemptCtx, cancel := p.attemptContext(ctx)
		v, err := fetch(attemptCtx)
		cancel()
		if err == nil {
			return v, nil
		}
		lastErr = err

		if ctx.Err() != nil || attempt == p.opts.MaxAttempts {
			break
		}
		p.logger.Warn("retrieval failed, retrying",
			"kind", kind, "key", key, "attempt", attempt, "backoff", backoff, "error", err)
		p.metrics.RetrievalRetries.WithLabelValues(kind).Inc()
		if !sleepWithContext(ctx, p.opts.Clock, backoff) {
			break
		}
		backoff = sharedretry.NextBackoff(backoff, maxBackoff)
	}

	var zero V
	return zero, &domain.RetrievalError{Kind: kind, Key: key, Err: lastErr}
}

func (p *Pipeline) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.selfTimed {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.opts.Timeout)
}

func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}

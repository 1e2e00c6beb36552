package search

import (
	"context"

	"github.com/guangtouwangba/open-deep-research/internal/resilience"
)

type retryingSearcher struct {
	inner    Searcher
	name     string
	breakers *resilience.Registry
	cfg      resilience.RetryConfig
}

// WithRetry wraps s with backoff retries behind the named circuit breaker.
func WithRetry(s Searcher, name string, reg *resilience.Registry, cfg resilience.RetryConfig) Searcher {
	return &retryingSearcher{inner: s, name: name, breakers: reg, cfg: cfg}
}

func (r *retryingSearcher) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	return resilience.Call(ctx, r.breakers.Get(r.name), r.cfg, func(ctx context.Context) ([]Result, error) {
		return r.inner.Search(ctx, query, limit)
	})
}

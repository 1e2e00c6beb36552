package backend

import (
	"context"

	"github.com/guangtouwangba/open-deep-research/internal/resilience"
)

// retryingBackend decorates a Backend with backoff retries behind a circuit breaker.
type retryingBackend struct {
	inner    Backend
	name     string
	breakers *resilience.Registry
	cfg      resilience.RetryConfig
}

// WithRetry wraps b so transient Send failures are retried. Calls for the
// same name share one circuit breaker from reg.
func WithRetry(b Backend, name string, reg *resilience.Registry, cfg resilience.RetryConfig) Backend {
	return &retryingBackend{inner: b, name: name, breakers: reg, cfg: cfg}
}

func (r *retryingBackend) Send(ctx context.Context, msg Message) (Response, error) {
	return resilience.Call(ctx, r.breakers.Get(r.name), r.cfg, func(ctx context.Context) (Response, error) {
		return r.inner.Send(ctx, msg)
	})
}

func (r *retryingBackend) Close() error {
	return r.inner.Close()
}

// Package resilience wraps collaborator calls with exponential backoff and
// per-service circuit breakers. It sits outside the pipeline core: the engine
// itself never retries, callers opt in by decorating their collaborators.
package resilience

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

// RetryConfig configures exponential backoff retry behavior.
type RetryConfig struct {
	InitialInterval     time.Duration // Initial retry interval (default 100ms)
	MaxInterval         time.Duration // Maximum retry interval (default 10s)
	MaxElapsedTime      time.Duration // Maximum total retry time (default 2min)
	Multiplier          float64       // Backoff multiplier (default 2.0)
	RandomizationFactor float64       // Jitter factor (default 0.5)
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval:     100 * time.Millisecond,
		MaxInterval:         10 * time.Second,
		MaxElapsedTime:      2 * time.Minute,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

// Registry manages one circuit breaker per named service.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewRegistry creates an empty breaker registry.
func NewRegistry() *Registry {
	return &Registry{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Get returns the breaker for service, creating it on first use.
func (r *Registry) Get(service string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[service]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        service,
		MaxRequests: 3,                // Probe requests allowed while half-open
		Interval:    0,                // Never clear counts while closed
		Timeout:     30 * time.Second, // Open period before probing again
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %q: %s -> %s", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			// Cancellation is the caller's doing, not a service fault
			if err == nil {
				return true
			}
			return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
	})

	r.breakers[service] = cb
	return cb
}

// Call runs fn through cb, retrying transient failures with exponential backoff.
// An open breaker and context cancellation stop retrying immediately.
func Call[T any](ctx context.Context, cb *gobreaker.CircuitBreaker, cfg RetryConfig, fn func(context.Context) (T, error)) (T, error) {
	var out T

	operation := func() error {
		// Cancelled callers get no further attempts
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		// Every attempt counts against the service's breaker
		result, err := cb.Execute(func() (interface{}, error) {
			return fn(ctx)
		})

		if err != nil {
			// Breaker open or half-open and saturated - stop retrying
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(err)
			}

			// Caller cancelled mid-attempt - stop retrying
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}

			// Anything else is treated as transient
			return err
		}

		// Success - unwrap the typed result
		out = result.(T)
		return nil
	}

	// Build the exponential policy from cfg
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = cfg.InitialInterval
	policy.MaxInterval = cfg.MaxInterval
	policy.MaxElapsedTime = cfg.MaxElapsedTime
	policy.Multiplier = cfg.Multiplier
	policy.RandomizationFactor = cfg.RandomizationFactor

	// The policy stops waiting as soon as ctx is done
	err := backoff.Retry(operation, backoff.WithContext(policy, ctx))
	return out, err
}

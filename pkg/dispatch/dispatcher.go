// Package dispatch executes generation requests against an ordered chain of
// backends with per-backend retries, deterministic fallback, per-attempt
// timeouts, and cancellation. It is the only component that increments the
// health aggregator's attempt counters.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cecil-the-coder/imagegen-kit/pkg/factory"
	"github.com/cecil-the-coder/imagegen-kit/pkg/health"
	"github.com/cecil-the-coder/imagegen-kit/pkg/types"
)

// Target is one entry in a provider chain: a backend name plus the
// construction arguments the factory should apply for it.
type Target struct {
	Name   string
	Config types.BackendConfig
}

// Chain builds a target list from bare names, for callers whose backends
// need no construction arguments.
func Chain(names ...string) []Target {
	targets := make([]Target, len(names))
	for i, n := range names {
		targets[i] = Target{Name: n}
	}
	return targets
}

// Policy controls retry and fallback behavior for one dispatch.
type Policy struct {
	// EnableFallback allows advancing past the primary target on failure.
	// When false, a primary failure is returned without consulting the
	// rest of the chain.
	EnableFallback bool

	// MaxRetries is how many times a retryable failure may be retried
	// against the same backend before advancing to the next one.
	MaxRetries int

	// PerAttemptTimeout bounds each individual generate call. Zero means
	// no per-attempt bound beyond the caller's context.
	PerAttemptTimeout time.Duration
}

// DefaultPolicy returns the standard dispatch policy.
func DefaultPolicy() Policy {
	return Policy{
		EnableFallback:    true,
		MaxRetries:        2,
		PerAttemptTimeout: 60 * time.Second,
	}
}

// Dispatcher runs requests through a provider chain. Attempts for a single
// request are strictly sequential: one backend at a time, a backend never
// called again until the previous attempt has terminated.
type Dispatcher struct {
	factory *factory.Factory
	health  *health.Checker
	backoff Backoff
	log     zerolog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithBackoff overrides the retry backoff.
func WithBackoff(b Backoff) Option {
	return func(d *Dispatcher) { d.backoff = b }
}

// New creates a dispatcher.
func New(f *factory.Factory, h *health.Checker, log zerolog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		factory: f,
		health:  h,
		backoff: DefaultBackoff(),
		log:     log.With().Str("component", "dispatcher").Logger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch validates the request and tries each chain target in order until
// one succeeds. At most one successful result is produced; on success no
// further targets are tried. Retryable failures are retried against the
// same backend up to Policy.MaxRetries before the chain advances;
// non-retryable failures advance immediately. If the chain is exhausted the
// ordered failures are returned as a *types.GenerationFailed.
func (d *Dispatcher) Dispatch(ctx context.Context, req types.GenerationRequest, chain []Target, policy Policy) (*types.GeneratedImage, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return nil, types.NewConfigurationError("", "provider chain is empty")
	}

	effective := chain
	if !policy.EnableFallback {
		effective = chain[:1]
	}

	var attempts []types.Attempt
	for i, target := range effective {
		if err := ctx.Err(); err != nil {
			return nil, cancelled(err)
		}

		handle, err := d.factory.Create(target.Name, target.Config)
		if err != nil {
			// A backend that cannot be constructed is one failed attempt
			// against that target; the chain advances.
			d.log.Error().Str("backend", target.Name).Err(err).Msg("backend construction failed")
			d.health.RecordAttempt(false)
			attempts = append(attempts, types.Attempt{Backend: target.Name, Err: err})
			continue
		}

		if i > 0 {
			d.log.Info().Str("backend", target.Name).Int("position", i).Msg("falling back")
		}

		img, err := d.tryBackend(ctx, handle, req, policy, &attempts)
		if err == nil {
			d.log.Info().Str("backend", target.Name).Str("image_id", img.ID).Msg("generation succeeded")
			return img, nil
		}
		if isCancelled(err) {
			return nil, err
		}
	}

	d.log.Error().Int("attempts", len(attempts)).Msg("all backends failed")
	return nil, &types.GenerationFailed{Attempts: attempts}
}

// tryBackend runs the per-backend retry loop. Every terminated attempt is
// appended to attempts and counted exactly once; retries are scoped to this
// backend only.
func (d *Dispatcher) tryBackend(ctx context.Context, handle *factory.Handle, req types.GenerationRequest, policy Policy, attempts *[]types.Attempt) (*types.GeneratedImage, error) {
	name := handle.Backend.Name()

	for try := 0; ; try++ {
		img, err := d.attempt(ctx, handle.Backend, req, policy)
		d.health.RecordAttempt(err == nil)
		if err == nil {
			return img, nil
		}
		if isCancelled(err) {
			// A cancelled request terminates without further attempts and
			// without an aggregate failure.
			return nil, err
		}

		*attempts = append(*attempts, types.Attempt{Backend: name, Err: err})
		d.log.Warn().Str("backend", name).Int("try", try+1).Err(err).Msg("attempt failed")

		if !isRetryable(err) || try >= policy.MaxRetries {
			return nil, err
		}
		if err := d.wait(ctx, d.backoff.Delay(try)); err != nil {
			return nil, err
		}
	}
}

// attempt runs one generate call bounded by the per-attempt timeout and
// classifies the outcome. A timeout becomes a retryable ProviderError
// unless the backend already returned a typed non-retryable timeout; a
// caller cancellation is kept distinct from failure.
func (d *Dispatcher) attempt(ctx context.Context, b types.Backend, req types.GenerationRequest, policy Policy) (*types.GeneratedImage, error) {
	actx := ctx
	if policy.PerAttemptTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, policy.PerAttemptTimeout)
		defer cancel()
	}

	img, err := b.Generate(actx, req)
	if err == nil {
		if img == nil {
			return nil, types.NewInvalidResponseError(b.Name(), "backend returned no image")
		}
		return img, nil
	}

	// The parent context decides whether a context error is the caller
	// cancelling or our per-attempt deadline firing.
	if ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled) {
		return nil, cancelled(ctx.Err())
	}

	var perr *types.ProviderError
	if errors.As(err, &perr) {
		return nil, perr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, types.NewTimeoutError(b.Name(),
			fmt.Sprintf("attempt exceeded %s", policy.PerAttemptTimeout)).WithOriginalErr(err)
	}
	return nil, types.NewProviderError(b.Name(), types.ErrKindUnknown, err.Error()).WithOriginalErr(err)
}

// wait sleeps for the backoff delay, aborting early on cancellation.
func (d *Dispatcher) wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return cancelled(ctx.Err())
	case <-timer.C:
		return nil
	}
}

// HealthCheckAll probes every backend in the chain with a short timeout and
// reports per-backend liveness. Backends that cannot be constructed report
// unhealthy.
func (d *Dispatcher) HealthCheckAll(ctx context.Context, chain []Target) []types.BackendHealth {
	results := make([]types.BackendHealth, 0, len(chain))
	for _, target := range chain {
		handle, err := d.factory.Create(target.Name, target.Config)
		if err != nil {
			results = append(results, types.BackendHealth{Backend: target.Name, Healthy: false})
			continue
		}
		results = append(results, d.health.CheckBackend(ctx, handle.Backend))
	}
	return results
}

func isRetryable(err error) bool {
	var perr *types.ProviderError
	if errors.As(err, &perr) {
		return perr.Retryable
	}
	return false
}

func cancelled(cause error) error {
	return fmt.Errorf("generation cancelled: %w", cause)
}

func isCancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}

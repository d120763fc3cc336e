package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cecil-the-coder/imagegen-kit/pkg/factory"
	"github.com/cecil-the-coder/imagegen-kit/pkg/health"
	"github.com/cecil-the-coder/imagegen-kit/pkg/plugin"
	"github.com/cecil-the-coder/imagegen-kit/pkg/testutil"
	"github.com/cecil-the-coder/imagegen-kit/pkg/types"
)

// newDispatcher wires a real registry, factory, and checker around the given
// backends. Backends are registered as built-ins under their own names.
func newDispatcher(t *testing.T, backends ...types.Backend) (*Dispatcher, *health.Checker) {
	t.Helper()
	reg := plugin.NewRegistry(zerolog.Nop())
	for _, b := range backends {
		b := b
		err := reg.RegisterBuiltin(&plugin.Static{
			Meta: plugin.Metadata{Name: b.Name(), Version: "1.0.0", Category: plugin.CategoryBackend},
			Factory: func(cfg types.BackendConfig) (types.Backend, error) {
				return b, nil
			},
		})
		require.NoError(t, err)
	}
	f := factory.New(reg, zerolog.Nop())
	checker := health.NewChecker(WithQuietSampler())
	d := New(f, checker, zerolog.Nop(), WithBackoff(Backoff{Initial: time.Millisecond, Max: 2 * time.Millisecond, Multiplier: 2.0}))
	return d, checker
}

// WithQuietSampler keeps tests off the live gopsutil sampler.
func WithQuietSampler() health.Option {
	return health.WithSampler(testutil.StaticSampler{
		Usage: health.ResourceUsage{CPUPercent: 5, MemoryPercent: 5, DiskPercent: 5},
	})
}

func validRequest() types.GenerationRequest {
	return types.GenerationRequest{Prompt: "a fox"}.WithDefaults()
}

// TestDispatchPrimarySucceeds verifies the first target answers and no
// fallback happens.
func TestDispatchPrimarySucceeds(t *testing.T) {
	primary := &testutil.MockBackend{BackendName: "primary"}
	secondary := &testutil.MockBackend{BackendName: "secondary"}
	d, checker := newDispatcher(t, primary, secondary)

	img, err := d.Dispatch(context.Background(), validRequest(), Chain("primary", "secondary"), DefaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, "primary", img.Backend)
	assert.Equal(t, "a fox", img.Prompt)
	assert.Equal(t, 1, primary.Calls())
	assert.Zero(t, secondary.Calls())

	requests, errCount := checker.Counters()
	assert.Equal(t, int64(1), requests)
	assert.Zero(t, errCount)
}

// TestDispatchInvalidRequest verifies validation failures never reach a
// backend or the counters.
func TestDispatchInvalidRequest(t *testing.T) {
	primary := &testutil.MockBackend{BackendName: "primary"}
	d, checker := newDispatcher(t, primary)

	_, err := d.Dispatch(context.Background(), types.GenerationRequest{}, Chain("primary"), DefaultPolicy())
	require.Error(t, err)

	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, primary.Calls())

	requests, _ := checker.Counters()
	assert.Zero(t, requests)
}

// TestDispatchEmptyChain verifies an empty chain is a configuration error.
func TestDispatchEmptyChain(t *testing.T) {
	d, _ := newDispatcher(t)

	_, err := d.Dispatch(context.Background(), validRequest(), nil, DefaultPolicy())
	require.Error(t, err)

	var cerr *types.ConfigurationError
	require.ErrorAs(t, err, &cerr)
}

// TestDispatchFallsBackOnNonRetryable verifies an authentication failure
// advances to the next backend without retrying the first.
func TestDispatchFallsBackOnNonRetryable(t *testing.T) {
	primary := testutil.ScriptedBackend("primary",
		types.NewAuthenticationError("primary", "bad token"),
	)
	secondary := &testutil.MockBackend{BackendName: "secondary"}
	d, checker := newDispatcher(t, primary, secondary)

	policy := DefaultPolicy()
	policy.MaxRetries = 3

	img, err := d.Dispatch(context.Background(), validRequest(), Chain("primary", "secondary"), policy)
	require.NoError(t, err)
	assert.Equal(t, "secondary", img.Backend)
	assert.Equal(t, 1, primary.Calls(), "authentication errors must not be retried")

	requests, errCount := checker.Counters()
	assert.Equal(t, int64(2), requests)
	assert.Equal(t, int64(1), errCount)
}

// TestDispatchRetriesRetryableOnSameBackend verifies retryable failures are
// retried on the same backend before any fallback.
func TestDispatchRetriesRetryableOnSameBackend(t *testing.T) {
	primary := testutil.ScriptedBackend("primary",
		types.NewNetworkError("primary", "conn reset"),
		types.NewNetworkError("primary", "conn reset"),
	)
	secondary := &testutil.MockBackend{BackendName: "secondary"}
	d, checker := newDispatcher(t, primary, secondary)

	policy := DefaultPolicy()
	policy.MaxRetries = 2

	img, err := d.Dispatch(context.Background(), validRequest(), Chain("primary", "secondary"), policy)
	require.NoError(t, err)
	assert.Equal(t, "primary", img.Backend)
	assert.Equal(t, 3, primary.Calls())
	assert.Zero(t, secondary.Calls())

	requests, errCount := checker.Counters()
	assert.Equal(t, int64(3), requests)
	assert.Equal(t, int64(2), errCount)
}

// TestDispatchRetriesExhaustedThenFallsBack verifies the retry budget is
// per-backend and the chain advances after it runs out.
func TestDispatchRetriesExhaustedThenFallsBack(t *testing.T) {
	primary := testutil.ScriptedBackend("primary",
		types.NewNetworkError("primary", "down"),
		types.NewNetworkError("primary", "down"),
		types.NewNetworkError("primary", "down"),
	)
	secondary := &testutil.MockBackend{BackendName: "secondary"}
	d, _ := newDispatcher(t, primary, secondary)

	policy := DefaultPolicy()
	policy.MaxRetries = 1

	img, err := d.Dispatch(context.Background(), validRequest(), Chain("primary", "secondary"), policy)
	require.NoError(t, err)
	assert.Equal(t, "secondary", img.Backend)
	assert.Equal(t, 2, primary.Calls(), "initial attempt plus one retry")
}

// TestDispatchAllBackendsFail verifies the aggregate error keeps every
// attempt in order.
func TestDispatchAllBackendsFail(t *testing.T) {
	primary := testutil.ScriptedBackend("primary",
		types.NewAuthenticationError("primary", "bad token"),
	)
	secondary := testutil.ScriptedBackend("secondary",
		types.NewInvalidResponseError("secondary", "empty body"),
	)
	d, checker := newDispatcher(t, primary, secondary)

	_, err := d.Dispatch(context.Background(), validRequest(), Chain("primary", "secondary"), DefaultPolicy())
	require.Error(t, err)

	var gf *types.GenerationFailed
	require.ErrorAs(t, err, &gf)
	require.Len(t, gf.Attempts, 2)
	assert.Equal(t, "primary", gf.Attempts[0].Backend)
	assert.Equal(t, "secondary", gf.Attempts[1].Backend)

	requests, errCount := checker.Counters()
	assert.Equal(t, int64(2), requests)
	assert.Equal(t, int64(2), errCount)
}

// TestDispatchFallbackDisabled verifies only the primary is consulted when
// fallback is off.
func TestDispatchFallbackDisabled(t *testing.T) {
	primary := testutil.ScriptedBackend("primary",
		types.NewAuthenticationError("primary", "bad token"),
	)
	secondary := &testutil.MockBackend{BackendName: "secondary"}
	d, _ := newDispatcher(t, primary, secondary)

	policy := DefaultPolicy()
	policy.EnableFallback = false

	_, err := d.Dispatch(context.Background(), validRequest(), Chain("primary", "secondary"), policy)
	require.Error(t, err)

	var gf *types.GenerationFailed
	require.ErrorAs(t, err, &gf)
	require.Len(t, gf.Attempts, 1)
	assert.Zero(t, secondary.Calls())
}

// TestDispatchUnconstructibleBackendAdvances verifies a backend that cannot
// be built counts as one failed attempt and the chain moves on.
func TestDispatchUnconstructibleBackendAdvances(t *testing.T) {
	secondary := &testutil.MockBackend{BackendName: "secondary"}
	d, checker := newDispatcher(t, secondary)

	img, err := d.Dispatch(context.Background(), validRequest(), Chain("never_registered", "secondary"), DefaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, "secondary", img.Backend)

	requests, errCount := checker.Counters()
	assert.Equal(t, int64(2), requests)
	assert.Equal(t, int64(1), errCount)
}

// TestDispatchCancellation verifies a caller cancel terminates the dispatch
// without consulting further backends and without an aggregate error.
func TestDispatchCancellation(t *testing.T) {
	started := make(chan struct{})
	primary := &testutil.MockBackend{BackendName: "primary"}
	primary.GenerateFunc = func(ctx context.Context, req types.GenerationRequest) (*types.GeneratedImage, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	secondary := &testutil.MockBackend{BackendName: "secondary"}
	d, _ := newDispatcher(t, primary, secondary)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := d.Dispatch(ctx, validRequest(), Chain("primary", "secondary"), DefaultPolicy())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "generation cancelled")

	var gf *types.GenerationFailed
	assert.False(t, errors.As(err, &gf), "cancellation must not become an aggregate failure")
	assert.Zero(t, secondary.Calls())
}

// TestDispatchPreCancelledContextCountsNothing verifies a cancel that lands
// before any attempt starts leaves the health counters untouched and never
// consults a backend.
func TestDispatchPreCancelledContextCountsNothing(t *testing.T) {
	primary := &testutil.MockBackend{BackendName: "primary"}
	d, checker := newDispatcher(t, primary)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Dispatch(ctx, validRequest(), Chain("primary"), DefaultPolicy())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, primary.Calls())

	requests, errCount := checker.Counters()
	assert.Zero(t, requests)
	assert.Zero(t, errCount)
}

// TestDispatchCancelDuringBackoffCountsNothingFurther verifies a cancel that
// lands while the dispatcher waits between retries aborts the wait without
// recording an attempt that never started.
func TestDispatchCancelDuringBackoffCountsNothingFurther(t *testing.T) {
	primary := testutil.ScriptedBackend("primary",
		types.NewNetworkError("primary", "conn reset"),
	)
	reg := plugin.NewRegistry(zerolog.Nop())
	err := reg.RegisterBuiltin(&plugin.Static{
		Meta: plugin.Metadata{Name: "primary", Version: "1.0.0", Category: plugin.CategoryBackend},
		Factory: func(cfg types.BackendConfig) (types.Backend, error) {
			return primary, nil
		},
	})
	require.NoError(t, err)
	f := factory.New(reg, zerolog.Nop())
	checker := health.NewChecker(WithQuietSampler())
	d := New(f, checker, zerolog.Nop(), WithBackoff(Backoff{Initial: 250 * time.Millisecond, Max: 250 * time.Millisecond, Multiplier: 2.0}))

	policy := DefaultPolicy()
	policy.MaxRetries = 2

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err = d.Dispatch(ctx, validRequest(), Chain("primary"), policy)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, primary.Calls(), "the retry must never start")

	var gf *types.GenerationFailed
	assert.False(t, errors.As(err, &gf), "cancellation must not become an aggregate failure")

	requests, errCount := checker.Counters()
	assert.Equal(t, int64(1), requests, "only the attempt that actually ran counts")
	assert.Equal(t, int64(1), errCount)
}

// TestDispatchPerAttemptTimeout verifies a slow backend is cut off and the
// failure is classified as a retryable timeout.
func TestDispatchPerAttemptTimeout(t *testing.T) {
	slow := &testutil.MockBackend{BackendName: "slow"}
	slow.GenerateFunc = func(ctx context.Context, req types.GenerationRequest) (*types.GeneratedImage, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	d, _ := newDispatcher(t, slow)

	policy := Policy{EnableFallback: true, MaxRetries: 0, PerAttemptTimeout: 10 * time.Millisecond}

	_, err := d.Dispatch(context.Background(), validRequest(), Chain("slow"), policy)
	require.Error(t, err)

	var gf *types.GenerationFailed
	require.ErrorAs(t, err, &gf)
	require.Len(t, gf.Attempts, 1)

	var perr *types.ProviderError
	require.ErrorAs(t, gf.Attempts[0].Err, &perr)
	assert.Equal(t, types.ErrKindTimeout, perr.Kind)
	assert.True(t, perr.Retryable)
}

// TestDispatchNilImageIsInvalidResponse verifies a backend returning no
// image and no error is treated as an invalid response.
func TestDispatchNilImageIsInvalidResponse(t *testing.T) {
	broken := &testutil.MockBackend{BackendName: "broken"}
	broken.GenerateFunc = func(ctx context.Context, req types.GenerationRequest) (*types.GeneratedImage, error) {
		return nil, nil
	}
	d, _ := newDispatcher(t, broken)

	_, err := d.Dispatch(context.Background(), validRequest(), Chain("broken"), DefaultPolicy())
	require.Error(t, err)

	var perr *types.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, types.ErrKindInvalidResponse, perr.Kind)
}

// TestHealthCheckAll verifies per-backend probes, including a backend that
// cannot be constructed.
func TestHealthCheckAll(t *testing.T) {
	up := &testutil.MockBackend{BackendName: "up"}
	down := &testutil.MockBackend{BackendName: "down", Unhealthy: true}
	d, _ := newDispatcher(t, up, down)

	results := d.HealthCheckAll(context.Background(), Chain("up", "down", "missing"))
	require.Len(t, results, 3)
	assert.True(t, results[0].Healthy)
	assert.False(t, results[1].Healthy)
	assert.False(t, results[2].Healthy)
	assert.Equal(t, "missing", results[2].Backend)
}

package testutil

import (
	"context"
	"sync"

	"github.com/cecil-the-coder/imagegen-kit/pkg/health"
	"github.com/cecil-the-coder/imagegen-kit/pkg/types"
)

// MockBackend is a scriptable types.Backend for tests. The zero value is a
// backend named "mock" that succeeds on every call.
type MockBackend struct {
	BackendName string
	Models      []string

	// GenerateFunc overrides the default always-succeed behavior.
	GenerateFunc func(ctx context.Context, req types.GenerationRequest) (*types.GeneratedImage, error)

	// Unhealthy makes HealthCheck report false.
	Unhealthy bool

	mu    sync.Mutex
	calls int
}

func (m *MockBackend) Name() string {
	if m.BackendName == "" {
		return "mock"
	}
	return m.BackendName
}

func (m *MockBackend) SupportedModels() []string { return m.Models }

func (m *MockBackend) Generate(ctx context.Context, req types.GenerationRequest) (*types.GeneratedImage, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return types.NewGeneratedImage(m.Name(), req, []byte("image-bytes"), nil), nil
}

func (m *MockBackend) HealthCheck(ctx context.Context) bool { return !m.Unhealthy }

// Calls reports how many times Generate was invoked.
func (m *MockBackend) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// ScriptedBackend returns a MockBackend that fails with each error in errs
// in order, then succeeds on every call after the script runs out.
func ScriptedBackend(name string, errs ...error) *MockBackend {
	var mu sync.Mutex
	i := 0
	m := &MockBackend{BackendName: name}
	m.GenerateFunc = func(_ context.Context, req types.GenerationRequest) (*types.GeneratedImage, error) {
		mu.Lock()
		defer mu.Unlock()
		if i < len(errs) {
			err := errs[i]
			i++
			return nil, err
		}
		return types.NewGeneratedImage(name, req, []byte("image-bytes"), nil), nil
	}
	return m
}

// StaticSampler is a health.ResourceSampler returning fixed values.
type StaticSampler struct {
	Usage health.ResourceUsage
	Err   error
}

func (s StaticSampler) Sample() (health.ResourceUsage, error) {
	return s.Usage, s.Err
}

package plugin

import "github.com/cecil-the-coder/imagegen-kit/pkg/types"

// Static is a Plugin assembled from values, used for the built-in backends
// and for tests. Lifecycle hooks are optional.
type Static struct {
	Meta      Metadata
	Factory   types.BackendFactoryFunc
	OnInit    func() error
	OnCleanup func()
}

// Metadata implements Plugin.
func (s *Static) Metadata() Metadata { return s.Meta }

// Initialize implements Plugin.
func (s *Static) Initialize() error {
	if s.OnInit != nil {
		return s.OnInit()
	}
	return nil
}

// Cleanup implements Plugin.
func (s *Static) Cleanup() {
	if s.OnCleanup != nil {
		s.OnCleanup()
	}
}

// Backend implements Plugin.
func (s *Static) Backend() types.BackendFactoryFunc { return s.Factory }

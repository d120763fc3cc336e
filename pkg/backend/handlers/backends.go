package handlers

import (
	"net/http"
	"strings"

	"github.com/cecil-the-coder/imagegen-kit/pkg/backendtypes"
	"github.com/cecil-the-coder/imagegen-kit/pkg/dispatch"
	"github.com/cecil-the-coder/imagegen-kit/pkg/factory"
	"github.com/cecil-the-coder/imagegen-kit/pkg/plugin"
	"github.com/cecil-the-coder/imagegen-kit/pkg/types"
)

// BackendHandler serves backend discovery and per-backend health probes.
type BackendHandler struct {
	registry   *plugin.Registry
	factory    *factory.Factory
	dispatcher *dispatch.Dispatcher
	chain      []dispatch.Target
}

func NewBackendHandler(registry *plugin.Registry, f *factory.Factory, dispatcher *dispatch.Dispatcher, chain []dispatch.Target) *BackendHandler {
	return &BackendHandler{
		registry:   registry,
		factory:    f,
		dispatcher: dispatcher,
		chain:      chain,
	}
}

// ListBackends handles GET /api/backends. Every resolvable backend is
// listed; health is only probed for backends in the configured chain.
func (h *BackendHandler) ListBackends(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		SendError(w, r, "METHOD_NOT_ALLOWED", "Only GET is allowed", http.StatusMethodNotAllowed)
		return
	}

	healthy := make(map[string]bool, len(h.chain))
	for _, res := range h.dispatcher.HealthCheckAll(r.Context(), h.chain) {
		healthy[res.Backend] = res.Healthy
	}

	names := h.registry.Available()
	infos := make([]backendtypes.BackendInfo, 0, len(names))
	for _, name := range names {
		rec, ok := h.registry.Record(name)
		if !ok {
			continue
		}
		infos = append(infos, backendtypes.BackendInfo{
			Name:        rec.Meta.Name,
			Version:     rec.Meta.Version,
			Builtin:     rec.Builtin,
			Healthy:     healthy[name],
			Models:      h.supportedModels(name),
			Description: rec.Meta.Description,
		})
	}

	SendSuccess(w, r, infos)
}

// supportedModels asks a constructed backend for its model list, using the
// chain's construction arguments when the backend is in the chain. Backends
// that cannot be constructed (typically a missing credential) report none.
func (h *BackendHandler) supportedModels(name string) []string {
	cfg := types.BackendConfig{}
	for _, t := range h.chain {
		if t.Name == name {
			cfg = t.Config
			break
		}
	}
	handle, err := h.factory.Create(name, cfg)
	if err != nil {
		return nil
	}
	return handle.Backend.SupportedModels()
}

// GetBackend handles GET /api/backends/{name}.
func (h *BackendHandler) GetBackend(w http.ResponseWriter, r *http.Request) {
	name := backendName(r.URL.Path)
	rec, ok := h.registry.Record(name)
	if !ok {
		SendError(w, r, "NOT_FOUND", "Unknown backend: "+name, http.StatusNotFound)
		return
	}
	SendSuccess(w, r, map[string]interface{}{
		"name":                rec.Meta.Name,
		"display_name":        rec.Meta.DisplayName,
		"version":             rec.Meta.Version,
		"author":              rec.Meta.Author,
		"description":         rec.Meta.Description,
		"builtin":             rec.Builtin,
		"state":               string(rec.State),
		"requires_credential": rec.Meta.RequiresCredential,
	})
}

// HealthCheckBackend handles GET /api/backends/{name}/health, probing a
// single backend with the chain's construction arguments when it has any.
func (h *BackendHandler) HealthCheckBackend(w http.ResponseWriter, r *http.Request) {
	name := backendName(strings.TrimSuffix(r.URL.Path, "/health"))

	target := dispatch.Target{Name: name}
	for _, t := range h.chain {
		if t.Name == name {
			target = t
			break
		}
	}

	results := h.dispatcher.HealthCheckAll(r.Context(), []dispatch.Target{target})
	if len(results) != 1 {
		SendError(w, r, "NOT_FOUND", "Unknown backend: "+name, http.StatusNotFound)
		return
	}

	status := "unavailable"
	if results[0].Healthy {
		status = "ok"
	}
	SendSuccess(w, r, backendtypes.BackendHealth{Status: status})
}

// backendName extracts the backend segment from an /api/backends/... path.
func backendName(path string) string {
	name := strings.TrimPrefix(path, "/api/backends/")
	return strings.Trim(name, "/")
}

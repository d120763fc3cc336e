package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/cecil-the-coder/imagegen-kit/pkg/backend/middleware"
	"github.com/cecil-the-coder/imagegen-kit/pkg/backendtypes"
	"github.com/cecil-the-coder/imagegen-kit/pkg/dispatch"
	"github.com/cecil-the-coder/imagegen-kit/pkg/health"
)

type HealthHandler struct {
	checker    *health.Checker
	dispatcher *dispatch.Dispatcher
	chain      []dispatch.Target
	version    string
}

func NewHealthHandler(checker *health.Checker, dispatcher *dispatch.Dispatcher, chain []dispatch.Target, version string) *HealthHandler {
	return &HealthHandler{
		checker:    checker,
		dispatcher: dispatcher,
		chain:      chain,
		version:    version,
	}
}

// Status returns simple liveness status
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	SendSuccess(w, r, map[string]string{"status": "ok"})
}

// Health returns the aggregated service health plus per-backend liveness.
// An unhealthy service answers 503 so load balancers take it out of
// rotation; healthy and degraded both answer 200.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	snapshot := h.checker.Snapshot()

	backends := make(map[string]backendtypes.BackendHealth, len(h.chain))
	for _, target := range h.chain {
		start := time.Now()
		results := h.dispatcher.HealthCheckAll(r.Context(), []dispatch.Target{target})
		latency := time.Since(start).Milliseconds()

		status := "unavailable"
		if len(results) == 1 && results[0].Healthy {
			status = "ok"
		}
		backends[target.Name] = backendtypes.BackendHealth{
			Status:  status,
			Latency: latency,
		}
	}

	response := backendtypes.HealthResponse{
		Status:    string(snapshot.Status),
		Version:   h.version,
		Message:   snapshot.Message,
		Details:   snapshot.Details,
		Backends:  backends,
		Timestamp: snapshot.Timestamp,
	}

	w.Header().Set("Content-Type", "application/json")
	if snapshot.Status == health.StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(backendtypes.APIResponse{
		Success:   snapshot.Status != health.StatusUnhealthy,
		Data:      response,
		RequestID: middleware.GetRequestID(r.Context()),
		Timestamp: time.Now(),
	})
}

// Version returns version information
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	SendSuccess(w, r, map[string]string{
		"version": h.version,
	})
}

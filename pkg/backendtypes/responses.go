package backendtypes

import "time"

// APIResponse is the standard response wrapper
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// GenerateResponse for image generation
type GenerateResponse struct {
	ID        string                 `json:"id"`
	Image     string                 `json:"image"` // base64-encoded PNG/JPEG bytes
	Backend   string                 `json:"backend"`
	Prompt    string                 `json:"prompt"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// AttemptInfo reports one failed backend attempt in a generation error.
type AttemptInfo struct {
	Backend string `json:"backend"`
	Error   string `json:"error"`
}

// BackendInfo for backend listing
type BackendInfo struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Builtin     bool     `json:"builtin"`
	Healthy     bool     `json:"healthy"`
	Models      []string `json:"models,omitempty"`
	Description string   `json:"description,omitempty"`
}

// HealthResponse for health endpoints
type HealthResponse struct {
	Status    string                   `json:"status"`
	Version   string                   `json:"version"`
	Message   string                   `json:"message,omitempty"`
	Details   interface{}              `json:"details"`
	Backends  map[string]BackendHealth `json:"backends,omitempty"`
	Timestamp time.Time                `json:"timestamp"`
}

type BackendHealth struct {
	Status  string `json:"status"`
	Latency int64  `json:"latency_ms"`
	Message string `json:"message,omitempty"`
}

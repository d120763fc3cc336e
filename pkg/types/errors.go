package types

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError reports a malformed GenerationRequest. It is surfaced to
// the caller immediately and never reaches a backend.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ConfigurationError reports a missing credential, an unresolved plugin
// dependency, or malformed plugin metadata. It is raised at construction or
// discovery time, never during an in-flight dispatch except when a backend
// is first constructed lazily.
type ConfigurationError struct {
	Subject string // backend or plugin name
	Message string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("configuration error for %q: %s", e.Subject, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// NewConfigurationError creates a ConfigurationError.
func NewConfigurationError(subject, message string) *ConfigurationError {
	return &ConfigurationError{Subject: subject, Message: message}
}

// Attempt records one dispatcher attempt against one backend.
type Attempt struct {
	Backend string
	Err     error
}

// GenerationFailed aggregates every failed attempt after the provider chain
// is exhausted. Attempts are kept in attempt order; earlier failures are
// never dropped.
type GenerationFailed struct {
	Attempts []Attempt
}

// Error implements the error interface.
func (e *GenerationFailed) Error() string {
	if len(e.Attempts) == 0 {
		return "generation failed: no backends attempted"
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Backend, a.Err))
	}
	return fmt.Sprintf("generation failed after %d attempt(s): %s", len(e.Attempts), strings.Join(parts, "; "))
}

// Unwrap exposes the last attempt's error for errors.Is/As.
func (e *GenerationFailed) Unwrap() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

// RateLimited reports an admission-control rejection. It carries how long
// the client should wait before retrying.
type RateLimited struct {
	ClientKey  string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimited) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry after %s", e.ClientKey, e.RetryAfter)
}

package types

import (
	"fmt"
	"net/http"
)

// ErrorKind categorizes provider errors.
type ErrorKind string

const (
	ErrKindUnknown         ErrorKind = "unknown"
	ErrKindNetwork         ErrorKind = "network"
	ErrKindTimeout         ErrorKind = "timeout"
	ErrKindQuotaExceeded   ErrorKind = "quota_exceeded"
	ErrKindInvalidResponse ErrorKind = "invalid_response"
	ErrKindAuthentication  ErrorKind = "authentication"
)

// ProviderError is the standardized error raised by a backend generate or
// health call. The Retryable flag drives the dispatcher's retry/fallback
// policy.
type ProviderError struct {
	Kind        ErrorKind // Categorized error kind
	Message     string    // Human-readable message
	Backend     string    // Which backend generated this error
	StatusCode  int       // HTTP status code (0 if not applicable)
	Retryable   bool      // Whether retrying the same backend may succeed
	OriginalErr error     // Wrapped original error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("[%s] %s (status=%d, kind=%s)", e.Backend, e.Message, e.StatusCode, e.Kind)
	}
	return fmt.Sprintf("[%s] %s (kind=%s)", e.Backend, e.Message, e.Kind)
}

// Unwrap returns the original error for errors.Is/As.
func (e *ProviderError) Unwrap() error {
	return e.OriginalErr
}

// WithStatusCode sets the status code and returns the error for chaining.
func (e *ProviderError) WithStatusCode(statusCode int) *ProviderError {
	e.StatusCode = statusCode
	return e
}

// WithOriginalErr sets the wrapped error and returns the error for chaining.
func (e *ProviderError) WithOriginalErr(err error) *ProviderError {
	e.OriginalErr = err
	return e
}

// NewProviderError creates a ProviderError with the default retryability for
// its kind: network, timeout, and quota errors are retryable; authentication
// and invalid-response errors are not.
func NewProviderError(backend string, kind ErrorKind, message string) *ProviderError {
	return &ProviderError{
		Kind:      kind,
		Message:   message,
		Backend:   backend,
		Retryable: kindRetryable(kind),
	}
}

// NewNetworkError creates a retryable network error.
func NewNetworkError(backend, message string) *ProviderError {
	return NewProviderError(backend, ErrKindNetwork, message)
}

// NewTimeoutError creates a retryable timeout error.
func NewTimeoutError(backend, message string) *ProviderError {
	return NewProviderError(backend, ErrKindTimeout, message)
}

// NewQuotaError creates a retryable quota-exceeded error.
func NewQuotaError(backend, message string) *ProviderError {
	return NewProviderError(backend, ErrKindQuotaExceeded, message)
}

// NewInvalidResponseError creates a non-retryable invalid-response error.
func NewInvalidResponseError(backend, message string) *ProviderError {
	return NewProviderError(backend, ErrKindInvalidResponse, message)
}

// NewAuthenticationError creates a non-retryable authentication error.
// Authentication failures never trigger a retry of the same backend.
func NewAuthenticationError(backend, message string) *ProviderError {
	return NewProviderError(backend, ErrKindAuthentication, message)
}

func kindRetryable(kind ErrorKind) bool {
	switch kind {
	case ErrKindNetwork, ErrKindTimeout, ErrKindQuotaExceeded:
		return true
	}
	return false
}

// ClassifyHTTPError determines the error kind from an HTTP status.
func ClassifyHTTPError(statusCode int) ErrorKind {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrKindAuthentication
	case http.StatusTooManyRequests:
		return ErrKindQuotaExceeded
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return ErrKindTimeout
	default:
		if statusCode >= 500 {
			return ErrKindNetwork
		}
		return ErrKindInvalidResponse
	}
}

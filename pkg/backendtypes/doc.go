// Package backendtypes defines types for backend server configuration and API communication.
//
// This package provides shared type definitions used by the backend package and applications
// built on imagegen-kit. It separates type definitions from implementation to allow
// clean imports without circular dependencies.
//
// # Configuration Types
//
// BackendConfig and related types define how the backend server is configured:
//
//   - ServerConfig: HTTP server settings (host, port, timeouts)
//   - AuthConfig: Authentication configuration
//   - LoggingConfig: Logging settings
//   - CORSConfig: Cross-origin resource sharing settings
//   - RateLimitConfig: Per-client request rate limiting
//
// # Request Types
//
// Request types define the structure of incoming API requests:
//
//   - GenerateRequest: Image generation requests
//
// # Response Types
//
// Response types define the structure of API responses:
//
//   - GenerateResponse: Image generation responses
//   - APIResponse: Standard response wrapper with error details
//   - HealthResponse: Health check responses
//
// # Usage
//
// Import this package to use backend types without importing the full backend implementation:
//
//	import "github.com/cecil-the-coder/imagegen-kit/pkg/backendtypes"
//
//	config := backendtypes.BackendConfig{
//	    Server: backendtypes.ServerConfig{Port: 8080},
//	}
package backendtypes

// Package handlers provides HTTP request handlers for the imagegen-kit backend.
// It includes handlers for health checks, backend listing, and image generation,
// along with utilities for standardized JSON response formatting.
package handlers

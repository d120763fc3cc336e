// Package middleware provides HTTP middleware components for the backend server.
// It includes middleware for authentication, CORS, request logging, request ID tracking,
// per-client rate limiting, and panic recovery to ensure robust and secure API operation.
package middleware

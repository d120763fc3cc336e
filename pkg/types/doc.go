// Package types defines the core types and interfaces for the imagegen kit.
// It includes the generation request/response model, the backend capability
// contract every provider implements, and the error taxonomy shared by the
// dispatcher, factory, and plugin registry.
package types

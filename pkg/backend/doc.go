// Package backend provides HTTP server infrastructure for image generation services.
//
// This package serves as the foundation for applications built on top of imagegen-kit,
// providing reusable components for HTTP routing, middleware, and request handling.
//
// # Architecture
//
// The backend package is organized into several sub-packages:
//
//   - handlers: Core API handlers (health checks, backend info, image generation)
//   - middleware: Reusable HTTP middleware (authentication, logging, rate limiting, etc.)
//
// # Usage
//
// Applications using this package typically:
//
//  1. Create a BackendConfig with server settings
//  2. Register backends with a plugin registry and build a dispatcher
//  3. Start the HTTP server
//
// # Example
//
//	config := backendtypes.BackendConfig{
//	    Server: backendtypes.ServerConfig{
//	        Host: "0.0.0.0",
//	        Port: 8080,
//	    },
//	}
//	server := backend.NewServer(config, components, logger)
//	server.Start()
package backend

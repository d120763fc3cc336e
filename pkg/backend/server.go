package backend

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cecil-the-coder/imagegen-kit/pkg/backend/handlers"
	"github.com/cecil-the-coder/imagegen-kit/pkg/backend/middleware"
	"github.com/cecil-the-coder/imagegen-kit/pkg/backendtypes"
	"github.com/cecil-the-coder/imagegen-kit/pkg/dispatch"
	"github.com/cecil-the-coder/imagegen-kit/pkg/factory"
	"github.com/cecil-the-coder/imagegen-kit/pkg/health"
	"github.com/cecil-the-coder/imagegen-kit/pkg/plugin"
	"github.com/cecil-the-coder/imagegen-kit/pkg/ratelimit"
)

// Components are the assembled kit pieces the server exposes over HTTP.
// The chain fixes the fallback order for generation requests.
type Components struct {
	Registry   *plugin.Registry
	Factory    *factory.Factory
	Dispatcher *dispatch.Dispatcher
	Checker    *health.Checker
	Limiter    *ratelimit.Limiter
	Chain      []dispatch.Target
	Policy     dispatch.Policy
}

// Server represents the backend HTTP server that ties all components together
type Server struct {
	config     backendtypes.BackendConfig
	components Components
	httpServer *http.Server
	mux        *http.ServeMux
	log        zerolog.Logger
}

// NewServer creates a new backend server with the given configuration and components
func NewServer(config backendtypes.BackendConfig, components Components, log zerolog.Logger) *Server {
	s := &Server{
		config:     config,
		components: components,
		mux:        http.NewServeMux(),
		log:        log.With().Str("component", "server").Logger(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes registers all HTTP routes with their corresponding handlers
func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(
		s.components.Checker, s.components.Dispatcher, s.components.Chain, s.config.Server.Version)
	backendHandler := handlers.NewBackendHandler(
		s.components.Registry, s.components.Factory, s.components.Dispatcher, s.components.Chain)
	generateHandler := handlers.NewGenerateHandler(
		s.components.Dispatcher, s.components.Chain, s.components.Policy)

	// Health and status endpoints
	s.mux.HandleFunc("/health", healthHandler.Health)
	s.mux.HandleFunc("/status", healthHandler.Status)
	s.mux.HandleFunc("/version", healthHandler.Version)

	// Backend discovery endpoints
	s.mux.HandleFunc("/api/backends", backendHandler.ListBackends)
	s.mux.HandleFunc("/api/backends/", s.routeBackendRequests(backendHandler))

	// Generation endpoint
	s.mux.HandleFunc("/api/generate", generateHandler.Generate)
}

// routeBackendRequests routes backend-specific requests to the appropriate handler method
func (s *Server) routeBackendRequests(h *handlers.BackendHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			handlers.SendError(w, r, "METHOD_NOT_ALLOWED",
				"Only GET is allowed", http.StatusMethodNotAllowed)
			return
		}
		if strings.HasSuffix(r.URL.Path, "/health") {
			h.HealthCheckBackend(w, r)
			return
		}
		h.GetBackend(w, r)
	}
}

// Start starts the HTTP server and begins listening for requests
func (s *Server) Start() error {
	handler := s.applyMiddleware(s.mux)

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}

	chainNames := make([]string, len(s.components.Chain))
	for i, t := range s.components.Chain {
		chainNames[i] = t.Name
	}
	s.log.Info().
		Str("addr", addr).
		Str("version", s.config.Server.Version).
		Strs("chain", chainNames).
		Msg("starting server")

	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server and all its components
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down server")

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown HTTP server: %w", err)
		}
	}

	// Plugins are cleaned up last so in-flight requests keep their backends.
	if s.components.Registry != nil {
		s.components.Registry.Shutdown()
	}

	s.log.Info().Msg("server shutdown complete")
	return nil
}

// applyMiddleware builds the middleware chain and applies it to the handler
// Middleware is applied in reverse order (last applied runs first)
func (s *Server) applyMiddleware(h http.Handler) http.Handler {
	// Execution order: Recovery -> RequestID -> Logging -> CORS -> RateLimit -> Auth -> Handler

	if s.config.Auth.Enabled {
		h = middleware.Auth(middleware.AuthConfig{
			Enabled:     true,
			APIPassword: s.config.Auth.APIPassword,
			APIKeyEnv:   s.config.Auth.APIKeyEnv,
			PublicPaths: s.config.Auth.PublicPaths,
		})(h)
	}

	if s.config.RateLimit.Enabled && s.components.Limiter != nil {
		h = middleware.RateLimit(s.components.Limiter, s.config.RateLimit.ByHeader)(h)
	}

	if s.config.CORS.Enabled {
		h = middleware.CORS(middleware.CORSConfig{
			AllowedOrigins: s.config.CORS.AllowedOrigins,
			AllowedMethods: s.config.CORS.AllowedMethods,
			AllowedHeaders: s.config.CORS.AllowedHeaders,
		})(h)
	}

	h = middleware.Logging(s.log)(h)
	h = middleware.RequestID(h)
	h = middleware.Recovery(s.log)(h)

	return h
}

// GetConfig returns the server configuration
func (s *Server) GetConfig() backendtypes.BackendConfig {
	return s.config
}

// Handler returns the fully wired HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.applyMiddleware(s.mux)
}

// ListenAndServeWithGracefulShutdown starts the server and handles graceful shutdown
// This is a convenience method that starts the server and waits for shutdown signal
func (s *Server) ListenAndServeWithGracefulShutdown(shutdownSignal <-chan struct{}) error {
	errChan := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-shutdownSignal:
		timeout := s.config.Server.ShutdownTimeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		return s.Shutdown(ctx)
	}
}

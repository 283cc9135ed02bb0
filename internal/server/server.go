// Package server wires the database manager to the MCP tool surface: five
// tools registered against the official SDK, served over stdio or
// streamable HTTP with bearer auth and Prometheus middleware.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sqltools-project/sqltools-mcp/internal/database"
	"github.com/sqltools-project/sqltools-mcp/internal/server/metrics"
)

type Server struct {
	log     *slog.Logger
	cfg     Config
	manager *database.Manager
	mcp     *mcp.Server
	http    *http.Server
}

func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "SQLTools MCP Server",
		Version: cfg.Version,
	}, nil)

	s := &Server{
		log:     cfg.Logger,
		cfg:     cfg,
		manager: cfg.Manager,
		mcp:     mcpServer,
	}

	if err := s.registerConnectTool(); err != nil {
		return nil, fmt.Errorf("failed to register connect_database tool: %w", err)
	}
	if err := s.registerExecuteTool(); err != nil {
		return nil, fmt.Errorf("failed to register execute_sql tool: %w", err)
	}
	if err := s.registerListTablesTool(); err != nil {
		return nil, fmt.Errorf("failed to register list_tables tool: %w", err)
	}
	if err := s.registerDescribeTableTool(); err != nil {
		return nil, fmt.Errorf("failed to register describe_table tool: %w", err)
	}
	if err := s.registerStatusTool(); err != nil {
		return nil, fmt.Errorf("failed to register get_connection_status tool: %w", err)
	}

	mux := http.NewServeMux()
	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.mcp
	}, &mcp.StreamableHTTPOptions{
		Stateless: true, // Auto-initialize sessions, no manual initialize required
	})

	// Apply metrics middleware first, then authentication if needed
	metricsHandler := s.metricsMiddleware(handler)
	if len(cfg.AllowedTokens) > 0 {
		mux.Handle("/", s.authMiddleware(metricsHandler))
	} else {
		mux.Handle("/", metricsHandler)
	}

	mux.Handle("/healthz", s.metricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok\n")); err != nil {
			s.log.Error("failed to write healthz response", "error", err)
		}
	})))
	mux.Handle("/readyz", s.metricsMiddleware(http.HandlerFunc(s.readyzHandler)))

	s.http = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	return s, nil
}

// RunStdio serves the MCP session on stdin/stdout until the client
// disconnects or the context is canceled. Logs must go to stderr in this
// mode; stdout belongs to the transport.
func (s *Server) RunStdio(ctx context.Context) error {
	s.log.Info("server: mcp stdio transport running")
	defer func() {
		if err := s.manager.Disconnect(context.Background()); err != nil {
			s.log.Warn("server: failed to disconnect on shutdown", "error", err)
		}
	}()
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("failed to run stdio transport: %w", err)
	}
	return nil
}

// RunHTTP serves the streamable HTTP transport plus health endpoints until
// the context is canceled.
func (s *Server) RunHTTP(ctx context.Context) error {
	serveErrCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("server: http server error", "error", err)
			serveErrCh <- fmt.Errorf("failed to listen and serve: %w", err)
		}
	}()

	s.log.Info("server: mcp streamable http listening",
		"listenAddr", s.cfg.ListenAddr,
	)

	select {
	case <-ctx.Done():
		s.log.Info("server: shutting down", "reason", ctx.Err())
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer shutdownCancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
		if err := s.manager.Disconnect(context.Background()); err != nil {
			s.log.Warn("server: failed to disconnect on shutdown", "error", err)
		}
		return nil
	case err := <-serveErrCh:
		return err
	}
}

func (s *Server) readyzHandler(w http.ResponseWriter, r *http.Request) {
	// The server is ready as soon as the tools are registered; a database
	// connection is not required to serve connect_database.
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok\n")); err != nil {
		s.log.Error("failed to write readyz response", "error", err)
	}
}

// authMiddleware wraps an HTTP handler with Bearer token authentication
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			metrics.AuthFailuresTotal.WithLabelValues("missing_header").Inc()
			s.unauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			metrics.AuthFailuresTotal.WithLabelValues("invalid_format").Inc()
			s.unauthorized(w, "invalid authorization header format")
			return
		}

		token := strings.TrimSpace(parts[1])
		if token == "" {
			metrics.AuthFailuresTotal.WithLabelValues("empty_token").Inc()
			s.unauthorized(w, "empty token")
			return
		}

		allowed := false
		for _, allowedToken := range s.cfg.AllowedTokens {
			if token == allowedToken {
				allowed = true
				break
			}
		}
		if !allowed {
			metrics.AuthFailuresTotal.WithLabelValues("invalid_token").Inc()
			s.unauthorized(w, "invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) unauthorized(w http.ResponseWriter, reason string) {
	w.Header().Set("WWW-Authenticate", `Bearer`)
	w.WriteHeader(http.StatusUnauthorized)
	if _, err := w.Write([]byte("unauthorized: " + reason + "\n")); err != nil {
		s.log.Error("failed to write auth error response", "error", err)
	}
}

// metricsMiddleware wraps an HTTP handler with metrics collection
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		metrics.HTTPRequestsTotal.WithLabelValues(
			r.Method, r.URL.Path, fmt.Sprintf("%d", wrapped.statusCode),
		).Inc()
		metrics.HTTPRequestDuration.Observe(time.Since(startTime).Seconds())
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

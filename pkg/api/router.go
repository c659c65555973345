package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Kikk79/docstore/internal/logger"
	"github.com/Kikk79/docstore/pkg/api/handlers"
	"github.com/Kikk79/docstore/pkg/metrics"
	"github.com/Kikk79/docstore/pkg/service"
)

// NewRouter creates and configures the chi router with all middleware and routes.
//
// The router is configured with:
//   - Request ID middleware for request tracking
//   - Real IP extraction for proper client identification
//   - Custom request logging using the internal logger
//   - Panic recovery to prevent server crashes
//   - Request timeout to prevent hung requests
//
// Routes:
//   - GET /health - Liveness probe
//   - GET /health/ready - Readiness probe
//   - GET /documents - Load a document through the cache
//   - GET /documents/preview - Stream a bounded prefix without caching
//   - POST /documents/warm - Pre-load documents
//   - DELETE /documents - Invalidate cached documents
//   - GET/POST/DELETE /operations - Asynchronous load management
//   - GET /enumerate, /enumerate/count - Virtualized directory listing
//   - GET /stats/cache, /stats/enumeration, /stats/frequency
//   - GET /metrics - Prometheus metrics (when enabled)
func NewRouter(svc *service.Service) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	healthHandler := handlers.NewHealthHandler(svc)
	documentsHandler := handlers.NewDocumentsHandler(svc)
	operationsHandler := handlers.NewOperationsHandler(svc)
	enumerateHandler := handlers.NewEnumerateHandler(svc)
	statsHandler := handlers.NewStatsHandler(svc)

	// Health routes - unauthenticated
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	r.Route("/documents", func(r chi.Router) {
		r.Get("/", documentsHandler.Get)
		r.Get("/preview", documentsHandler.Preview)
		r.Post("/warm", documentsHandler.Warm)
		r.Delete("/", documentsHandler.Invalidate)
	})

	r.Route("/operations", func(r chi.Router) {
		r.Get("/", operationsHandler.List)
		r.Post("/", operationsHandler.Submit)
		r.Delete("/", operationsHandler.CancelAll)
		r.Delete("/{id}", operationsHandler.Cancel)
	})

	r.Route("/enumerate", func(r chi.Router) {
		r.Get("/", enumerateHandler.Range)
		r.Get("/count", enumerateHandler.Count)
	})

	r.Route("/stats", func(r chi.Router) {
		r.Get("/cache", statsHandler.Cache)
		r.Get("/enumeration", statsHandler.Enumeration)
		r.Get("/frequency", statsHandler.Frequency)
	})

	if metrics.IsEnabled() {
		r.Get("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}).ServeHTTP)
	}

	// Root redirect to health for convenience
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	return r
}

// requestLogger is a custom middleware that logs requests using the internal logger.
//
// It logs:
//   - Request start (DEBUG level): method, path, remote addr
//   - Request completion (INFO level): method, path, status, duration
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		// Wrap response writer to capture status code
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)

		logger.Info("API request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", duration.String(),
		)
	})
}

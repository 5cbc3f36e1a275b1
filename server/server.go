// Package server exposes the HTTP API: bot status, chat ingestion and windowed
// reads, user registration with NFT ownership correlation, health and metrics.
// It injects correlation IDs into request contexts for consistent logging.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/jackbot/telemetry"
)

// NewMux returns the HTTP handler with all routes.
// The provided context is used for rate limiter cleanup goroutines lifecycle.
func NewMux(ctx context.Context, deps Deps) http.Handler {
	authCfg := newAuthConfig(deps.Config)
	corsCfg := newCORSConfig(deps.Config)
	rateLimiter := newIPRateLimiter(ctx, newRateLimiterConfig(deps.Config))

	handlers := NewHandlers(deps)

	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/healthz", handlers.HandleHealthz)
	mux.HandleFunc("/readyz", handlers.HandleReadyz)

	mux.HandleFunc("/", handlers.HandleRoot)
	mux.HandleFunc("/twitch/status", handlers.HandleTwitchStatus)
	mux.HandleFunc("/twitch/message", handlers.HandleTwitchMessage)
	mux.HandleFunc("/twitch/get_messages", handlers.HandleGetMessages)

	mux.HandleFunc("/user/auth", handlers.HandleUserAuth)
	mux.HandleFunc("/users/", handlers.HandleUserGet)

	protected := adminAuth(mux, authCfg)
	limited := rateLimitMiddleware(mux, rateLimiter)
	selectiveHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/twitch/status" && r.Method != http.MethodGet && r.Method != http.MethodHead:
			protected.ServeHTTP(w, r)
		case r.URL.Path == "/user/auth":
			limited.ServeHTTP(w, r)
		default:
			mux.ServeHTTP(w, r)
		}
	})

	// Wrap with correlation ID injector and tracing middleware
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Reuse corr header if provided else generate
		corr := r.Header.Get("X-Correlation-ID")
		if corr == "" {
			corr = uuid.New().String()
		}
		ctx := telemetry.WithCorrelation(r.Context(), corr)
		w.Header().Set("X-Correlation-ID", corr)

		route := routeLabel(r.URL.Path)
		ctx, span := telemetry.StartSpan(ctx, "http-server", r.Method+" "+route,
			telemetry.HTTPMethodAttr(r.Method),
			telemetry.HTTPRouteAttr(route),
		)
		defer span.End()

		telemetry.LoggerWithCorr(ctx).Debug("request start", slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.String("component", "http"))

		// Capture status code via custom ResponseWriter
		wrappedWriter := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		selectiveHandler.ServeHTTP(wrappedWriter, r.WithContext(ctx))

		telemetry.SetSpanHTTPStatus(span, wrappedWriter.statusCode)
		telemetry.RecordHTTPRequest(r.Method, route, wrappedWriter.statusCode)
	})
	return withCORSConfig(maxBody(handler, deps.Config.MaxBodyBytes), corsCfg)
}

// routeLabel maps a request path onto a bounded set of route names.
func routeLabel(path string) string {
	switch path {
	case "/", "/metrics", "/healthz", "/readyz", "/twitch/status", "/twitch/message", "/twitch/get_messages", "/user/auth":
		return path
	}
	if strings.HasPrefix(path, "/users/") {
		return "/users/{username}"
	}
	return "other"
}

// statusRecorder wraps ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

// Flush implements http.Flusher if the underlying ResponseWriter supports it
func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Start runs the HTTP server and shuts down gracefully on context cancellation.
func Start(ctx context.Context, deps Deps, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      NewMux(ctx, deps),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Shutdown goroutine
	go func() {
		<-ctx.Done()
		// Use WithoutCancel to inherit context values but allow shutdown to complete
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", slog.Any("err", err))
		}
	}()

	slog.Info("http server listening", slog.String("addr", addr), slog.String("component", "http"))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("http server error", slog.Any("err", err))
		return err
	}
	return nil
}

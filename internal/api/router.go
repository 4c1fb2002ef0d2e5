package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// healthCheckTimeout bounds the optional component checks on /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)
		r.Get("/system/metrics", s.handleSystemMetrics)

		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		// Device ingestion, authorised by the channel write key.
		r.Post("/feeds/ingest", s.handleIngestFeed)
		r.Get("/feeds/create", s.handleIngestFeedQuery)

		r.Post("/channels/{id}/validate-keys", s.handleValidateKeys)
		r.Get("/channels/{id}/thresholds", s.handleChannelThresholds)

		// WebSocket (optional ticket, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		// Reads that accept either a read key or an owner token.
		r.Group(func(r chi.Router) {
			r.Use(s.optionalAuthMiddleware)

			r.Get("/feeds", s.handleListFeeds)
			r.Get("/feeds/{id}", s.handleGetFeed)
		})

		// Owner routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/me", s.handleMe)
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.Post("/feeds", s.handleCreateFeed)

			// Channel endpoints. Registered flat because the key-holder
			// routes above share the /channels/{id} prefix.
			r.Get("/channels", s.handleListChannels)
			r.Post("/channels", s.handleCreateChannel)
			r.Get("/channels/{id}", s.handleGetChannel)
			r.Patch("/channels/{id}", s.handleUpdateChannel)
			r.Post("/channels/{id}/keys", s.handleIssueKeys)

			r.Get("/audit", s.handleListAudit)
		})
	})

	return r
}

// handleHealth returns the server health status. Optional components are
// reported individually; a failing component marks the status degraded.
// Failure detail goes to the log, never to the response.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	components := make(map[string]string, len(s.checks))

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()
	for name, check := range s.checks {
		if check == nil {
			continue
		}
		if err := check.HealthCheck(ctx); err != nil {
			s.logger.Warn("health check failed", "component", name, "error", err)
			components[name] = "error"
			status = "degraded"
			continue
		}
		components[name] = "ok"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         status,
		"version":        s.version,
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
		"ws_clients":     s.hub.ClientCount(),
		"components":     components,
	})
}

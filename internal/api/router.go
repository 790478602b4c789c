package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/devicehub/internal/auth"
	"github.com/nerrad567/devicehub/internal/infrastructure/metrics"
)

// healthTimeout bounds the store probe behind /health.
const healthTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Open endpoints for probes and scrapers.
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	readDevices := s.requirePermission(auth.PermDeviceRead, bearerToken)
	writeDevices := s.requirePermission(auth.PermDeviceWrite, bearerToken)
	readData := s.requirePermission(auth.PermDataRead, bearerToken)
	writeData := s.requirePermission(auth.PermDataWrite, bearerToken)

	r.Route("/devices", func(r chi.Router) {
		r.With(readDevices).Get("/", s.handleListDevices)
		r.With(writeDevices).Post("/", s.handleRegisterDevice)

		r.Route("/{id}", func(r chi.Router) {
			r.With(readDevices).Get("/", s.handleGetDevice)
			r.With(writeDevices).Put("/", s.handleUpdateDevice)
			r.With(writeDevices).Patch("/", s.handleUpdateDevice)

			r.With(readData).Get("/data", s.handleListDeviceData)
			r.With(readData).Get("/data/{name}", s.handleListDeviceData)
			r.With(writeData).Post("/data/{name}", s.handleAddDeviceData)
		})
	})

	r.Route("/data", func(r chi.Router) {
		r.With(readData).Get("/", s.handleFindData)
		r.With(writeData).Post("/", s.handleAddData)
		r.With(readData).Get("/{id}", s.handleGetData)
	})

	wsPath := s.wsCfg.Path
	if wsPath == "" {
		wsPath = "/ws"
	}
	r.With(s.requirePermission(auth.PermDataRead, queryToken)).Get(wsPath, s.handleWebSocket)

	return r
}

// handleHealth reports API and store health. A failing store turns the
// response into a 503 so load balancers can drain the instance.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	checks := map[string]string{"api": "ok"}

	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := s.store.HealthCheck(ctx); err != nil {
			s.logger.Warn("store health check failed", "error", err)
			checks["database"] = "unavailable"
			status = http.StatusServiceUnavailable
		} else {
			checks["database"] = "ok"
		}
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}

	writeJSON(w, status, map[string]any{
		"status":            overall,
		"version":           s.version,
		"checks":            checks,
		"websocket_clients": s.hub.ClientCount(),
	})
}

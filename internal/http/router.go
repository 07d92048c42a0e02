// Package http wires every endpoint behind the shared middleware chain.
package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	certhandler "staykey/internal/certificate/handler"
	doorhandler "staykey/internal/dooraccess/handler"
	"staykey/internal/platform/health"
	"staykey/internal/platform/middleware"
)

// NewRouter assembles the middleware chain and mounts all handlers.
func NewRouter(
	certificates *certhandler.Handler,
	door *doorhandler.Handler,
	healthHandler *health.Handler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Identity)

	certificates.Register(r)
	door.Register(r)
	healthHandler.Register(r)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

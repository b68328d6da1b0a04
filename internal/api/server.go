// Animatch - Preference-Driven Anime Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animatch

// Package api provides the HTTP surface over the recommendation engine
// using the Chi router: recommendation and search endpoints, cache and
// rate-limit introspection, health checks, and Prometheus metrics.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/animatch/internal/config"
	"github.com/tomtom215/animatch/internal/logging"
	"github.com/tomtom215/animatch/internal/metrics"
)

// Server owns the HTTP listener and its routes.
type Server struct {
	cfg     config.ServerConfig
	handler *Handler
	httpSrv *http.Server
}

// NewServer wires routes and middleware around the handler.
func NewServer(cfg config.ServerConfig, handler *Handler) *Server {
	s := &Server{cfg: cfg, handler: handler}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RateLimitReqs > 0 {
			r.Use(httprate.LimitByIP(cfg.RateLimitReqs, time.Minute))
		}
		r.Use(requestMetrics)

		r.Post("/recommendations", handler.Recommendations)
		r.Get("/search", handler.Search)
		r.Get("/limits", handler.Limits)
		r.Get("/cache/stats", handler.CacheStats)
		r.Post("/cache/purge/{provider}", handler.PurgeProvider)
	})

	r.Get("/healthz", handler.Health)
	r.Handle("/metrics", promhttp.Handler())

	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Timeout,
		WriteTimeout:      cfg.Timeout,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Start begins serving and blocks until the listener closes.
func (s *Server) Start() error {
	logging.Info().Str("addr", s.httpSrv.Addr).Msg("HTTP server listening")
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// requestMetrics records per-endpoint counters and latency.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		metrics.APIRequestsTotal.WithLabelValues(r.Method, routePattern, fmt.Sprintf("%d", ww.Status())).Inc()
		metrics.APIRequestDuration.WithLabelValues(r.Method, routePattern).Observe(time.Since(start).Seconds())
	})
}

// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/phonographus/phonographus/internal/config"
	"github.com/phonographus/phonographus/internal/logging"
)

// healthRateLimit is deliberately permissive so monitoring can poll freely.
const healthRateLimit = 1000

// shutdownGrace bounds how long in-flight requests may finish on shutdown.
const shutdownGrace = 5 * time.Second

// Router assembles the HTTP surface.
type Router struct {
	cfg     *config.Config
	handler *Handler
}

// NewRouter builds the router over a handler set.
func NewRouter(cfg *config.Config, handler *Handler) *Router {
	return &Router{cfg: cfg, handler: handler}
}

// Setup wires all routes and middleware.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(RateLimit(healthRateLimit, time.Minute))
		r.Get("/", rt.handler.Health)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RateLimit(rt.cfg.API.RateLimitReqs, rt.cfg.API.RateLimitWindow))
		r.Use(PrometheusMetrics)

		r.Get("/stats", rt.handler.Stats)
		r.Get("/videos", rt.handler.Videos)
		r.Get("/queue", rt.handler.Queue)
		r.Post("/queue/{id}/retry", rt.handler.RetryQueueItem)
		r.Post("/rate", rt.handler.RateNow)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Server runs the HTTP listener as a supervised service.
type Server struct {
	cfg    *config.Config
	router *Router
}

// NewServer builds the HTTP service.
func NewServer(cfg *config.Config, router *Router) *Server {
	return &Server{cfg: cfg, router: router}
}

// Serve implements suture.Service: it blocks until ctx is canceled, then
// shuts the listener down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Server.Host, fmt.Sprintf("%d", s.cfg.Server.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router.Setup(),
		ReadHeaderTimeout: s.cfg.Server.Timeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	logging.Info().Msg("HTTP server stopped")
	return ctx.Err()
}

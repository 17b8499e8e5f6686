// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

// Package main is the entry point for the Phonographus serving process.
//
// The server runs three supervised services: the playback poller that
// observes the Home Assistant media player, a maintenance ticker for cache
// purges and statistics, and the administrative HTTP API. Queue processing
// against the YouTube Data API happens in the separate worker binary so the
// quota-sensitive path runs exactly once per deployment.
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables, config file, built-in defaults.
//
// The server handles graceful shutdown on SIGINT and SIGTERM: the supervisor
// tree is canceled, in-flight HTTP requests get a short grace period, and
// the database is closed last.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/phonographus/phonographus/internal/api"
	"github.com/phonographus/phonographus/internal/config"
	"github.com/phonographus/phonographus/internal/database"
	"github.com/phonographus/phonographus/internal/homeassistant"
	"github.com/phonographus/phonographus/internal/logging"
	"github.com/phonographus/phonographus/internal/poller"
	"github.com/phonographus/phonographus/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("entity_id", cfg.HomeAssistant.EntityID).
		Str("app_name", cfg.HomeAssistant.AppName).
		Str("db_path", cfg.Database.Path).
		Msg("Starting Phonographus server")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	// Home Assistant access goes through a circuit breaker so a flapping
	// instance cannot pile up blocked pollers.
	ha := homeassistant.NewBreakerClient(&cfg.HomeAssistant)
	if err := ha.Ping(context.Background()); err != nil {
		logging.Warn().Err(err).Msg("Failed to reach Home Assistant (will retry)")
	} else {
		logging.Info().Str("url", cfg.HomeAssistant.URL).Msg("Connected to Home Assistant")
	}

	playPoller := poller.New(cfg, ha, db)
	handler := api.NewHandler(cfg, db, ha, playPoller)
	server := api.NewServer(cfg, api.NewRouter(cfg, handler))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddObserverService(playPoller)
	tree.AddObserverService(supervisor.NewMaintenance(db))
	tree.AddAPIService(server)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for services to stop")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Server stopped gracefully")
}

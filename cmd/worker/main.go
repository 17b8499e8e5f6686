// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

// Package main is the entry point for the Phonographus queue worker.
//
// The worker is the only process that talks to the YouTube Data API. A PID
// lock file guarantees a single instance per host; a second copy exits with
// a non-zero status instead of competing for quota. Run with -authorize to
// perform the one-time OAuth consent flow before the first start.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/phonographus/phonographus/internal/config"
	"github.com/phonographus/phonographus/internal/database"
	"github.com/phonographus/phonographus/internal/logging"
	"github.com/phonographus/phonographus/internal/worker"
	"github.com/phonographus/phonographus/internal/youtube"
)

func main() {
	authorize := flag.Bool("authorize", false, "run the one-time OAuth consent flow and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	if *authorize {
		if err := runAuthorize(cfg); err != nil {
			logging.Fatal().Err(err).Msg("Authorization failed")
		}
		return
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	w, err := worker.New(cfg, db)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		// A held PID lock or failed credentials must not be retried blindly.
		logging.Error().Err(err).Msg("Worker stopped with error")
		if cerr := db.Close(); cerr != nil {
			logging.Error().Err(cerr).Msg("Error closing database")
		}
		os.Exit(1)
	}
	logging.Info().Msg("Worker stopped gracefully")
}

// runAuthorize walks the operator through the OAuth consent flow on the
// terminal and persists the resulting token with mode 0600.
func runAuthorize(cfg *config.Config) error {
	url := youtube.AuthCodeURL(&cfg.YouTube, "phonographus")
	fmt.Printf("Open the following URL in a browser and approve access:\n\n%s\n\n", url)
	fmt.Print("Paste the authorization code: ")

	code, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read authorization code: %w", err)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return errors.New("no authorization code entered")
	}

	store := youtube.NewTokenFile(cfg.YouTube.TokenPath)
	if _, err := youtube.Exchange(context.Background(), &cfg.YouTube, store, code); err != nil {
		return err
	}
	fmt.Printf("Token saved to %s\n", cfg.YouTube.TokenPath)
	return nil
}

// Replay - Playback History and Statistics Engine
// Copyright 2026 Replay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/replaysrv/replay

// Command rebuild replays the event store offline: every stored event is
// re-run through the classifier and every summary re-derived from scratch.
// Run it after upgrading across a classification-rule change, or whenever a
// summary is suspected of drifting from the store.
//
// Usage:
//
//	rebuild -user alice      rebuild one user
//	rebuild -all             rebuild every user in the store
//
// The server must not be running against the same database file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"

	"github.com/replaysrv/replay/internal/config"
	"github.com/replaysrv/replay/internal/database"
	"github.com/replaysrv/replay/internal/logging"
	"github.com/replaysrv/replay/internal/stats"
)

func main() {
	user := flag.String("user", "", "rebuild a single user")
	all := flag.Bool("all", false, "rebuild every user")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall deadline")
	flag.Parse()

	if (*user == "") == !*all {
		fmt.Fprintln(os.Stderr, "exactly one of -user or -all is required")
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*user, *all, *timeout); err != nil {
		logging.Error().Err(err).Msg("Rebuild failed")
		os.Exit(1)
	}
}

func run(user string, all bool, timeout time.Duration) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	db, err := database.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Warn().Err(err).Msg("Database close failed")
		}
	}()

	// The rebuild tool never resolves metadata or notifies: stored events
	// already carry their track lengths.
	engine := stats.NewEngine(cfg.Stats, db, nil, nil, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var results []stats.RebuildResult
	if all {
		results, err = engine.RebuildAll(ctx)
	} else {
		var res stats.RebuildResult
		res, err = engine.RebuildUser(ctx, user)
		results = append(results, res)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

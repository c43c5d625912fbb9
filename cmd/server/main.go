// Replay - Playback History and Statistics Engine
// Copyright 2026 Replay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/replaysrv/replay

// Command server runs the Replay HTTP server: event ingestion, summaries,
// snapshot merge and the periodic flusher, supervised as one tree.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/replaysrv/replay/internal/api"
	"github.com/replaysrv/replay/internal/config"
	"github.com/replaysrv/replay/internal/database"
	"github.com/replaysrv/replay/internal/logging"
	"github.com/replaysrv/replay/internal/metadata"
	"github.com/replaysrv/replay/internal/notify"
	"github.com/replaysrv/replay/internal/stats"
	"github.com/replaysrv/replay/internal/supervisor"
	"github.com/replaysrv/replay/internal/supervisor/services"
	"github.com/replaysrv/replay/internal/wal"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("Server exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Int("port", cfg.Server.Port).
		Str("database", cfg.Database.Path).
		Bool("wal", cfg.WAL.Enabled).
		Msg("Starting Replay server")

	db, err := database.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Warn().Err(err).Msg("Database close failed")
		}
	}()

	var resolver metadata.Resolver
	if cfg.Metadata.BaseURL != "" {
		resolver = metadata.NewClient(cfg.Metadata)
	}

	var notifier stats.Notifier
	var sink *notify.Sink
	if cfg.Notify.WebhookURL != "" {
		sink = notify.New(cfg.Notify)
		notifier = sink
	}

	var reportLog stats.ReportLog
	var walLog *wal.Log
	if cfg.WAL.Enabled {
		walLog, err = wal.Open(cfg.WAL)
		if err != nil {
			return fmt.Errorf("open report log: %w", err)
		}
		defer func() {
			if err := walLog.Close(); err != nil {
				logging.Warn().Err(err).Msg("Report log close failed")
			}
		}()
		reportLog = walLog
	}

	engine := stats.NewEngine(cfg.Stats, db, resolver, stats.NewRegistry(), notifier, reportLog)

	// Replay reports a crash stranded in the durable log; the next flush
	// confirms them under their original entry ids.
	if walLog != nil {
		pending, err := walLog.Pending()
		if err != nil {
			return fmt.Errorf("recover report log: %w", err)
		}
		for _, entry := range pending {
			engine.Restore(entry.Username, entry.Report, entry.ID)
		}
		if len(pending) > 0 {
			logging.Info().Int("reports", len(pending)).Msg("Recovered buffered reports from log")
		}
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(cfg.Server, api.NewHandler(engine, db)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	treeCfg := supervisor.DefaultTreeConfig()
	treeCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	tree := supervisor.NewTree(slog.New(slog.NewJSONHandler(os.Stderr, nil)), treeCfg)

	tree.AddDataService(services.NewFlushService(engine, cfg.Stats.FlushInterval))
	if sink != nil {
		tree.AddDataService(sink)
	}
	if walLog != nil {
		tree.AddDataService(services.NewWALGCService(walLog, 10*time.Minute))
	}
	tree.AddAPIService(services.NewHTTPService(srv, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = tree.Serve(ctx)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("supervisor: %w", err)
	}

	// Persist whatever is still buffered before the process goes away.
	flushCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := engine.Flush(flushCtx); err != nil {
		logging.Error().Err(err).Msg("Final flush failed, buffered reports lost")
	} else {
		logging.Info().Msg("Final flush complete")
	}
	return nil
}

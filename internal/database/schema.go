// Replay - Playback History and Statistics Engine
// Copyright 2026 Replay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/replaysrv/replay

package database

import (
	"context"
	"fmt"
	"time"
)

// initialize creates the schema if it does not exist.
//
// play_events has no uniqueness constraint beyond its synthetic id: dedup is
// a merge-time concern, not a storage concern, because live events are
// assumed not to repeat. Rows are append-only; the single mutation the
// accessor offers is the rebuild tool's event_type flip.
func (db *DB) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS play_sessions (
			username   VARCHAR NOT NULL,
			id         VARCHAR NOT NULL,
			start_time DOUBLE NOT NULL,
			end_time   DOUBLE NOT NULL,
			platform   VARCHAR NOT NULL DEFAULT 'unknown',
			PRIMARY KEY (username, id)
		)`,
		`CREATE TABLE IF NOT EXISTS play_events (
			username            VARCHAR NOT NULL,
			id                  VARCHAR NOT NULL,
			session_id          VARCHAR NOT NULL,
			song_filename       VARCHAR NOT NULL,
			event_type          VARCHAR NOT NULL,
			timestamp           DOUBLE NOT NULL,
			duration_played     DOUBLE NOT NULL,
			total_length        DOUBLE NOT NULL,
			play_ratio          DOUBLE NOT NULL,
			foreground_duration DOUBLE,
			background_duration DOUBLE,
			PRIMARY KEY (username, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_play_events_user_ts
			ON play_events (username, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_play_events_dedup
			ON play_events (username, timestamp, song_filename)`,
		`CREATE TABLE IF NOT EXISTS summaries (
			username     VARCHAR PRIMARY KEY,
			summary_json VARCHAR NOT NULL,
			updated_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}

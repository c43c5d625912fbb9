// Replay - Playback History and Statistics Engine
// Copyright 2026 Replay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/replaysrv/replay

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/replaysrv/replay/internal/models"
)

// SessionExists reports whether the session id has ever been seen for this
// user. The summary builder uses this, not its own cache, so first-session
// counting survives restarts.
func (db *DB) SessionExists(ctx context.Context, username, id string) (bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var one int
	err := db.conn.QueryRowContext(ctx,
		`SELECT 1 FROM play_sessions WHERE username = ? AND id = ?`,
		username, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check session existence: %w", err)
	}
	return true, nil
}

// UpsertSession creates the session on first reference, or widens an
// existing one: start_time shrinks to the earliest timestamp, end_time grows
// to the latest, and the first non-"unknown" platform sticks.
func (db *DB) UpsertSession(ctx context.Context, username, id string, ts float64, platform string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if platform == "" {
		platform = "unknown"
	}

	var start, end float64
	var existing string
	err := db.conn.QueryRowContext(ctx,
		`SELECT start_time, end_time, platform FROM play_sessions WHERE username = ? AND id = ?`,
		username, id).Scan(&start, &end, &existing)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = db.conn.ExecContext(ctx,
			`INSERT INTO play_sessions (username, id, start_time, end_time, platform)
			 VALUES (?, ?, ?, ?, ?)`,
			username, id, ts, ts, platform)
		if err != nil {
			return fmt.Errorf("failed to insert session: %w", err)
		}
		return nil

	case err != nil:
		return fmt.Errorf("failed to read session: %w", err)
	}

	if ts < start {
		start = ts
	}
	if ts > end {
		end = ts
	}
	if existing == "unknown" && platform != "unknown" {
		existing = platform
	}

	_, err = db.conn.ExecContext(ctx,
		`UPDATE play_sessions SET start_time = ?, end_time = ?, platform = ?
		 WHERE username = ? AND id = ?`,
		start, end, existing, username, id)
	if err != nil {
		return fmt.Errorf("failed to widen session: %w", err)
	}
	return nil
}

// InsertSessionRow inserts a fully-formed session row verbatim. Used by the
// snapshot merge for sessions the server has never seen; existing rows are
// never touched by this path.
func (db *DB) InsertSessionRow(ctx context.Context, username string, s models.PlaySession) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	platform := s.Platform
	if platform == "" {
		platform = "unknown"
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO play_sessions (username, id, start_time, end_time, platform)
		 VALUES (?, ?, ?, ?, ?)`,
		username, s.ID, s.StartTime, s.EndTime, platform)
	if err != nil {
		return fmt.Errorf("failed to insert session row: %w", err)
	}
	return nil
}

// ListSessions returns all of the user's sessions ordered by start time.
func (db *DB) ListSessions(ctx context.Context, username string) ([]models.PlaySession, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, start_time, end_time, platform
		 FROM play_sessions WHERE username = ? ORDER BY start_time, id`,
		username)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only rows

	var sessions []models.PlaySession
	for rows.Next() {
		var s models.PlaySession
		if err := rows.Scan(&s.ID, &s.StartTime, &s.EndTime, &s.Platform); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session iteration failed: %w", err)
	}
	return sessions, nil
}

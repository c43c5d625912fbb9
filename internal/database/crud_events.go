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

	"github.com/google/uuid"

	"github.com/replaysrv/replay/internal/models"
)

// InsertEvent appends one reconciled event row. Assigns an id when the
// caller did not.
func (db *DB) InsertEvent(ctx context.Context, username string, ev models.PlayEvent) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO play_events (
			username, id, session_id, song_filename, event_type, timestamp,
			duration_played, total_length, play_ratio,
			foreground_duration, background_duration
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		username, ev.ID, ev.SessionID, ev.SongFilename, ev.EventType, ev.Timestamp,
		ev.DurationPlayed, ev.TotalLength, ev.PlayRatio,
		ev.ForegroundDuration, ev.BackgroundDuration,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// EventExists reports whether a local event already occupies the
// (timestamp, song_filename) dedup key. Intentionally coarse: two genuinely
// distinct events sharing both values dedup to one, a documented limitation
// of the snapshot merge.
func (db *DB) EventExists(ctx context.Context, username string, timestamp float64, songFilename string) (bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var one int
	err := db.conn.QueryRowContext(ctx,
		`SELECT 1 FROM play_events
		 WHERE username = ? AND timestamp = ? AND song_filename = ?
		 LIMIT 1`,
		username, timestamp, songFilename).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check event existence: %w", err)
	}
	return true, nil
}

// ListEvents returns all of the user's events in store order (timestamp
// ascending, id as tiebreak). The rebuild tool and merge path replay this.
func (db *DB) ListEvents(ctx context.Context, username string) ([]models.PlayEvent, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, session_id, song_filename, event_type, timestamp,
		        duration_played, total_length, play_ratio,
		        foreground_duration, background_duration
		 FROM play_events WHERE username = ? ORDER BY timestamp, id`,
		username)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only rows

	var events []models.PlayEvent
	for rows.Next() {
		var ev models.PlayEvent
		var fg, bg sql.NullFloat64
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.SongFilename, &ev.EventType,
			&ev.Timestamp, &ev.DurationPlayed, &ev.TotalLength, &ev.PlayRatio,
			&fg, &bg); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if fg.Valid {
			v := fg.Float64
			ev.ForegroundDuration = &v
		}
		if bg.Valid {
			v := bg.Float64
			ev.BackgroundDuration = &v
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("event iteration failed: %w", err)
	}
	return events, nil
}

// UpdateEventType applies the rebuild tool's retroactive reclassification.
// The only event mutation the accessor offers.
func (db *DB) UpdateEventType(ctx context.Context, username, id, eventType string, playRatio float64) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE play_events SET event_type = ?, play_ratio = ?
		 WHERE username = ? AND id = ?`,
		eventType, playRatio, username, id)
	if err != nil {
		return fmt.Errorf("failed to update event type: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("event %s not found for user %s", id, username)
	}
	return nil
}

// Users returns every username with at least one event, session or summary.
// Drives rebuildAll.
func (db *DB) Users(ctx context.Context) ([]string, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT username FROM play_events
		 UNION SELECT username FROM play_sessions
		 UNION SELECT username FROM summaries
		 ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only rows

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan username: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("user iteration failed: %w", err)
	}
	return users, nil
}

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

	"github.com/goccy/go-json"

	"github.com/replaysrv/replay/internal/models"
)

// LoadSummary returns the user's cached summary, or nil when none has been
// written yet.
func (db *DB) LoadSummary(ctx context.Context, username string) (*models.Summary, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var raw string
	err := db.conn.QueryRowContext(ctx,
		`SELECT summary_json FROM summaries WHERE username = ?`, username).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load summary: %w", err)
	}

	s := models.NewSummary()
	if err := json.Unmarshal([]byte(raw), s); err != nil {
		return nil, fmt.Errorf("failed to decode summary: %w", err)
	}
	if s.PlatformUsage == nil {
		s.PlatformUsage = make(map[string]int)
	}
	if s.ShuffleState.Config == nil {
		s.ShuffleState.Config = make(models.ShuffleConfig)
	}
	if s.ShuffleState.History == nil {
		s.ShuffleState.History = []models.HistoryEntry{}
	}
	return s, nil
}

// SaveSummary persists the user's summary as a JSON row, replacing any
// previous snapshot.
func (db *DB) SaveSummary(ctx context.Context, username string, s *models.Summary) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO summaries (username, summary_json, updated_at)
		 VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (username) DO UPDATE
		 SET summary_json = excluded.summary_json, updated_at = now()`,
		username, string(raw))
	if err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}
	return nil
}

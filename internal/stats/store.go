// Replay - Playback History and Statistics Engine
// Copyright 2026 Replay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/replaysrv/replay

// Package stats is the play-event ingestion, aggregation and cross-device
// reconciliation engine.
//
// Live traffic flows one way: client report -> buffer -> (flush) ->
// coalescer -> classifier -> store -> summary builder -> cached summary.
// The snapshot merge and the rebuild tool are alternate entry points that
// touch the same store and summary but bypass the buffer and coalescer.
package stats

import (
	"context"

	"github.com/replaysrv/replay/internal/models"
)

// Store is the persistent event store the engine writes through. Implemented
// by *database.DB; tests substitute an in-memory fake.
type Store interface {
	// UpsertSession creates the session on first reference or widens its
	// time bounds; the first non-"unknown" platform sticks.
	UpsertSession(ctx context.Context, username, id string, ts float64, platform string) error

	// SessionExists reports whether the session id has ever been stored.
	// The builder consults the store, not its own cache, so first-session
	// counting survives restarts.
	SessionExists(ctx context.Context, username, id string) (bool, error)

	// InsertSessionRow inserts a foreign session row verbatim (merge path).
	InsertSessionRow(ctx context.Context, username string, s models.PlaySession) error

	// ListSessions returns all sessions ordered by start time.
	ListSessions(ctx context.Context, username string) ([]models.PlaySession, error)

	// InsertEvent appends one reconciled event row.
	InsertEvent(ctx context.Context, username string, ev models.PlayEvent) error

	// EventExists checks the (timestamp, song_filename) merge dedup key.
	EventExists(ctx context.Context, username string, timestamp float64, songFilename string) (bool, error)

	// ListEvents returns all events in store order (timestamp ascending).
	ListEvents(ctx context.Context, username string) ([]models.PlayEvent, error)

	// UpdateEventType applies a retroactive reclassification.
	UpdateEventType(ctx context.Context, username, id, eventType string, playRatio float64) error

	// LoadSummary returns the cached summary, nil if none exists yet.
	LoadSummary(ctx context.Context, username string) (*models.Summary, error)

	// SaveSummary replaces the cached summary.
	SaveSummary(ctx context.Context, username string, s *models.Summary) error

	// Users lists every username present in the store.
	Users(ctx context.Context) ([]string, error)
}

// Notifier is the fire-and-forget notification sink. Implementations must
// never block the pipeline; failures are swallowed.
type Notifier interface {
	LogLine(line string)
}

// noopNotifier is used when no sink is configured.
type noopNotifier struct{}

func (noopNotifier) LogLine(string) {}

// ReportLog is the optional durable buffer log. When configured, every
// accepted report is appended before it is buffered and confirmed once its
// flush cycle persists it, so a crash can resume from the log instead of
// losing buffered state.
type ReportLog interface {
	Append(username string, rep models.StatsReport) (entryID string, err error)
	Confirm(entryIDs []string) error
}

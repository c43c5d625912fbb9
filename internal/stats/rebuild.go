// Replay - Playback History and Statistics Engine
// Copyright 2026 Replay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/replaysrv/replay

package stats

import (
	"context"
	"errors"
	"fmt"

	"github.com/replaysrv/replay/internal/logging"
	"github.com/replaysrv/replay/internal/metrics"
	"github.com/replaysrv/replay/internal/models"
)

// RebuildResult reports what one rebuild pass changed.
type RebuildResult struct {
	Username     string `json:"username"`
	Events       int    `json:"events"`
	Reclassified int    `json:"reclassified"`
}

// RebuildUser replays the user's full event store: every event is run back
// through the classifier (flipping stale stored types in place), then the
// summary is re-derived from scratch with only the shuffle config preserved.
// Running it twice in a row is a no-op — the classifier and builder are the
// same routines the live path uses, so a clean store reproduces itself.
func (e *Engine) RebuildUser(ctx context.Context, username string) (RebuildResult, error) {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()
	return e.rebuildUserLocked(ctx, username)
}

func (e *Engine) rebuildUserLocked(ctx context.Context, username string) (RebuildResult, error) {
	res := RebuildResult{Username: username}

	events, err := e.store.ListEvents(ctx, username)
	if err != nil {
		return res, fmt.Errorf("rebuild %s: %w", username, err)
	}
	res.Events = len(events)

	for i, ev := range events {
		eventType, ratio := Reclassify(ev.EventType, ev.DurationPlayed, ev.TotalLength, e.cfg.TailWindow)
		if eventType == ev.EventType && ratio == ev.PlayRatio {
			continue
		}
		if err := e.store.UpdateEventType(ctx, username, ev.ID, eventType, ratio); err != nil {
			return res, fmt.Errorf("rebuild %s: %w", username, err)
		}
		events[i].EventType = eventType
		events[i].PlayRatio = ratio
		if eventType != ev.EventType {
			res.Reclassified++
			metrics.EventsReclassified.Inc()
		}
	}

	prev, err := e.store.LoadSummary(ctx, username)
	if err != nil {
		return res, fmt.Errorf("rebuild %s: %w", username, err)
	}
	var prevConfig models.ShuffleConfig
	if prev != nil {
		prevConfig = prev.ShuffleState.Config
	}

	sessions, err := e.store.ListSessions(ctx, username)
	if err != nil {
		return res, fmt.Errorf("rebuild %s: %w", username, err)
	}

	rebuilt := deriveSummary(events, sessions, prevConfig, e.cfg.HistoryLimit)
	if err := e.store.SaveSummary(ctx, username, rebuilt); err != nil {
		return res, fmt.Errorf("rebuild %s: %w", username, err)
	}

	metrics.RebuildRuns.Inc()
	logging.Info().
		Str("username", username).
		Int("events", res.Events).
		Int("reclassified", res.Reclassified).
		Msg("Summary rebuilt")
	return res, nil
}

// deriveFromStore re-derives a summary from the user's stored rows with the
// given shuffle config carried over. Shared by rebuild and merge.
func (e *Engine) deriveFromStore(ctx context.Context, username string, cfg models.ShuffleConfig) (*models.Summary, error) {
	events, err := e.store.ListEvents(ctx, username)
	if err != nil {
		return nil, err
	}
	sessions, err := e.store.ListSessions(ctx, username)
	if err != nil {
		return nil, err
	}
	return deriveSummary(events, sessions, cfg, e.cfg.HistoryLimit), nil
}

// RebuildAll rebuilds every user in the store. One user's failure does not
// stop the others; the joined error reports each failure.
func (e *Engine) RebuildAll(ctx context.Context) ([]RebuildResult, error) {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	users, err := e.store.Users(ctx)
	if err != nil {
		return nil, fmt.Errorf("rebuild all: %w", err)
	}

	results := make([]RebuildResult, 0, len(users))
	var errs []error
	for _, user := range users {
		res, err := e.rebuildUserLocked(ctx, user)
		if err != nil {
			logging.Error().Err(err).Str("username", user).Msg("Rebuild failed for user")
			errs = append(errs, err)
			continue
		}
		results = append(results, res)
	}
	if len(errs) > 0 {
		return results, errors.Join(errs...)
	}
	return results, nil
}

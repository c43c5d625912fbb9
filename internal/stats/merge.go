// Replay - Playback History and Statistics Engine
// Copyright 2026 Replay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/replaysrv/replay

package stats

import (
	"context"
	"fmt"

	"github.com/replaysrv/replay/internal/logging"
	"github.com/replaysrv/replay/internal/metrics"
	"github.com/replaysrv/replay/internal/models"
)

// MergeSnapshot reconciles another device's snapshot into the local store.
// The merge is strictly additive: sessions insert only when their id is
// unseen, events dedup on (timestamp, song_filename), and nothing local is
// ever deleted or overwritten. Foreign counters are never accepted — after
// the rows land, the summary is re-derived from the merged store, then the
// foreign shuffle config is overlaid (foreign wins per key) and the foreign
// history unioned in (local entry wins per filename).
func (e *Engine) MergeSnapshot(ctx context.Context, username string, snap models.Snapshot) (models.MergeResult, error) {
	var res models.MergeResult
	if snap.Replace {
		return res, ErrReplaceNotAllowed
	}
	if username == "" {
		return res, fmt.Errorf("%w: missing username", ErrInvalidReport)
	}

	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	for _, sess := range snap.Sessions {
		if sess.ID == "" {
			continue
		}
		exists, err := e.store.SessionExists(ctx, username, sess.ID)
		if err != nil {
			return res, fmt.Errorf("merge sessions: %w", err)
		}
		if exists {
			res.SessionsDuplicate++
			continue
		}
		if err := e.store.InsertSessionRow(ctx, username, sess); err != nil {
			return res, fmt.Errorf("merge sessions: %w", err)
		}
		res.SessionsAdded++
	}

	for _, ev := range snap.Events {
		if ev.SongFilename == "" || ev.SessionID == "" {
			continue
		}
		// Foreign events pass through the same classifier as live traffic:
		// the other device may predate the tail-completion rule.
		eventType, ratio := Reclassify(ev.EventType, ev.DurationPlayed, ev.TotalLength, e.cfg.TailWindow)
		if eventType != ev.EventType {
			res.Reclassified++
			metrics.EventsReclassified.Inc()
		}

		ev.ID = "" // never trust foreign ids, the store assigns fresh ones
		ev.EventType = eventType
		ev.PlayRatio = ratio
		ev.Timestamp = round2(ev.Timestamp)
		ev.DurationPlayed = round2(ev.DurationPlayed)
		ev.TotalLength = round2(ev.TotalLength)
		ev.ForegroundDuration = round2p(ev.ForegroundDuration)
		ev.BackgroundDuration = round2p(ev.BackgroundDuration)

		exists, err := e.store.EventExists(ctx, username, ev.Timestamp, ev.SongFilename)
		if err != nil {
			return res, fmt.Errorf("merge events: %w", err)
		}
		if exists {
			res.EventsDuplicate++
			continue
		}
		if err := e.store.InsertEvent(ctx, username, ev); err != nil {
			return res, fmt.Errorf("merge events: %w", err)
		}
		res.EventsAdded++
	}

	if err := e.recomputeAfterMerge(ctx, username, snap.Summary); err != nil {
		return res, err
	}

	metrics.MergeSessions.WithLabelValues("added").Add(float64(res.SessionsAdded))
	metrics.MergeSessions.WithLabelValues("duplicate").Add(float64(res.SessionsDuplicate))
	metrics.MergeEvents.WithLabelValues("added").Add(float64(res.EventsAdded))
	metrics.MergeEvents.WithLabelValues("duplicate").Add(float64(res.EventsDuplicate))

	e.notifier.LogLine(fmt.Sprintf("merged snapshot for %s: +%d sessions, +%d events, %d duplicates",
		username, res.SessionsAdded, res.EventsAdded, res.EventsDuplicate))
	logging.Info().
		Str("username", username).
		Int("sessions_added", res.SessionsAdded).
		Int("events_added", res.EventsAdded).
		Int("events_duplicate", res.EventsDuplicate).
		Int("reclassified", res.Reclassified).
		Msg("Snapshot merged")
	return res, nil
}

// recomputeAfterMerge re-derives the summary from the merged store and
// applies the two pieces of foreign state that are accepted directly: the
// shuffle config overlay and the history union.
func (e *Engine) recomputeAfterMerge(ctx context.Context, username string, foreign *models.Summary) error {
	local, err := e.store.LoadSummary(ctx, username)
	if err != nil {
		return fmt.Errorf("merge summary: %w", err)
	}

	mergedConfig := make(models.ShuffleConfig)
	if local != nil {
		for k, v := range local.ShuffleState.Config {
			mergedConfig[k] = v
		}
	}
	if foreign != nil {
		for k, v := range foreign.ShuffleState.Config {
			mergedConfig[k] = v
		}
	}

	rebuilt, err := e.deriveFromStore(ctx, username, mergedConfig)
	if err != nil {
		return fmt.Errorf("merge summary: %w", err)
	}

	if foreign != nil {
		limit := mergedConfig.HistoryLimit(e.cfg.HistoryLimit)
		rebuilt.ShuffleState.History = unionHistory(rebuilt.ShuffleState.History,
			foreign.ShuffleState.History, limit)
	}

	if err := e.store.SaveSummary(ctx, username, rebuilt); err != nil {
		return fmt.Errorf("merge summary: %w", err)
	}
	return nil
}

// ExportSnapshot flushes the user's buffer and packages their full store
// state for transfer to another device. The counterpart of MergeSnapshot.
func (e *Engine) ExportSnapshot(ctx context.Context, username string) (models.Snapshot, error) {
	var snap models.Snapshot
	if err := e.FlushUser(ctx, username); err != nil {
		return snap, fmt.Errorf("export snapshot: %w", err)
	}

	sessions, err := e.store.ListSessions(ctx, username)
	if err != nil {
		return snap, fmt.Errorf("export snapshot: %w", err)
	}
	events, err := e.store.ListEvents(ctx, username)
	if err != nil {
		return snap, fmt.Errorf("export snapshot: %w", err)
	}
	sum, err := e.store.LoadSummary(ctx, username)
	if err != nil {
		return snap, fmt.Errorf("export snapshot: %w", err)
	}

	snap.Sessions = sessions
	snap.Events = events
	snap.Summary = sum
	return snap, nil
}

// unionHistory merges foreign history entries into the local history. The
// local entry wins on a filename conflict; the result is newest first and
// capped at limit.
func unionHistory(local, foreign []models.HistoryEntry, limit int) []models.HistoryEntry {
	seen := make(map[string]bool, len(local))
	out := append([]models.HistoryEntry(nil), local...)
	for _, h := range local {
		seen[h.Filename] = true
	}
	for _, h := range foreign {
		if h.Filename == "" || seen[h.Filename] {
			continue
		}
		seen[h.Filename] = true
		out = append(out, h)
	}
	sortHistory(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

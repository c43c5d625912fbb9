// Replay - Playback History and Statistics Engine
// Copyright 2026 Replay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/replaysrv/replay

package stats

import (
	"sort"

	"github.com/replaysrv/replay/internal/models"
)

// Thresholds for the derived summary counters. A play is meaningful when
// more than a quarter of the track was heard; a skip only counts when the
// listener bailed before a fifth of it.
const (
	meaningfulPlayRatio = 0.25
	countedSkipRatio    = 0.2
	historyMinDuration  = 5.0
)

// applyEvent folds one reconciled event into the summary. Favorite markers
// contribute nothing beyond their (zero) durations: they are bookkeeping
// rows, not plays.
func applyEvent(s *models.Summary, ev models.PlayEvent, historyLimit int) {
	s.TotalPlayTime = round2(s.TotalPlayTime + ev.DurationPlayed)
	if ev.ForegroundDuration != nil {
		s.TotalForegroundPlaytime = round2(s.TotalForegroundPlaytime + *ev.ForegroundDuration)
	}
	if ev.BackgroundDuration != nil {
		s.TotalBackgroundPlaytime = round2(s.TotalBackgroundPlaytime + *ev.BackgroundDuration)
	}

	if ev.EventType == models.EventFavorite {
		return
	}

	if ev.PlayRatio > meaningfulPlayRatio {
		s.TotalSongsPlayed++
		s.TotalSongsPlayedRatioOver025++
	}
	if ev.EventType == models.EventSkip && ev.PlayRatio < countedSkipRatio {
		s.TotalSkipped++
	}

	if ev.PlayRatio > meaningfulPlayRatio || ev.DurationPlayed > historyMinDuration {
		touchHistory(s, ev.SongFilename, ev.Timestamp, historyLimit)
	}
}

// applySession counts a session the first time its id is ever seen. The
// caller decides "first time" against the store, so counters survive
// restarts and multi-day sessions count once.
func applySession(s *models.Summary, platform string) {
	if platform == "" {
		platform = "unknown"
	}
	s.TotalSessions++
	s.PlatformUsage[platform]++
}

// touchHistory records the most recent meaningful play of a song. At most
// one entry per filename; the newer timestamp wins; newest first; capped at
// historyLimit.
func touchHistory(s *models.Summary, filename string, ts float64, historyLimit int) {
	hist := s.ShuffleState.History
	found := false
	for i := range hist {
		if hist[i].Filename == filename {
			if ts > hist[i].Timestamp {
				hist[i].Timestamp = ts
			}
			found = true
			break
		}
	}
	if !found {
		hist = append(hist, models.HistoryEntry{Filename: filename, Timestamp: ts})
	}
	sortHistory(hist)
	if historyLimit > 0 && len(hist) > historyLimit {
		hist = hist[:historyLimit]
	}
	s.ShuffleState.History = hist
}

// sortHistory orders entries newest first, filename as tiebreak so equal
// timestamps still produce a deterministic summary.
func sortHistory(hist []models.HistoryEntry) {
	sort.SliceStable(hist, func(i, j int) bool {
		if hist[i].Timestamp != hist[j].Timestamp {
			return hist[i].Timestamp > hist[j].Timestamp
		}
		return hist[i].Filename < hist[j].Filename
	})
}

// deriveSummary replays the full store into a fresh summary, preserving only
// the user's shuffle config. This is the ground truth every other summary
// mutation must agree with: the live flush path is an incremental shortcut
// for exactly this computation.
func deriveSummary(events []models.PlayEvent, sessions []models.PlaySession,
	prevConfig models.ShuffleConfig, defaultHistoryLimit int) *models.Summary {

	s := models.NewSummary()
	for k, v := range prevConfig {
		s.ShuffleState.Config[k] = v
	}
	limit := s.ShuffleState.Config.HistoryLimit(defaultHistoryLimit)

	for _, sess := range sessions {
		applySession(s, sess.Platform)
	}
	for _, ev := range events {
		applyEvent(s, ev, limit)
	}
	return s
}

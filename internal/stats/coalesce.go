// Replay - Playback History and Statistics Engine
// Copyright 2026 Replay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/replaysrv/replay

package stats

import (
	"sort"

	"github.com/replaysrv/replay/internal/models"
)

// coalesce sorts a drained batch by timestamp and merges consecutive runs of
// reports for the same (session_id, song_filename) into single logical
// events. Clients report partial progress every few seconds; one continuous
// listen arrives as a run of small deltas that must count once.
//
// Within a run, durations are summed and the last report wins for event
// type, timestamp and platform; an empty platform never overwrites a known
// one. A different song or session breaks the run;
// returning to a song later in the batch starts a new logical event.
// Favorite markers never merge with playback reports around them.
func coalesce(batch []bufferedReport) []models.StatsReport {
	if len(batch) == 0 {
		return nil
	}

	sorted := make([]models.StatsReport, len(batch))
	for i, br := range batch {
		sorted[i] = br.Report
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	merged := make([]models.StatsReport, 0, len(sorted))
	for _, rep := range sorted {
		if n := len(merged); n > 0 && sameRun(merged[n-1], rep) {
			cur := &merged[n-1]
			cur.DurationPlayed = round2(cur.DurationPlayed + rep.DurationPlayed)
			cur.ForegroundDuration = addOptional(cur.ForegroundDuration, rep.ForegroundDuration)
			cur.BackgroundDuration = addOptional(cur.BackgroundDuration, rep.BackgroundDuration)
			cur.EventType = rep.EventType
			cur.Timestamp = rep.Timestamp
			if rep.Platform != "" {
				cur.Platform = rep.Platform
			}
			continue
		}
		merged = append(merged, rep)
	}
	return merged
}

func sameRun(a, b models.StatsReport) bool {
	if a.EventType == models.EventFavorite || b.EventType == models.EventFavorite {
		return false
	}
	return a.SessionID == b.SessionID && a.SongFilename == b.SongFilename
}

// addOptional sums two optional durations, staying nil only when both are.
func addOptional(a, b *float64) *float64 {
	if a == nil {
		return round2p(b)
	}
	if b == nil {
		return round2p(a)
	}
	sum := round2(*a + *b)
	return &sum
}

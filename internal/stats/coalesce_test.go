// Replay - Playback History and Statistics Engine
// Copyright 2026 Replay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/replaysrv/replay

package stats

import (
	"testing"

	"github.com/replaysrv/replay/internal/models"
)

func rep(session, song, eventType string, ts, dur float64) bufferedReport {
	return bufferedReport{Report: models.StatsReport{
		SessionID:    session,
		SongFilename: song,
		EventType:    eventType,
		Timestamp:    ts,
		DurationPlayed: dur,
	}}
}

func TestCoalesceMergesConsecutiveRun(t *testing.T) {
	batch := []bufferedReport{
		rep("s1", "a.mp3", models.EventListen, 100, 10),
		rep("s1", "a.mp3", models.EventListen, 110, 15),
		rep("s1", "a.mp3", models.EventSkip, 120, 20),
	}

	got := coalesce(batch)
	if len(got) != 1 {
		t.Fatalf("expected 1 logical event, got %d", len(got))
	}
	ev := got[0]
	if ev.DurationPlayed != 45 {
		t.Errorf("duration = %v, want 45", ev.DurationPlayed)
	}
	// Last report of the run wins for type and timestamp.
	if ev.EventType != models.EventSkip || ev.Timestamp != 120 {
		t.Errorf("last-report-wins violated: type=%q ts=%v", ev.EventType, ev.Timestamp)
	}
}

func TestCoalesceSortsByTimestampFirst(t *testing.T) {
	// Out-of-order arrival of the same run must still merge.
	batch := []bufferedReport{
		rep("s1", "a.mp3", models.EventListen, 110, 15),
		rep("s1", "a.mp3", models.EventListen, 100, 10),
	}
	got := coalesce(batch)
	if len(got) != 1 || got[0].DurationPlayed != 25 {
		t.Fatalf("out-of-order run not merged: %+v", got)
	}
	if got[0].Timestamp != 110 {
		t.Errorf("timestamp = %v, want latest 110", got[0].Timestamp)
	}
}

func TestCoalesceDifferentSongBreaksRun(t *testing.T) {
	batch := []bufferedReport{
		rep("s1", "a.mp3", models.EventListen, 100, 10),
		rep("s1", "b.mp3", models.EventListen, 110, 20),
		rep("s1", "a.mp3", models.EventListen, 120, 30),
	}
	got := coalesce(batch)
	// Returning to a.mp3 starts a NEW logical event, not a resumed one.
	if len(got) != 3 {
		t.Fatalf("expected 3 logical events, got %d", len(got))
	}
	if got[0].DurationPlayed != 10 || got[2].DurationPlayed != 30 {
		t.Errorf("runs wrongly merged across the interruption: %+v", got)
	}
}

func TestCoalesceDifferentSessionBreaksRun(t *testing.T) {
	batch := []bufferedReport{
		rep("s1", "a.mp3", models.EventListen, 100, 10),
		rep("s2", "a.mp3", models.EventListen, 110, 20),
	}
	got := coalesce(batch)
	if len(got) != 2 {
		t.Fatalf("same song across sessions must not merge, got %d events", len(got))
	}
}

func TestCoalesceFavoriteNeverMerges(t *testing.T) {
	batch := []bufferedReport{
		rep("s1", "a.mp3", models.EventListen, 100, 10),
		rep("s1", "a.mp3", models.EventFavorite, 105, 0),
		rep("s1", "a.mp3", models.EventListen, 110, 20),
	}
	got := coalesce(batch)
	if len(got) != 3 {
		t.Fatalf("favorite marker must break the run, got %d events", len(got))
	}
	if got[1].EventType != models.EventFavorite {
		t.Errorf("favorite marker lost in coalescing")
	}
}

func TestCoalesceSumsOptionalDurations(t *testing.T) {
	fg1, bg1, fg2 := 8.0, 2.0, 15.0
	a := rep("s1", "a.mp3", models.EventListen, 100, 10)
	a.Report.ForegroundDuration = &fg1
	a.Report.BackgroundDuration = &bg1
	b := rep("s1", "a.mp3", models.EventListen, 110, 15)
	b.Report.ForegroundDuration = &fg2

	got := coalesce([]bufferedReport{a, b})
	if len(got) != 1 {
		t.Fatalf("expected 1 logical event, got %d", len(got))
	}
	if got[0].ForegroundDuration == nil || *got[0].ForegroundDuration != 23 {
		t.Errorf("foreground sum wrong: %v", got[0].ForegroundDuration)
	}
	// Background was only reported once; the sum keeps the known value.
	if got[0].BackgroundDuration == nil || *got[0].BackgroundDuration != 2 {
		t.Errorf("background sum wrong: %v", got[0].BackgroundDuration)
	}
}

func TestCoalesceEmptyBatch(t *testing.T) {
	if got := coalesce(nil); got != nil {
		t.Errorf("empty batch should coalesce to nil, got %v", got)
	}
}

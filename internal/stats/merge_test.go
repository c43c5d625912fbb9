// Replay - Playback History and Statistics Engine
// Copyright 2026 Replay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/replaysrv/replay

package stats

import (
	"context"
	"errors"
	"testing"

	"github.com/replaysrv/replay/internal/models"
)

func TestMergeSnapshotRejectsReplace(t *testing.T) {
	e := newTestEngine(newFakeStore(), nil)
	_, err := e.MergeSnapshot(context.Background(), "alice", models.Snapshot{Replace: true})
	if !errors.Is(err, ErrReplaceNotAllowed) {
		t.Fatalf("expected ErrReplaceNotAllowed, got %v", err)
	}
}

func TestMergeSnapshotAdditive(t *testing.T) {
	store := newFakeStore()
	e := newTestEngine(store, fixedResolver(100))
	ctx := context.Background()

	// Local state: one flushed listen.
	if err := e.Record(ctx, "alice", report("s1", "a.mp3", models.EventListen, 100, 30)); err != nil {
		t.Fatal(err)
	}
	if err := e.Flush(ctx); err != nil {
		t.Fatal(err)
	}

	snap := models.Snapshot{
		Sessions: []models.PlaySession{
			{ID: "s1", StartTime: 90, EndTime: 110, Platform: "android"}, // duplicate id
			{ID: "s9", StartTime: 500, EndTime: 600, Platform: "android"},
		},
		Events: []models.PlayEvent{
			// Duplicate of the local event: same (timestamp, song_filename).
			{SessionID: "s1", SongFilename: "a.mp3", EventType: models.EventListen,
				Timestamp: 100, DurationPlayed: 30, TotalLength: 100, PlayRatio: 0.3},
			// New foreign event.
			{SessionID: "s9", SongFilename: "b.mp3", EventType: models.EventListen,
				Timestamp: 550, DurationPlayed: 80, TotalLength: 100, PlayRatio: 0.8},
		},
	}

	res, err := e.MergeSnapshot(ctx, "alice", snap)
	if err != nil {
		t.Fatal(err)
	}
	if res.SessionsAdded != 1 || res.SessionsDuplicate != 1 {
		t.Errorf("sessions added/dup = %d/%d, want 1/1", res.SessionsAdded, res.SessionsDuplicate)
	}
	if res.EventsAdded != 1 || res.EventsDuplicate != 1 {
		t.Errorf("events added/dup = %d/%d, want 1/1", res.EventsAdded, res.EventsDuplicate)
	}

	// The store is now a superset of both sides; nothing local changed.
	events, _ := store.ListEvents(ctx, "alice")
	if len(events) != 2 {
		t.Fatalf("expected 2 stored events, got %d", len(events))
	}
	sessions, _ := store.ListSessions(ctx, "alice")
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	// The duplicate session id kept the local row (platform ios, not android).
	for _, s := range sessions {
		if s.ID == "s1" && s.Platform != "ios" {
			t.Errorf("local session overwritten by merge: %+v", s)
		}
	}

	// Counters were re-derived from the merged store, not taken from
	// anywhere: both listens are meaningful.
	sum, _ := store.LoadSummary(ctx, "alice")
	if sum.TotalPlayTime != 110 || sum.TotalSongsPlayed != 2 || sum.TotalSessions != 2 {
		t.Errorf("post-merge summary wrong: %+v", sum)
	}
}

func TestMergeSnapshotIsIdempotent(t *testing.T) {
	store := newFakeStore()
	e := newTestEngine(store, nil)
	ctx := context.Background()

	snap := models.Snapshot{
		Sessions: []models.PlaySession{{ID: "s1", StartTime: 1, EndTime: 2, Platform: "web"}},
		Events: []models.PlayEvent{
			{SessionID: "s1", SongFilename: "a.mp3", EventType: models.EventListen,
				Timestamp: 1.5, DurationPlayed: 40, TotalLength: 100, PlayRatio: 0.4},
		},
	}

	if _, err := e.MergeSnapshot(ctx, "alice", snap); err != nil {
		t.Fatal(err)
	}
	res, err := e.MergeSnapshot(ctx, "alice", snap)
	if err != nil {
		t.Fatal(err)
	}
	if res.SessionsAdded != 0 || res.EventsAdded != 0 {
		t.Errorf("second merge added rows: %+v", res)
	}

	events, _ := store.ListEvents(ctx, "alice")
	if len(events) != 1 {
		t.Errorf("replayed snapshot duplicated events: %d", len(events))
	}
	sum, _ := store.LoadSummary(ctx, "alice")
	if sum.TotalPlayTime != 40 || sum.TotalSongsPlayed != 1 {
		t.Errorf("summary drifted on replay: %+v", sum)
	}
}

func TestMergeReclassifiesForeignEvents(t *testing.T) {
	store := newFakeStore()
	e := newTestEngine(store, nil)
	ctx := context.Background()

	snap := models.Snapshot{
		Events: []models.PlayEvent{
			// The other device predates the tail rule and stored a skip.
			{SessionID: "s1", SongFilename: "a.mp3", EventType: models.EventSkip,
				Timestamp: 1, DurationPlayed: 95, TotalLength: 100, PlayRatio: 0.95},
		},
	}
	res, err := e.MergeSnapshot(ctx, "alice", snap)
	if err != nil {
		t.Fatal(err)
	}
	if res.Reclassified != 1 {
		t.Errorf("reclassified = %d, want 1", res.Reclassified)
	}

	events, _ := store.ListEvents(ctx, "alice")
	if events[0].EventType != models.EventComplete {
		t.Errorf("foreign skip not reclassified: %q", events[0].EventType)
	}
	sum, _ := store.LoadSummary(ctx, "alice")
	if sum.TotalSkipped != 0 {
		t.Errorf("reclassified event still counted as skip")
	}
}

func TestMergeConfigOverlayAndHistoryUnion(t *testing.T) {
	store := newFakeStore()
	e := newTestEngine(store, nil)
	ctx := context.Background()

	local := models.NewSummary()
	local.ShuffleState.Config["history_limit"] = float64(40)
	local.ShuffleState.Config["weighting"] = "recency"
	if err := store.SaveSummary(ctx, "alice", local); err != nil {
		t.Fatal(err)
	}
	if err := store.InsertEvent(ctx, "alice", models.PlayEvent{
		SessionID: "s1", SongFilename: "local.mp3", EventType: models.EventListen,
		Timestamp: 100, DurationPlayed: 60, TotalLength: 100, PlayRatio: 0.6,
	}); err != nil {
		t.Fatal(err)
	}

	foreign := models.NewSummary()
	foreign.ShuffleState.Config["history_limit"] = float64(10)
	// Foreign counters must never be accepted.
	foreign.TotalPlayTime = 99999
	foreign.TotalSongsPlayed = 999
	foreign.ShuffleState.History = []models.HistoryEntry{
		{Filename: "local.mp3", Timestamp: 5}, // conflict: local entry wins
		{Filename: "foreign.mp3", Timestamp: 400},
	}

	if _, err := e.MergeSnapshot(ctx, "alice", models.Snapshot{Summary: foreign}); err != nil {
		t.Fatal(err)
	}

	sum, _ := store.LoadSummary(ctx, "alice")
	// Shallow overlay: foreign wins per key, untouched local keys survive.
	if sum.ShuffleState.Config.HistoryLimit(50) != 10 {
		t.Errorf("foreign history_limit not applied: %v", sum.ShuffleState.Config)
	}
	if sum.ShuffleState.Config["weighting"] != "recency" {
		t.Errorf("local config key lost in overlay")
	}
	// Counters re-derived from the store, foreign values discarded.
	if sum.TotalPlayTime != 60 || sum.TotalSongsPlayed != 1 {
		t.Errorf("foreign counters leaked into summary: %+v", sum)
	}

	hist := sum.ShuffleState.History
	if len(hist) != 2 {
		t.Fatalf("history union length = %d, want 2", len(hist))
	}
	if hist[0].Filename != "foreign.mp3" {
		t.Errorf("history not sorted newest first: %+v", hist)
	}
	// The local replay produced local.mp3@100; the stale foreign entry at
	// timestamp 5 must not replace it.
	if hist[1].Filename != "local.mp3" || hist[1].Timestamp != 100 {
		t.Errorf("local history entry lost the conflict: %+v", hist[1])
	}
}

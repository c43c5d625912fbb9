// Replay - Playback History and Statistics Engine
// Copyright 2026 Replay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/replaysrv/replay

package stats

import (
	"context"
	"reflect"
	"testing"

	"github.com/replaysrv/replay/internal/models"
)

func seedRebuildStore(t *testing.T, store *fakeStore) {
	t.Helper()
	ctx := context.Background()

	events := []models.PlayEvent{
		// Stale row from before the tail rule: stored as skip, actually a
		// completion.
		{ID: "e1", SessionID: "s1", SongFilename: "a.mp3", EventType: models.EventSkip,
			Timestamp: 100, DurationPlayed: 95, TotalLength: 100, PlayRatio: 0.95},
		// A genuine early skip.
		{ID: "e2", SessionID: "s1", SongFilename: "b.mp3", EventType: models.EventSkip,
			Timestamp: 200, DurationPlayed: 10, TotalLength: 100, PlayRatio: 0.1},
		// A favorite marker.
		{ID: "e3", SessionID: "s1", SongFilename: "a.mp3", EventType: models.EventFavorite,
			Timestamp: 300, DurationPlayed: 0, TotalLength: 100, PlayRatio: 0},
	}
	for _, ev := range events {
		if err := store.InsertEvent(ctx, "alice", ev); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.InsertSessionRow(ctx, "alice", models.PlaySession{
		ID: "s1", StartTime: 100, EndTime: 300, Platform: "ios",
	}); err != nil {
		t.Fatal(err)
	}

	// A stale summary with drifted counters and user config.
	stale := models.NewSummary()
	stale.TotalPlayTime = 12345
	stale.TotalSkipped = 99
	stale.ShuffleState.Config["history_limit"] = float64(25)
	if err := store.SaveSummary(ctx, "alice", stale); err != nil {
		t.Fatal(err)
	}
}

func TestRebuildUserReclassifiesAndRecomputes(t *testing.T) {
	store := newFakeStore()
	seedRebuildStore(t, store)
	e := newTestEngine(store, nil)
	ctx := context.Background()

	res, err := e.RebuildUser(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if res.Events != 3 || res.Reclassified != 1 {
		t.Errorf("result = %+v, want 3 events, 1 reclassified", res)
	}

	events, _ := store.ListEvents(ctx, "alice")
	if events[0].EventType != models.EventComplete {
		t.Errorf("stale skip not flipped to complete: %q", events[0].EventType)
	}
	if events[1].EventType != models.EventSkip {
		t.Errorf("genuine skip wrongly flipped: %q", events[1].EventType)
	}
	if events[2].EventType != models.EventFavorite {
		t.Errorf("favorite marker touched by rebuild: %q", events[2].EventType)
	}

	sum, _ := store.LoadSummary(ctx, "alice")
	if sum.TotalPlayTime != 105 {
		t.Errorf("TotalPlayTime = %v, want 105", sum.TotalPlayTime)
	}
	if sum.TotalSongsPlayed != 1 || sum.TotalSkipped != 1 {
		t.Errorf("counters = played %d, skipped %d, want 1/1", sum.TotalSongsPlayed, sum.TotalSkipped)
	}
	if sum.TotalSessions != 1 || sum.PlatformUsage["ios"] != 1 {
		t.Errorf("session counters wrong: %+v", sum)
	}
	// User shuffle config survives; drifted counters do not.
	if sum.ShuffleState.Config.HistoryLimit(50) != 25 {
		t.Errorf("shuffle config lost in rebuild: %v", sum.ShuffleState.Config)
	}
}

func TestRebuildIsIdempotent(t *testing.T) {
	store := newFakeStore()
	seedRebuildStore(t, store)
	e := newTestEngine(store, nil)
	ctx := context.Background()

	if _, err := e.RebuildUser(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	first, _ := store.LoadSummary(ctx, "alice")
	firstEvents, _ := store.ListEvents(ctx, "alice")

	res, err := e.RebuildUser(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if res.Reclassified != 0 {
		t.Errorf("second rebuild reclassified %d events, want 0", res.Reclassified)
	}

	second, _ := store.LoadSummary(ctx, "alice")
	secondEvents, _ := store.ListEvents(ctx, "alice")
	if !reflect.DeepEqual(first, second) {
		t.Errorf("rebuild not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}
	if !reflect.DeepEqual(firstEvents, secondEvents) {
		t.Errorf("second rebuild mutated events")
	}
}

func TestRebuildMatchesLiveFlush(t *testing.T) {
	// The live incremental path and a from-scratch rebuild must agree on
	// every derived field.
	store := newFakeStore()
	e := newTestEngine(store, fixedResolver(100))
	ctx := context.Background()

	reports := []models.StatsReport{
		report("s1", "a.mp3", models.EventListen, 100, 95),
		report("s1", "b.mp3", models.EventSkip, 200, 10),
		report("s2", "c.mp3", models.EventListen, 300, 50),
	}
	for _, r := range reports {
		if err := e.Record(ctx, "alice", r); err != nil {
			t.Fatal(err)
		}
	}
	if err := e.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	live, _ := store.LoadSummary(ctx, "alice")

	if _, err := e.RebuildUser(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	rebuilt, _ := store.LoadSummary(ctx, "alice")

	if !reflect.DeepEqual(live, rebuilt) {
		t.Errorf("live flush and rebuild disagree:\nlive:    %+v\nrebuilt: %+v", live, rebuilt)
	}
}

func TestRebuildAll(t *testing.T) {
	store := newFakeStore()
	e := newTestEngine(store, fixedResolver(100))
	ctx := context.Background()

	for _, user := range []string{"alice", "bob"} {
		if err := e.Record(ctx, user, report("s-"+user, "a.mp3", models.EventListen, 100, 50)); err != nil {
			t.Fatal(err)
		}
	}
	if err := e.Flush(ctx); err != nil {
		t.Fatal(err)
	}

	results, err := e.RebuildAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 rebuild results, got %d", len(results))
	}
	for _, res := range results {
		if res.Events != 1 {
			t.Errorf("user %s: events = %d, want 1", res.Username, res.Events)
		}
	}
}

// Replay - Playback History and Statistics Engine
// Copyright 2026 Replay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/replaysrv/replay

package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/replaysrv/replay/internal/config"
	"github.com/replaysrv/replay/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(config.DatabaseConfig{
		Path:      filepath.Join(t.TempDir(), "replay.duckdb"),
		MaxMemory: "256MB",
		Threads:   2,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestUpsertSessionCreateAndWiden(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.UpsertSession(ctx, "alice", "s1", 100, "unknown"); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertSession(ctx, "alice", "s1", 50, "ios"); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertSession(ctx, "alice", "s1", 200, "android"); err != nil {
		t.Fatal(err)
	}

	sessions, err := db.ListSessions(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	s := sessions[0]
	if s.StartTime != 50 || s.EndTime != 200 {
		t.Errorf("session bounds = [%v, %v], want [50, 200]", s.StartTime, s.EndTime)
	}
	// First non-unknown platform wins; later values never overwrite it.
	if s.Platform != "ios" {
		t.Errorf("platform = %q, want ios", s.Platform)
	}
}

func TestSessionExists(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	exists, err := db.SessionExists(ctx, "alice", "s1")
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Error("session should not exist yet")
	}

	if err := db.UpsertSession(ctx, "alice", "s1", 1, "web"); err != nil {
		t.Fatal(err)
	}
	exists, err = db.SessionExists(ctx, "alice", "s1")
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Error("session should exist")
	}

	// Other users never see it.
	exists, err = db.SessionExists(ctx, "bob", "s1")
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Error("per-user isolation violated")
	}
}

func TestInsertAndListEvents(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	fg := 90.0
	events := []models.PlayEvent{
		{SessionID: "s1", SongFilename: "b.mp3", EventType: "listen", Timestamp: 200, DurationPlayed: 30, TotalLength: 100, PlayRatio: 0.3},
		{SessionID: "s1", SongFilename: "a.mp3", EventType: "complete", Timestamp: 100, DurationPlayed: 95, TotalLength: 100, PlayRatio: 0.95, ForegroundDuration: &fg},
	}
	for _, ev := range events {
		if err := db.InsertEvent(ctx, "alice", ev); err != nil {
			t.Fatal(err)
		}
	}

	got, err := db.ListEvents(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	// Store order is timestamp ascending.
	if got[0].SongFilename != "a.mp3" || got[1].SongFilename != "b.mp3" {
		t.Errorf("events out of store order: %v, %v", got[0].SongFilename, got[1].SongFilename)
	}
	if got[0].ForegroundDuration == nil || *got[0].ForegroundDuration != 90.0 {
		t.Error("foreground duration not round-tripped")
	}
	if got[1].ForegroundDuration != nil {
		t.Error("absent foreground duration became non-nil")
	}
}

func TestEventExists(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	ev := models.PlayEvent{SessionID: "s1", SongFilename: "a.mp3", EventType: "listen",
		Timestamp: 123.45, DurationPlayed: 10, TotalLength: 100, PlayRatio: 0.1}
	if err := db.InsertEvent(ctx, "alice", ev); err != nil {
		t.Fatal(err)
	}

	exists, err := db.EventExists(ctx, "alice", 123.45, "a.mp3")
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Error("expected dedup key hit")
	}

	exists, err = db.EventExists(ctx, "alice", 123.45, "b.mp3")
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Error("different filename must not match dedup key")
	}
}

func TestUpdateEventType(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	ev := models.PlayEvent{ID: "ev1", SessionID: "s1", SongFilename: "a.mp3",
		EventType: "skip", Timestamp: 1, DurationPlayed: 95, TotalLength: 100, PlayRatio: 0.95}
	if err := db.InsertEvent(ctx, "alice", ev); err != nil {
		t.Fatal(err)
	}

	if err := db.UpdateEventType(ctx, "alice", "ev1", "complete", 0.95); err != nil {
		t.Fatal(err)
	}
	got, err := db.ListEvents(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if got[0].EventType != "complete" {
		t.Errorf("event type = %q, want complete", got[0].EventType)
	}

	if err := db.UpdateEventType(ctx, "alice", "missing", "skip", 0); err == nil {
		t.Error("expected error for unknown event id")
	}
}

func TestSummaryRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	s, err := db.LoadSummary(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if s != nil {
		t.Fatal("expected nil summary before first save")
	}

	s = models.NewSummary()
	s.TotalPlayTime = 120.5
	s.PlatformUsage["ios"] = 3
	s.ShuffleState.Config["history_limit"] = 25
	s.ShuffleState.History = []models.HistoryEntry{{Filename: "a.mp3", Timestamp: 9}}

	if err := db.SaveSummary(ctx, "alice", s); err != nil {
		t.Fatal(err)
	}
	got, err := db.LoadSummary(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("summary not persisted")
	}
	if got.TotalPlayTime != 120.5 || got.PlatformUsage["ios"] != 3 {
		t.Errorf("summary counters lost: %+v", got)
	}
	if got.ShuffleState.Config.HistoryLimit(50) != 25 {
		t.Error("shuffle config lost on round trip")
	}
	if len(got.ShuffleState.History) != 1 || got.ShuffleState.History[0].Filename != "a.mp3" {
		t.Error("history lost on round trip")
	}

	// Saving again replaces, not duplicates.
	s.TotalPlayTime = 200
	if err := db.SaveSummary(ctx, "alice", s); err != nil {
		t.Fatal(err)
	}
	got, err = db.LoadSummary(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalPlayTime != 200 {
		t.Errorf("summary not replaced on save: %v", got.TotalPlayTime)
	}
}

func TestUsers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.UpsertSession(ctx, "bob", "s1", 1, "web"); err != nil {
		t.Fatal(err)
	}
	if err := db.InsertEvent(ctx, "alice", models.PlayEvent{
		SessionID: "s2", SongFilename: "a.mp3", EventType: "listen",
		Timestamp: 1, DurationPlayed: 10, TotalLength: 100, PlayRatio: 0.1,
	}); err != nil {
		t.Fatal(err)
	}

	users, err := db.Users(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 2 || users[0] != "alice" || users[1] != "bob" {
		t.Errorf("Users() = %v, want [alice bob]", users)
	}
}

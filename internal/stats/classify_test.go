// Replay - Playback History and Statistics Engine
// Copyright 2026 Replay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/replaysrv/replay

package stats

import (
	"testing"

	"github.com/replaysrv/replay/internal/models"
)

func TestReclassify(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
		duration  float64
		total     float64
		wantType  string
		wantRatio float64
	}{
		{
			name:      "skip near track end becomes complete",
			eventType: models.EventSkip,
			duration:  95, total: 100,
			wantType: models.EventComplete, wantRatio: 0.95,
		},
		{
			name:      "skip outside tail window stays skip",
			eventType: models.EventSkip,
			duration:  89.9, total: 100,
			wantType: models.EventSkip, wantRatio: 0.9,
		},
		{
			name:      "listen exactly at window boundary becomes complete",
			eventType: models.EventListen,
			duration:  90, total: 100,
			wantType: models.EventComplete, wantRatio: 0.9,
		},
		{
			name:      "overshoot past track length is complete",
			eventType: models.EventListen,
			duration:  105, total: 100,
			wantType: models.EventComplete, wantRatio: 1.05,
		},
		{
			name:      "unresolved length degrades ratio to zero",
			eventType: models.EventListen,
			duration:  50, total: 0,
			wantType: models.EventListen, wantRatio: 0,
		},
		{
			name:      "favorite marker is never reclassified",
			eventType: models.EventFavorite,
			duration:  0, total: 8,
			wantType: models.EventFavorite, wantRatio: 0,
		},
		{
			name:      "client-reported complete is preserved",
			eventType: models.EventComplete,
			duration:  30, total: 100,
			wantType: models.EventComplete, wantRatio: 0.3,
		},
		{
			name:      "ratio rounds to two decimals",
			eventType: models.EventListen,
			duration:  33.333, total: 100,
			wantType: models.EventListen, wantRatio: 0.33,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotType, gotRatio := Reclassify(tt.eventType, tt.duration, tt.total, 10.0)
			if gotType != tt.wantType {
				t.Errorf("type = %q, want %q", gotType, tt.wantType)
			}
			if gotRatio != tt.wantRatio {
				t.Errorf("ratio = %v, want %v", gotRatio, tt.wantRatio)
			}
		})
	}
}

// Replay - Playback History and Statistics Engine
// Copyright 2026 Replay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/replaysrv/replay

package services

import (
	"context"
	"time"

	"github.com/replaysrv/replay/internal/logging"
)

// Flusher is the slice of the stats engine the periodic flusher drives.
type Flusher interface {
	Flush(ctx context.Context) error
	LastFlush() time.Time
}

// FlushService runs a flush cycle whenever the configured interval has
// elapsed since the last successful full flush: an explicit flush-all pushes
// the next periodic one out.
type FlushService struct {
	engine   Flusher
	interval time.Duration
}

// NewFlushService wraps the engine's flush loop for supervision.
func NewFlushService(engine Flusher, interval time.Duration) *FlushService {
	if interval <= 0 {
		interval = 300 * time.Second
	}
	return &FlushService{engine: engine, interval: interval}
}

// Serve implements suture.Service.
func (s *FlushService) Serve(ctx context.Context) error {
	for {
		wait := time.Until(s.engine.LastFlush().Add(s.interval))
		if wait <= 0 {
			if err := s.engine.Flush(ctx); err != nil {
				logging.Warn().Err(err).Msg("Periodic flush cycle failed")
				// LastFlush did not advance; back off a full interval
				// instead of spinning on a broken store.
				wait = s.interval
			} else {
				continue
			}
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// String names the service for supervisor logs.
func (s *FlushService) String() string {
	return "periodic-flusher"
}

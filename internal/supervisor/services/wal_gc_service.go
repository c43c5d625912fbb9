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

// Compactor is the slice of the report log the GC service drives.
type Compactor interface {
	RunGC() error
}

// WALGCService periodically compacts the report log. Confirmed entries are
// deleted at flush time but their value-log space is only reclaimed by GC.
type WALGCService struct {
	log      Compactor
	interval time.Duration
}

// NewWALGCService wraps the report log's GC loop for supervision.
func NewWALGCService(log Compactor, interval time.Duration) *WALGCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &WALGCService{log: log, interval: interval}
}

// Serve implements suture.Service.
func (s *WALGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.log.RunGC(); err != nil {
				logging.Warn().Err(err).Msg("Report log compaction failed")
			}
		}
	}
}

// String names the service for supervisor logs.
func (s *WALGCService) String() string {
	return "wal-compactor"
}

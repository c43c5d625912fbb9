// Replay - Playback History and Statistics Engine
// Copyright 2026 Replay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/replaysrv/replay

// Package wal is the optional durable log for buffered reports. The engine
// buffers accepted reports in memory and persists them only at flush time;
// by default a crash loses whatever was buffered. With the log enabled every
// accepted report is appended here first and deleted once its flush cycle
// commits, so startup can replay what a crash stranded.
package wal

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/replaysrv/replay/internal/config"
	"github.com/replaysrv/replay/internal/logging"
	"github.com/replaysrv/replay/internal/models"
)

// PendingReport is one logged report not yet confirmed by a flush cycle.
type PendingReport struct {
	ID       string             `json:"-"`
	Username string             `json:"username"`
	Report   models.StatsReport `json:"report"`
}

// Log is a Badger-backed append/confirm log. Keys are zero-padded
// timestamps, so iteration order is arrival order and replay preserves it.
type Log struct {
	db  *badger.DB
	seq atomic.Uint64
}

// Open opens (or creates) the log directory.
func Open(cfg config.WALConfig) (*Log, error) {
	opts := badger.DefaultOptions(cfg.Dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open report log: %w", err)
	}
	return &Log{db: db}, nil
}

// Append durably records one accepted report and returns its entry id.
func (l *Log) Append(username string, rep models.StatsReport) (string, error) {
	entry := PendingReport{Username: username, Report: rep}
	value, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("failed to encode log entry: %w", err)
	}

	// Nanosecond timestamp plus a process-local sequence keeps keys unique
	// and ordered even within one tick.
	id := fmt.Sprintf("%020d-%06d", time.Now().UnixNano(), l.seq.Add(1))
	err = l.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(id), value)
	})
	if err != nil {
		return "", fmt.Errorf("failed to append log entry: %w", err)
	}
	return id, nil
}

// Confirm deletes entries whose reports a flush cycle has persisted.
func (l *Log) Confirm(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	err := l.db.Update(func(txn *badger.Txn) error {
		for _, id := range ids {
			if err := txn.Delete([]byte(id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to confirm log entries: %w", err)
	}
	return nil
}

// Pending returns all unconfirmed entries in arrival order. Called once at
// startup to re-buffer what a crash stranded; entries stay in the log until
// their replacement flush cycle confirms them.
func (l *Log) Pending() ([]PendingReport, error) {
	var pending []PendingReport
	err := l.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			id := string(item.Key())
			err := item.Value(func(value []byte) error {
				var entry PendingReport
				if err := json.Unmarshal(value, &entry); err != nil {
					// A corrupt entry is logged and skipped, never fatal:
					// losing one report beats refusing to start.
					logging.Warn().Str("entry_id", id).Msg("Skipping corrupt report log entry")
					return nil
				}
				entry.ID = id
				pending = append(pending, entry)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan report log: %w", err)
	}
	return pending, nil
}

// RunGC reclaims value-log space left behind by confirmed entries. Badger
// reports ErrNoRewrite when there is nothing worth rewriting; that is the
// steady state, not a failure.
func (l *Log) RunGC() error {
	err := l.db.RunValueLogGC(0.5)
	if err != nil && err != badger.ErrNoRewrite {
		return fmt.Errorf("report log gc failed: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying store.
func (l *Log) Close() error {
	if err := l.db.Close(); err != nil {
		return fmt.Errorf("failed to close report log: %w", err)
	}
	return nil
}

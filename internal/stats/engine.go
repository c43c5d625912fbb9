// Replay - Playback History and Statistics Engine
// Copyright 2026 Replay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/replaysrv/replay

package stats

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/replaysrv/replay/internal/config"
	"github.com/replaysrv/replay/internal/logging"
	"github.com/replaysrv/replay/internal/metadata"
	"github.com/replaysrv/replay/internal/metrics"
	"github.com/replaysrv/replay/internal/models"
)

// Engine owns the full play-event pipeline for every user: buffering,
// flushing, snapshot merging and rebuilds. One instance per process.
//
// Flush, merge and rebuild all serialize on one mutex, so at most one
// persistence cycle runs at a time; Record only touches the buffer registry
// and never waits on persistence.
type Engine struct {
	cfg      config.StatsConfig
	store    Store
	resolver metadata.Resolver
	registry *Registry
	notifier Notifier
	log      ReportLog

	flushMu sync.Mutex

	lastMu    sync.Mutex
	lastFlush time.Time
}

// NewEngine wires the pipeline. notifier and log may be nil to disable the
// notification sink and the durable buffer log; resolver may be nil when no
// metadata service is configured (every track length resolves to 0).
func NewEngine(cfg config.StatsConfig, store Store, resolver metadata.Resolver,
	registry *Registry, notifier Notifier, log ReportLog) *Engine {
	if registry == nil {
		registry = NewRegistry()
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Engine{
		cfg:       cfg,
		store:     store,
		resolver:  resolver,
		registry:  registry,
		notifier:  notifier,
		log:       log,
		lastFlush: time.Now(),
	}
}

// Record validates one client report and appends it to the user's buffer.
// Nothing is persisted until the next flush cycle. When a durable log is
// configured the report is appended there first, so an accepted report
// survives a crash.
func (e *Engine) Record(ctx context.Context, username string, rep models.StatsReport) error {
	if err := validateReport(username, rep); err != nil {
		metrics.EventsRejected.Inc()
		return err
	}

	br := bufferedReport{Report: rep}
	if e.log != nil {
		id, err := e.log.Append(username, rep)
		if err != nil {
			return fmt.Errorf("failed to log report: %w", err)
		}
		br.LogID = id
	}

	e.registry.Append(username, br)
	metrics.EventsBuffered.Inc()
	metrics.BufferDepth.Set(float64(e.registry.Depth()))

	logging.Debug().
		Str("username", username).
		Str("song", rep.SongFilename).
		Str("event_type", rep.EventType).
		Float64("duration", rep.DurationPlayed).
		Msg("Report buffered")
	return nil
}

func validateReport(username string, rep models.StatsReport) error {
	switch {
	case username == "":
		return fmt.Errorf("%w: missing username", ErrInvalidReport)
	case rep.SessionID == "":
		return fmt.Errorf("%w: missing session_id", ErrInvalidReport)
	case rep.SongFilename == "":
		return fmt.Errorf("%w: missing song_filename", ErrInvalidReport)
	case rep.Timestamp <= 0:
		return fmt.Errorf("%w: timestamp must be positive", ErrInvalidReport)
	case rep.DurationPlayed < 0:
		return fmt.Errorf("%w: negative duration_played", ErrInvalidReport)
	}

	switch rep.EventType {
	case models.EventListen, models.EventSkip, models.EventComplete:
		// Zero-duration playback reports carry no information and are the
		// most common client bug; refuse them outright.
		if rep.DurationPlayed == 0 {
			return fmt.Errorf("%w: zero duration_played for %s event", ErrInvalidReport, rep.EventType)
		}
	case models.EventFavorite:
		// Favorite markers are moment-in-time toggles; zero duration is the
		// normal case.
	default:
		return fmt.Errorf("%w: unknown event_type %q", ErrInvalidReport, rep.EventType)
	}
	return nil
}

// Restore re-buffers a report recovered from the durable log at startup,
// keeping its original log entry id so the next flush confirms it. Recovered
// reports skip validation: they already passed it when first accepted.
func (e *Engine) Restore(username string, rep models.StatsReport, logID string) {
	e.registry.Append(username, bufferedReport{Report: rep, LogID: logID})
	metrics.BufferDepth.Set(float64(e.registry.Depth()))
}

// Flush drains every user's buffer and persists the drained batches. One
// user's failure never blocks the others; the joined error reports every
// failed user. A failed batch is dropped for this cycle (the durable log,
// when enabled, retains it for crash recovery).
func (e *Engine) Flush(ctx context.Context) error {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	start := time.Now()
	drained := e.registry.DrainAll()
	metrics.BufferDepth.Set(float64(e.registry.Depth()))
	if len(drained) == 0 {
		e.setLastFlush(time.Now())
		metrics.FlushCycles.WithLabelValues("success").Inc()
		return nil
	}

	users := make([]string, 0, len(drained))
	for u := range drained {
		users = append(users, u)
	}
	sort.Strings(users)

	var errs []error
	for _, user := range users {
		if err := e.flushBatch(ctx, user, drained[user]); err != nil {
			logging.Error().Err(err).Str("username", user).Msg("Flush failed for user, batch dropped")
			e.notifier.LogLine(fmt.Sprintf("flush failed for %s: %v", user, err))
			errs = append(errs, fmt.Errorf("user %s: %w", user, err))
		}
	}

	metrics.FlushDuration.Observe(time.Since(start).Seconds())
	if len(errs) > 0 {
		metrics.FlushCycles.WithLabelValues("error").Inc()
		return fmt.Errorf("flush cycle: %w", errors.Join(errs...))
	}
	e.setLastFlush(time.Now())
	metrics.FlushCycles.WithLabelValues("success").Inc()
	return nil
}

// FlushUser drains and persists a single user's buffer.
func (e *Engine) FlushUser(ctx context.Context, username string) error {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	batch := e.registry.Drain(username)
	metrics.BufferDepth.Set(float64(e.registry.Depth()))
	if len(batch) == 0 {
		return nil
	}
	if err := e.flushBatch(ctx, username, batch); err != nil {
		return fmt.Errorf("flush user %s: %w", username, err)
	}
	return nil
}

// flushBatch persists one drained batch: coalesce, classify, write rows,
// fold into the summary, save. Caller holds flushMu.
func (e *Engine) flushBatch(ctx context.Context, username string, batch []bufferedReport) error {
	logical := coalesce(batch)
	if len(logical) == 0 {
		return nil
	}

	sum, err := e.store.LoadSummary(ctx, username)
	if err != nil {
		return err
	}
	if sum == nil {
		sum = models.NewSummary()
	}
	limit := sum.ShuffleState.Config.HistoryLimit(e.cfg.HistoryLimit)

	// Sessions first seen in this batch are counted after the walk, with the
	// platform their stored row ends up carrying: a later report in the batch
	// may name the platform an earlier one omitted.
	newSessions := make(map[string]string)

	for _, rep := range logical {
		total := 0.0
		if e.resolver != nil {
			total = e.resolver.ResolveDuration(ctx, rep.SongFilename)
		}
		eventType, ratio := Reclassify(rep.EventType, rep.DurationPlayed, total, e.cfg.TailWindow)

		ev := models.PlayEvent{
			SessionID:          rep.SessionID,
			SongFilename:       rep.SongFilename,
			EventType:          eventType,
			Timestamp:          round2(rep.Timestamp),
			DurationPlayed:     round2(rep.DurationPlayed),
			TotalLength:        round2(total),
			PlayRatio:          ratio,
			ForegroundDuration: round2p(rep.ForegroundDuration),
			BackgroundDuration: round2p(rep.BackgroundDuration),
		}

		seen, err := e.store.SessionExists(ctx, username, rep.SessionID)
		if err != nil {
			return err
		}
		if err := e.store.UpsertSession(ctx, username, rep.SessionID, ev.Timestamp, rep.Platform); err != nil {
			return err
		}
		if err := e.store.InsertEvent(ctx, username, ev); err != nil {
			return err
		}

		if !seen {
			newSessions[rep.SessionID] = rep.Platform
		} else if p, ok := newSessions[rep.SessionID]; ok && p == "" && rep.Platform != "" {
			newSessions[rep.SessionID] = rep.Platform
		}
		applyEvent(sum, ev, limit)
		metrics.EventsPersisted.Inc()
	}

	for _, platform := range newSessions {
		applySession(sum, platform)
	}

	if err := e.store.SaveSummary(ctx, username, sum); err != nil {
		return err
	}

	if e.log != nil {
		ids := make([]string, 0, len(batch))
		for _, br := range batch {
			if br.LogID != "" {
				ids = append(ids, br.LogID)
			}
		}
		if err := e.log.Confirm(ids); err != nil {
			// The rows are persisted; a stale log entry only risks duplicate
			// replay after a crash. Log and move on.
			logging.Warn().Err(err).Str("username", username).Msg("Failed to confirm report log entries")
		}
	}

	e.notifier.LogLine(fmt.Sprintf("flushed %d events for %s", len(logical), username))
	logging.Info().
		Str("username", username).
		Int("reports", len(batch)).
		Int("events", len(logical)).
		Msg("Flushed user batch")
	return nil
}

// Summary drains the caller's buffer and returns their summary, so a read
// always reflects every report this user submitted before it. Other users'
// buffers wait for the periodic flusher and their storage failures stay out
// of this user's read. A user with no stored history gets an empty summary,
// not an error. The returned summary is the caller's own copy.
func (e *Engine) Summary(ctx context.Context, username string) (*models.Summary, error) {
	if err := e.FlushUser(ctx, username); err != nil {
		return nil, fmt.Errorf("flush before summary read: %w", err)
	}
	sum, err := e.store.LoadSummary(ctx, username)
	if err != nil {
		return nil, err
	}
	if sum == nil {
		return models.NewSummary(), nil
	}
	return sum.Clone(), nil
}

// BufferDepth reports how many reports are waiting for the next flush.
func (e *Engine) BufferDepth() int {
	return e.registry.Depth()
}

// LastFlush returns when the last fully successful flush cycle completed.
// The periodic flusher schedules off this, so an explicit flush pushes the
// next periodic one out.
func (e *Engine) LastFlush() time.Time {
	e.lastMu.Lock()
	defer e.lastMu.Unlock()
	return e.lastFlush
}

func (e *Engine) setLastFlush(t time.Time) {
	e.lastMu.Lock()
	e.lastFlush = t
	e.lastMu.Unlock()
}

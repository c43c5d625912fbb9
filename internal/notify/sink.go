// Replay - Playback History and Statistics Engine
// Copyright 2026 Replay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/replaysrv/replay

// Package notify posts free-text engine log lines to a configured webhook.
// The sink is strictly best-effort: a full queue or an exceeded rate drops
// the line, and delivery failures are swallowed. Nothing in the pipeline
// ever waits on it.
package notify

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/replaysrv/replay/internal/config"
	"github.com/replaysrv/replay/internal/logging"
	"github.com/replaysrv/replay/internal/metrics"
)

// Sink buffers lines on a bounded channel and posts them from its Serve
// loop. Implements the engine's Notifier and runs under the supervisor.
type Sink struct {
	url     string
	client  *http.Client
	queue   chan string
	limiter *rate.Limiter
}

// New builds a sink from config. The caller should not construct one when
// the webhook URL is empty; nothing would ever be delivered.
func New(cfg config.NotifyConfig) *Sink {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Sink{
		url:     cfg.WebhookURL,
		client:  &http.Client{Timeout: timeout},
		queue:   make(chan string, queueSize),
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

// LogLine enqueues one line for delivery. Never blocks; when the queue is
// full the line is dropped and counted.
func (s *Sink) LogLine(line string) {
	select {
	case s.queue <- line:
	default:
		metrics.NotifyDropped.Inc()
	}
}

// Serve drains the queue until the context is cancelled. Lines arriving
// faster than the configured rate are dropped, not queued behind the
// limiter: stale notifications are worthless.
func (s *Sink) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line := <-s.queue:
			if !s.limiter.Allow() {
				metrics.NotifyDropped.Inc()
				continue
			}
			s.post(ctx, line)
		}
	}
}

func (s *Sink) post(ctx context.Context, line string) {
	body, err := json.Marshal(map[string]string{"content": line})
	if err != nil {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		logging.Debug().Err(err).Msg("Notification delivery failed")
		return
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 400 {
		logging.Debug().Int("status", resp.StatusCode).Msg("Notification rejected by webhook")
	}
}

// String names the service for supervisor logs.
func (s *Sink) String() string {
	return "notify-sink"
}

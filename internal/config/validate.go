// Replay - Playback History and Statistics Engine
// Copyright 2026 Replay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/replaysrv/replay

package config

import (
	"fmt"
	"net/url"
)

// Validate checks the configuration for values that cannot work at runtime.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Stats.FlushInterval <= 0 {
		return fmt.Errorf("stats.flush_interval must be positive, got %s", c.Stats.FlushInterval)
	}
	if c.Stats.TailWindow < 0 {
		return fmt.Errorf("stats.tail_window must not be negative, got %f", c.Stats.TailWindow)
	}
	if c.Stats.HistoryLimit <= 0 {
		return fmt.Errorf("stats.history_limit must be positive, got %d", c.Stats.HistoryLimit)
	}
	if c.Metadata.BaseURL != "" {
		if _, err := url.ParseRequestURI(c.Metadata.BaseURL); err != nil {
			return fmt.Errorf("metadata.base_url is not a valid URL: %w", err)
		}
	}
	if c.Notify.WebhookURL != "" {
		if _, err := url.ParseRequestURI(c.Notify.WebhookURL); err != nil {
			return fmt.Errorf("notify.webhook_url is not a valid URL: %w", err)
		}
	}
	if c.WAL.Enabled && c.WAL.Dir == "" {
		return fmt.Errorf("wal.dir must be set when wal.enabled is true")
	}
	return nil
}

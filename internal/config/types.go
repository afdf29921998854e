// Package config loads and watches the bot configuration. JSON and YAML are
// both accepted; YAML is coerced to JSON so one strict decoder covers both
// formats and unknown keys are caught early.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

type Config struct {
	Telegram   TelegramConfig   `json:"telegram"`
	Logging    LoggingConfig    `json:"logging"`
	Owner      OwnerConfig      `json:"owner"`
	Storage    StorageConfig    `json:"storage"`
	Sessions   SessionsConfig   `json:"sessions,omitempty"`
	Media      MediaConfig      `json:"media,omitempty"`
	Dispatcher DispatcherConfig `json:"dispatcher,omitempty"`
}

type TelegramConfig struct {
	// Token may be omitted; BOT_TOKEN from the environment is used then.
	Token string `json:"token,omitempty"`
	// PollTimeout is a Go duration string (e.g. "10s").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

// OwnerConfig names the single principal allowed on the admin surface.
type OwnerConfig struct {
	UserID int64 `json:"user_id"`
	// Contact is shown to principals waiting for approval (e.g. "@admin").
	Contact string `json:"contact,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type StorageConfig struct {
	Path string `json:"path"`
	// BusyTimeout is a Go duration string (sqlite busy handler).
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type SessionsConfig struct {
	Dir string `json:"dir,omitempty"`
}

type MediaConfig struct {
	Dir string `json:"dir,omitempty"`
}

// DispatcherConfig tunes delivery. Enabled is a pointer so an omitted field
// defaults to true while an explicit false still turns the loop off.
type DispatcherConfig struct {
	Enabled     *bool  `json:"enabled,omitempty"`
	RatePerSec  int    `json:"rate_per_sec,omitempty"`
	MaxAttempts int    `json:"max_attempts,omitempty"`
	RetryDelay  string `json:"retry_delay,omitempty"` // Go duration string
}

func (d DispatcherConfig) IsEnabled() bool {
	return d.Enabled == nil || *d.Enabled
}

// applyDefaults fills fields the operator may omit.
func (c *Config) applyDefaults() {
	if c.Telegram.Token == "" {
		c.Telegram.Token = os.Getenv("BOT_TOKEN")
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "./data/mailerbot.db"
	}
	if c.Sessions.Dir == "" {
		c.Sessions.Dir = "./data/sessions"
	}
	if c.Media.Dir == "" {
		c.Media.Dir = "./data/media"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate rejects configs the app cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token (or BOT_TOKEN) is required")
	}
	if c.Owner.UserID == 0 {
		return errors.New("owner.user_id is required")
	}
	if _, err := ParseDurationField("telegram.poll_timeout", c.Telegram.PollTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("dispatcher.retry_delay", c.Dispatcher.RetryDelay); err != nil {
		return err
	}
	if c.Dispatcher.RatePerSec < 0 {
		return errors.New("dispatcher.rate_per_sec must be >= 0")
	}
	if c.Dispatcher.MaxAttempts < 0 {
		return errors.New("dispatcher.max_attempts must be >= 0")
	}
	return nil
}

func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}

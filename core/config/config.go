// Package config holds the configuration shared by every bot built on core:
// Telegram transport, webhook, logging and rate limiting. Applications embed
// Config inline and load it together with their own sections.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Run modes for receiving updates.
const (
	RunModeWebhook  = "webhook"
	RunModeLongpoll = "longpoll"
)

// Update kinds accepted by rate_limit.exclude_updates.
const (
	UpdateCallback    = "callback"
	UpdateMessage     = "message"
	UpdateInlineQuery = "inline_query"
)

// DefaultPollTimeout applies when telegram.longpoll_timeout_seconds is 0.
const DefaultPollTimeout = 10 * time.Second

// TelegramConfig holds the bot token and how updates are received.
type TelegramConfig struct {
	Token string `yaml:"token" envconfig:"BOT_TOKEN"`
	// AdminID is the Telegram user allowed to run admin commands; 0 disables them.
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`

	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig is used when RunMode is webhook.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	ErrorsFile  string `yaml:"errors_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

// RateLimitConfig throttles updates per user. IntervalMS 0 disables it.
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the configuration that belongs to the reusable core.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// PollTimeout is the long polling timeout.
func (c *Config) PollTimeout() time.Duration {
	if c.Telegram.LongPollTimeoutSeconds <= 0 {
		return DefaultPollTimeout
	}
	return time.Duration(c.Telegram.LongPollTimeoutSeconds) * time.Second
}

// WebhookListen is the host:port the webhook server binds to.
func (c *Config) WebhookListen() string {
	return fmt.Sprintf("%s:%d", c.Webhook.Listen, c.Webhook.Port)
}

// RateLimitInterval is the minimum gap between updates of one user.
func (c *Config) RateLimitInterval() time.Duration {
	return time.Duration(c.RateLimit.IntervalMS) * time.Millisecond
}

// ExcludedUpdates returns rate_limit.exclude_updates as a set.
func (c *Config) ExcludedUpdates() map[string]struct{} {
	set := make(map[string]struct{}, len(c.RateLimit.ExcludeUpdates))
	for _, u := range c.RateLimit.ExcludeUpdates {
		set[u] = struct{}{}
	}
	return set
}

// Normalize validates cfg in place: it trims and lower-cases enumerations and
// fills defaults. Run it once after loading.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	for _, step := range []func(*Config) error{normalizeTelegram, normalizeRateLimit, normalizeLogging} {
		if err := step(cfg); err != nil {
			return err
		}
	}
	return nil
}

func normalizeTelegram(cfg *Config) error {
	cfg.Telegram.Token = strings.TrimSpace(cfg.Telegram.Token)
	if cfg.Telegram.Token == "" {
		return errors.New("telegram token is required")
	}
	if cfg.Telegram.AdminID < 0 {
		return fmt.Errorf("telegram.admin_id must be a user id, got %d", cfg.Telegram.AdminID)
	}
	if cfg.Telegram.LongPollTimeoutSeconds < 0 {
		return errors.New("telegram.longpoll_timeout_seconds must be >= 0")
	}

	switch rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode)); rm {
	case "", "polling", RunModeLongpoll:
		cfg.Telegram.RunMode = RunModeLongpoll
	case RunModeWebhook:
		cfg.Telegram.RunMode = RunModeWebhook
		switch {
		case strings.TrimSpace(cfg.Webhook.URL) == "":
			return errors.New("webhook.url is required when telegram.run_mode is 'webhook'")
		case strings.TrimSpace(cfg.Webhook.Listen) == "":
			return errors.New("webhook.listen is required when telegram.run_mode is 'webhook'")
		case cfg.Webhook.Port <= 0:
			return errors.New("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	return nil
}

func normalizeRateLimit(cfg *Config) error {
	if cfg.RateLimit.IntervalMS < 0 {
		return errors.New("rate_limit.interval_ms must be >= 0")
	}
	kept := cfg.RateLimit.ExcludeUpdates[:0]
	for _, v := range cfg.RateLimit.ExcludeUpdates {
		switch key := strings.ToLower(strings.TrimSpace(v)); key {
		case "":
		case UpdateCallback, UpdateMessage, UpdateInlineQuery:
			kept = append(kept, key)
		default:
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message, inline_query", v)
		}
	}
	cfg.RateLimit.ExcludeUpdates = kept
	return nil
}

func normalizeLogging(cfg *Config) error {
	switch lvl := strings.ToLower(strings.TrimSpace(cfg.Logging.Level)); lvl {
	case "", "debug", "info", "warn", "warning", "error":
		cfg.Logging.Level = lvl
	default:
		return fmt.Errorf("invalid logging.level %q; allowed: debug, info, warn, error", cfg.Logging.Level)
	}
	switch f := strings.ToLower(strings.TrimSpace(cfg.Logging.Format)); f {
	case "", "json", "kv", "text", "pretty":
		cfg.Logging.Format = f
	default:
		return fmt.Errorf("invalid logging.format %q; allowed: json, kv", cfg.Logging.Format)
	}
	return nil
}

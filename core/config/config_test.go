package config

import (
	"strings"
	"testing"
	"time"
)

func valid() Config {
	return Config{Telegram: TelegramConfig{Token: " 123:abc "}}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := valid()
	cfg.RateLimit.ExcludeUpdates = []string{" Callback "}
	cfg.Logging.Level = "INFO"
	if err := Normalize(&cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run mode = %q", cfg.Telegram.RunMode)
	}
	if cfg.RateLimit.ExcludeUpdates[0] != UpdateCallback || cfg.Logging.Level != "info" {
		t.Fatalf("normalized = %+v %+v", cfg.RateLimit, cfg.Logging)
	}
}

func TestNormalizePollingAlias(t *testing.T) {
	cfg := valid()
	cfg.Telegram.RunMode = "Polling"
	if err := Normalize(&cfg); err != nil || cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run mode = %q, err %v", cfg.Telegram.RunMode, err)
	}
}

func TestNormalizeRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"token is required":     func(c *Config) { c.Telegram.Token = "  " },
		"admin_id":              func(c *Config) { c.Telegram.AdminID = -5 },
		"webhook.url":           func(c *Config) { c.Telegram.RunMode = RunModeWebhook },
		"invalid telegram":      func(c *Config) { c.Telegram.RunMode = "push" },
		"interval_ms":           func(c *Config) { c.RateLimit.IntervalMS = -1 },
		"exclude_updates":       func(c *Config) { c.RateLimit.ExcludeUpdates = []string{"poll"} },
		"invalid logging.level": func(c *Config) { c.Logging.Level = "verbose" },
		"logging.format":        func(c *Config) { c.Logging.Format = "xml" },
	}
	for want, mutate := range cases {
		cfg := valid()
		mutate(&cfg)
		err := Normalize(&cfg)
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Fatalf("%s: err = %v", want, err)
		}
	}
}

func TestAccessors(t *testing.T) {
	cfg := valid()
	cfg.RateLimit.IntervalMS = 250
	cfg.RateLimit.ExcludeUpdates = []string{"", "MESSAGE"}
	cfg.Webhook = WebhookConfig{Listen: "0.0.0.0", Port: 8443}
	if err := Normalize(&cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.PollTimeout() != DefaultPollTimeout {
		t.Fatalf("poll timeout = %v", cfg.PollTimeout())
	}
	cfg.Telegram.LongPollTimeoutSeconds = 25
	if cfg.PollTimeout() != 25*time.Second {
		t.Fatalf("poll timeout = %v", cfg.PollTimeout())
	}
	if cfg.RateLimitInterval() != 250*time.Millisecond {
		t.Fatalf("interval = %v", cfg.RateLimitInterval())
	}
	if ex := cfg.ExcludedUpdates(); len(ex) != 1 {
		t.Fatalf("excluded = %v", ex)
	} else if _, ok := ex[UpdateMessage]; !ok {
		t.Fatalf("excluded = %v", ex)
	}
	if cfg.WebhookListen() != "0.0.0.0:8443" {
		t.Fatalf("listen = %q", cfg.WebhookListen())
	}
}

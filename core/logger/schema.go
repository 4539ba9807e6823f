package logger

import (
	"log/slog"
	"strings"
)

// normalizeLevel maps slog level names, including offsets such as
// "INFO+2", onto the four level names used in the output.
func normalizeLevel(level string) string {
	base, _, _ := strings.Cut(strings.ToUpper(strings.TrimSpace(level)), "+")
	switch base {
	case "DEBUG":
		return slog.LevelDebug.String()
	case "WARN", "WARNING":
		return slog.LevelWarn.String()
	case "ERROR", "FATAL":
		return slog.LevelError.String()
	}
	return slog.LevelInfo.String()
}

// Enumerated values; unknown statuses pass through, unknown cache and
// outcome values are dropped.
var (
	knownStatus  = set("ok", "fail", "skip", "retry", "blocked", "rate_limited", "cancelled")
	knownCache   = set("hit", "miss", "refresh")
	knownOutcome = set("ok", "fail", "skip", "cancelled", "rate_limited")
)

func set(values ...string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}

func normalizeEnum(known map[string]bool, v string) (string, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	return v, v != "" && known[v]
}

func normalizeStatus(s string) (string, bool) { return normalizeEnum(knownStatus, s) }
func normalizeCache(s string) (string, bool) { return normalizeEnum(knownCache, s) }
func normalizeOutcome(s string) (string, bool) { return normalizeEnum(knownOutcome, s) }

// defaultKeyOrder puts correlation ids first, then the bot's domain keys
// (chat, list, ticker, scenario), then error details.
var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status",
	"rid", "rid_full", "ts_unix_nano",
	"update_id", "user_id", "chat_id", "chat_type", "handler",
	"scenario", "step", "op", "cb_key", "outcome",
	"list", "ticker", "board", "interval", "count",
	"duration_ms", "messages", "kb", "cache",
	"payload", "lang", "username",
	"mode", "listen", "public_url", "http_code",
	"driver", "db", "host", "port", "bucket", "topic",
	"users", "lists", "items", "sent", "failed",
	"err", "err_code", "cause", "retryable", "attempts", "backoff_ms",
	"rate_limited", "pending_count",
}

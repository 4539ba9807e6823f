package logger

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

type contextKey int

const (
	ctxLogger contextKey = iota
	ctxRID
	ctxUpdateID
	ctxUserID
	ctxChatID
	ctxHandler
	ctxScenario
)

func with(ctx context.Context, key contextKey, val any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, val)
}

func valueFrom[T any](ctx context.Context, key contextKey) T {
	var zero T
	if ctx == nil {
		return zero
	}
	v, _ := ctx.Value(key).(T)
	return v
}

// WithLogger stores log in ctx.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	if log == nil {
		if ctx == nil {
			return context.Background()
		}
		return ctx
	}
	return with(ctx, ctxLogger, log)
}

// FromContext returns the logger stored in ctx, or L.
func FromContext(ctx context.Context) *slog.Logger {
	if l := valueFrom[*slog.Logger](ctx, ctxLogger); l != nil {
		return l
	}
	return L
}

// WithRID attaches the request correlation id.
func WithRID(ctx context.Context, rid string) context.Context { return with(ctx, ctxRID, rid) }

// RIDFrom returns the correlation id, if any.
func RIDFrom(ctx context.Context) string { return valueFrom[string](ctx, ctxRID) }

// WithUpdateMeta attaches the Telegram update, user and chat ids.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	ctx = with(ctx, ctxUpdateID, updateID)
	ctx = with(ctx, ctxUserID, userID)
	return with(ctx, ctxChatID, chatID)
}

// WithChat attaches a chat id outside of an update, e.g. in the scheduler.
func WithChat(ctx context.Context, chatID int64) context.Context {
	return with(ctx, ctxChatID, chatID)
}

// WithHandler records which handler serves the update.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" && ctx != nil {
		return ctx
	}
	return with(ctx, ctxHandler, handler)
}

// WithScenario tags every log line of a scenario step with its name.
func WithScenario(ctx context.Context, name string) context.Context {
	return with(ctx, ctxScenario, name)
}

// HandlerFrom returns the handler name, if any.
func HandlerFrom(ctx context.Context) string { return valueFrom[string](ctx, ctxHandler) }

// ScenarioFrom returns the scenario name, if any.
func ScenarioFrom(ctx context.Context) string { return valueFrom[string](ctx, ctxScenario) }

// UserIDFrom returns the Telegram user id, if any.
func UserIDFrom(ctx context.Context) int64 { return valueFrom[int64](ctx, ctxUserID) }

// ChatIDFrom returns the chat id, if any.
func ChatIDFrom(ctx context.Context) int64 { return valueFrom[int64](ctx, ctxChatID) }

// UpdateIDFrom returns the update id, if any.
func UpdateIDFrom(ctx context.Context) int { return valueFrom[int](ctx, ctxUpdateID) }

// botTokenPattern matches "123456:AA..." bot tokens, which leak into
// transport errors through the Bot API URL.
var botTokenPattern = regexp.MustCompile(`\d{5,}:[A-Za-z0-9_-]{30,}`)

// Redact masks bot tokens in s.
func Redact(s string) string {
	if !strings.Contains(s, ":") {
		return s
	}
	return botTokenPattern.ReplaceAllString(s, "***")
}

// Sanitize drops control and format runes except tab and newline.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case unicode.IsControl(r), unicode.Is(unicode.Cf, r):
			return -1
		}
		return r
	}, s)
}

// SanitizeLimit sanitizes s and cuts it to max runes.
func SanitizeLimit(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(Sanitize(s))
	if len(r) > max {
		r = r[:max]
	}
	return string(r)
}

// BuildRID formats updateID:chatID:userID.
func BuildRID(updateID int, chatID, userID int64) string {
	return fmt.Sprintf("%d:%d:%d", updateID, chatID, userID)
}

// CompactRID renders a BuildRID value as dot-joined base36 segments.
// Anything else is returned as is.
func CompactRID(rid string) string {
	rid = strings.TrimSpace(rid)
	parts := strings.Split(rid, ":")
	if len(parts) != 3 {
		return rid
	}
	for i, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return rid
		}
		parts[i] = strconv.FormatInt(n, 36)
	}
	return strings.Join(parts, ".")
}

// RoundMS rounds d to whole milliseconds; negative durations become 0.
func RoundMS(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d.Round(time.Millisecond)
}

// SummarizeStrings joins at most limit values and reports whether any were left out.
func SummarizeStrings(values []string, limit int) (string, bool) {
	if limit <= 0 {
		return "", len(values) > 0
	}
	if len(values) <= limit {
		return strings.Join(values, ", "), false
	}
	return strings.Join(values[:limit], ", "), true
}

package router

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/m3rciful/moexbot/core/logger"
	tghelpers "github.com/m3rciful/moexbot/core/telegram/helpers"
	"github.com/m3rciful/moexbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// summarize runs h under the handler name and logs one handler.handled line
// with the send counters of the update. A nil h is logged as skipped.
func summarize(c tele.Context, name string, start time.Time, h tele.HandlerFunc, extras ...slog.Attr) error {
	ctx := tghelpers.WithHandler(c, name)
	status := "skip"
	var err error
	if h != nil {
		err = h(c)
		status = "ok"
	}
	if err != nil {
		status = "fail"
	}

	msgs, kb := middleware.GetCounters(c)
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("outcome", status),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", time.Since(start)),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
		)
	}
	logger.Info(ctx, "tg", "handler.handled", append(attrs, extras...)...)
	return err
}

// handlerName turns "/Find" or "item show" into "find" and "item_show".
func handlerName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if name == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

// errorCode prefers an explicit Code() anywhere in the chain, then the
// dynamic type name of err.
func errorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Name() == "" {
		return "UNKNOWN_ERROR"
	}
	return strings.ToUpper(t.Name())
}

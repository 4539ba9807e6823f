package router

import (
	"log/slog"
	"time"

	tg "github.com/m3rciful/moexbot/core/telegram"
	"github.com/m3rciful/moexbot/core/telegram/callbacks"
	"github.com/m3rciful/moexbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	// NotFound serves unknown keys when the registry has no fallback.
	NotFound tele.HandlerFunc
}

// CallbackRoute answers every callback query and dispatches it by unique key.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		cb := c.Callback()
		if cb == nil {
			return nil
		}
		// Telegram shows a spinner on the button until the query is answered.
		_ = c.Respond()

		key, _ := callbacks.ParseCallbackData(cb)
		attrs := []slog.Attr{slog.String("cb_key", key)}
		h, ok := reg.GetCallback(key)
		if !ok || h == nil {
			attrs = append(attrs, slog.String("cause", "not_found"))
			h = reg.CallbackNotFound()
			if h == nil {
				h = opts.NotFound
			}
		}
		return summarize(c, "callback."+handlerName(key), start, h, attrs...)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}

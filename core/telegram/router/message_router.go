package router

import (
	"time"

	tg "github.com/m3rciful/moexbot/core/telegram"
	tghelpers "github.com/m3rciful/moexbot/core/telegram/helpers"
	"github.com/m3rciful/moexbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Conversation owns multi-step flows. While a chat is Active every text
// update goes to HandleText before command lookup.
type Conversation interface {
	Active(chatID int64) bool
	HandleText(c tele.Context) error
}

// TextOptions controls fallback behaviour for text/document updates.
type TextOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
}

// TextRoutes routes plain text in this order: active conversation, text
// command, registry fallback, UnknownText. Documents go to UnknownDocument.
func TextRoutes(conv Conversation, reg *tg.Registry, opts TextOptions) []tg.Route {
	text := func(c tele.Context) error {
		start := time.Now()
		if chatID, _ := tghelpers.Identity(c); conv != nil && chatID != 0 && conv.Active(chatID) {
			return summarize(c, "conversation", start, conv.HandleText)
		}
		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil {
				return summarize(c, handlerName(key), start, cmd.Handler)
			}
			if fb := reg.TextFallback(); fb != nil {
				return summarize(c, "fallback", start, fb)
			}
		}
		return summarize(c, "unknown_text", start, opts.UnknownText)
	}

	document := func(c tele.Context) error {
		return summarize(c, "unexpected_document", time.Now(), opts.UnknownDocument)
	}

	wrap := func(h tele.HandlerFunc) tele.HandlerFunc {
		return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
	}
	return []tg.Route{
		{Endpoint: tele.OnText, Handler: wrap(text)},
		{Endpoint: tele.OnDocument, Handler: wrap(document)},
	}
}

package middleware

import (
	coreconfig "github.com/m3rciful/moexbot/core/config"

	tele "gopkg.in/telebot.v4"
)

// updateKind names u the way rate_limit.exclude_updates does.
func updateKind(u tele.Update) string {
	switch {
	case u.Callback != nil:
		return coreconfig.UpdateCallback
	case u.Message != nil:
		return coreconfig.UpdateMessage
	case u.Query != nil:
		return coreconfig.UpdateInlineQuery
	}
	return "other"
}

package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/moexbot/core/logger"
	"github.com/m3rciful/moexbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/moexbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// recentUpdates is a fixed ring of update ids whose receipt was logged.
// Telegram redelivers an update when the previous poll was not acknowledged.
type recentUpdates struct {
	mu   sync.Mutex
	ids  [256]int
	next int
}

var received recentUpdates

// seen reports whether id is in the ring and adds it otherwise.
func (r *recentUpdates) seen(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.ids {
		if v == id && id != 0 {
			return true
		}
	}
	r.ids[r.next] = id
	r.next = (r.next + 1) % len(r.ids)
	return false
}

// LoggerMiddleware creates the update context (rid plus update, user and
// chat ids) and logs a sampled update.received line. A context that already
// exists is reused, so routes may wrap it again safely.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if _, ok := tghelpers.ContextFrom(c); ok {
			return next(c)
		}
		upd := c.Update()
		chatID, username := tghelpers.Identity(c)
		var userID int64
		if u := c.Sender(); u != nil {
			userID = u.ID
		}
		c.Set("rid", logger.BuildRID(upd.ID, chatID, userID))
		c.Set("update_start", time.Now())
		ctx := tghelpers.BuildContext(c)

		if !logger.ShouldSampleDebug() || received.seen(upd.ID) {
			return next(c)
		}
		attrs := []slog.Attr{
			slog.String("status", "ok"),
			slog.String("kind", updateKind(upd)),
		}
		if ch := c.Chat(); ch != nil {
			attrs = append(attrs, slog.String("chat_type", string(ch.Type)))
		}
		if username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(username, 64)))
		}
		if u := c.Sender(); u != nil && u.LanguageCode != "" {
			attrs = append(attrs, slog.String("lang", u.LanguageCode))
		}
		if upd.Callback != nil {
			key, payload := callbacks.ParseCallbackData(upd.Callback)
			attrs = append(attrs,
				slog.String("cb_key", logger.SanitizeLimit(key, 64)),
				slog.String("payload", logger.SanitizeLimit(payload, 128)),
			)
		} else if t := c.Text(); t != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
		}
		logger.Debug(ctx, "tg", "update.received", attrs...)
		return next(c)
	}
}

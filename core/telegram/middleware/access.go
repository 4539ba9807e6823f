package middleware

import (
	"github.com/m3rciful/moexbot/core/logger"
	tghelpers "github.com/m3rciful/moexbot/core/telegram/helpers"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// AdminOptions defines how admin-only checks should behave.
type AdminOptions struct {
	AdminID  int64
	OnReject tele.HandlerFunc
}

// IsAdmin reports whether the sender of c is the configured admin.
// With no admin configured nobody is.
func (o AdminOptions) IsAdmin(c tele.Context) bool {
	u := c.Sender()
	return o.AdminID != 0 && u != nil && u.ID == o.AdminID
}

// AdminOnlyMiddleware ensures that only the admin user can invoke downstream handlers.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if !opts.IsAdmin(c) {
				logger.Debug(tghelpers.BuildContext(c), "tg", "access.denied",
					slog.String("status", "skip"),
					slog.String("reason", "not_admin"),
				)
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}

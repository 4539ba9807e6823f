package telegram

import (
	coreconfig "github.com/m3rciful/moexbot/core/config"
	"github.com/m3rciful/moexbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// DefaultMiddlewares builds the global chain: panic recovery, per-user rate
// limiting with the admin exempt, the update receipt log and send counters.
func DefaultMiddlewares(cfg *coreconfig.Config, onLimited tele.HandlerFunc) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
	}

	if cfg != nil && cfg.RateLimitInterval() > 0 {
		admin := middleware.AdminOptions{AdminID: cfg.Telegram.AdminID}
		mws = append(mws, Middleware{
			Name: "rate_limit",
			Use:  middleware.RateLimitMiddleware(middleware.RateLimitOptions{
				Interval:  cfg.RateLimitInterval(),
				Exclude:   cfg.ExcludedUpdates(),
				Skip:      admin.IsAdmin,
				OnLimited: onLimited,
			}),
		})
	}

	return append(mws,
		Middleware{Name: "logger", Use: middleware.LoggerMiddleware},
		Middleware{Name: "metrics", Use: middleware.MessageMetricsMiddleware},
	)
}

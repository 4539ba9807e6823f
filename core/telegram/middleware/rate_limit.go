package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/moexbot/core/logger"
	tghelpers "github.com/m3rciful/moexbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	// Interval is the minimum gap between two updates of one user.
	Interval time.Duration
	// Exclude lists update kinds that are never limited.
	Exclude map[string]struct{}
	// Skip exempts matching updates from limiting.
	Skip func(tele.Context) bool
	// OnLimited is called for a dropped update, e.g. to answer a callback.
	OnLimited tele.HandlerFunc
}

// lastSeen remembers when each user was last let through.
type lastSeen struct {
	mu     sync.Mutex
	at     map[int64]time.Time
	pruned time.Time
}

// allow records now for id unless the previous update is closer than gap.
// Entries older than gap are dropped at most once per gap.
func (l *lastSeen) allow(id int64, now time.Time, gap time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Sub(l.pruned) >= gap {
		for k, t := range l.at {
			if now.Sub(t) >= gap {
				delete(l.at, k)
			}
		}
		l.pruned = now
	}
	if t, ok := l.at[id]; ok && now.Sub(t) < gap {
		return false
	}
	l.at[id] = now
	return true
}

// RateLimitMiddleware drops updates that arrive from the same user faster
// than opts.Interval.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	seen := &lastSeen{at: make(map[int64]time.Time)}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 || (opts.Skip != nil && opts.Skip(c)) {
				return next(c)
			}
			kind := updateKind(c.Update())
			if _, excluded := opts.Exclude[kind]; excluded {
				return next(c)
			}
			if seen.allow(user.ID, time.Now(), opts.Interval) {
				return next(c)
			}

			logger.Warn(tghelpers.BuildContext(c), "tg", "tg.rate_limit",
				slog.String("status", "skip"),
				slog.String("kind", kind),
				slog.Duration("interval", opts.Interval),
			)
			if opts.OnLimited != nil {
				return opts.OnLimited(c)
			}
			return nil
		}
	}
}

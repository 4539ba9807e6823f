package middleware

import (
	"context"
	"sync/atomic"

	tghelpers "github.com/m3rciful/moexbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

type countersKey struct{}

// counters track outbound messages produced while handling one update.
type counters struct {
	messages atomic.Int32
	kb       atomic.Bool
}

// WithCounters attaches fresh message counters to ctx.
func WithCounters(ctx context.Context) context.Context {
	return context.WithValue(ctx, countersKey{}, &counters{})
}

// CountSend records one delivered message. It is a no-op when ctx carries no counters.
func CountSend(ctx context.Context, hasKB bool) {
	if ctx == nil {
		return
	}
	c, ok := ctx.Value(countersKey{}).(*counters)
	if !ok {
		return
	}
	c.messages.Add(1)
	if hasKB {
		c.kb.Store(true)
	}
}

// Counters reads the message count and keyboard flag from ctx.
func Counters(ctx context.Context) (int, bool) {
	if ctx == nil {
		return 0, false
	}
	c, ok := ctx.Value(countersKey{}).(*counters)
	if !ok {
		return 0, false
	}
	return int(c.messages.Load()), c.kb.Load()
}

// MessageMetricsMiddleware attaches counters to the update context. Senders
// report through CountSend with the context they were handed.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		if _, ok := ctx.Value(countersKey{}).(*counters); !ok {
			tghelpers.StoreContext(c, WithCounters(ctx))
		}
		return next(c)
	}
}

// GetCounters reads the counters of the update being handled.
func GetCounters(c tele.Context) (int, bool) {
	ctx, ok := tghelpers.ContextFrom(c)
	if !ok {
		return 0, false
	}
	return Counters(ctx)
}

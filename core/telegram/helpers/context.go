package helpers

import (
	"context"

	"github.com/m3rciful/moexbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// contextKey is the tele.Context store slot holding the update context.
const contextKey = "update_ctx"

// Identity returns the chat the update belongs to and the sender's username.
// The chat id is 0 for updates without a chat, such as inline queries.
func Identity(c tele.Context) (chatID int64, username string) {
	if c == nil {
		return 0, ""
	}
	if ch := c.Chat(); ch != nil {
		chatID = ch.ID
	}
	if u := c.Sender(); u != nil {
		username = u.Username
	}
	return chatID, username
}

// StoreContext attaches ctx to c for downstream handlers.
func StoreContext(c tele.Context, ctx context.Context) {
	if c == nil || ctx == nil {
		return
	}
	c.Set(contextKey, ctx)
}

// ContextFrom returns the context stored on c, if any.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(contextKey).(context.Context)
	return ctx, ok && ctx != nil
}

// BuildContext returns the update context, creating and storing it on first
// use. It carries the rid and update, user and chat ids for logging.
func BuildContext(c tele.Context) context.Context {
	if cached, ok := ContextFrom(c); ok {
		return cached
	}

	chatID, _ := Identity(c)
	var userID int64
	if u := c.Sender(); u != nil {
		userID = u.ID
	}
	updateID := c.Update().ID

	rid, _ := c.Get("rid").(string)
	if rid == "" {
		rid = logger.BuildRID(updateID, chatID, userID)
	}

	ctx := logger.WithRID(context.Background(), rid)
	ctx = logger.WithUpdateMeta(ctx, updateID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.Component("tg"))
	StoreContext(c, ctx)
	return ctx
}

// WithHandler records the handler name on the stored context.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	StoreContext(c, ctx)
	return ctx
}

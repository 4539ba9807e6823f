// Package bot adapts the dispatcher and the scheduler to telebot: it turns
// updates into chat values, renders keyboards and assembles the application.
package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m3rciful/moexbot/core/logger"
	tghelpers "github.com/m3rciful/moexbot/core/telegram/helpers"
	"github.com/m3rciful/moexbot/core/telegram/keyboard"
	"github.com/m3rciful/moexbot/core/telegram/middleware"
	"github.com/m3rciful/moexbot/internal/chat"

	tele "gopkg.in/telebot.v4"
)

const component = "bot"

// API is the part of *tele.Bot used for delivery.
type API interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Sender delivers messages synchronously through the Bot API.
type Sender struct {
	api API
}

// NewSender wraps api.
func NewSender(api API) *Sender { return &Sender{api: api} }

// Send implements chat.Sender.
func (s *Sender) Send(ctx context.Context, chatID int64, text string, kb chat.Keyboard) error {
	markup := Markup(kb)
	opts := &tele.SendOptions{ReplyMarkup: markup}
	if _, err := s.api.Send(tele.ChatID(chatID), text, opts); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	middleware.CountSend(ctx, markup != nil)
	return nil
}

// QueuedSender hands messages to the outbound dispatcher. It serves the
// scheduler, whose bursts must not block the tick loop.
type QueuedSender struct {
	next  chat.Sender
	queue tghelpers.Enqueuer
}

// NewQueuedSender wraps next with queue. A nil queue sends synchronously.
func NewQueuedSender(next chat.Sender, queue tghelpers.Enqueuer) *QueuedSender {
	return &QueuedSender{next: next, queue: queue}
}

// Send implements chat.Sender. Delivery errors after enqueue are logged by
// the dispatcher, not returned.
func (q *QueuedSender) Send(ctx context.Context, chatID int64, text string, kb chat.Keyboard) error {
	return tghelpers.SendAsync(ctx, q.queue, chatID, "send.text", "sendMessage", func() error {
		return q.next.Send(ctx, chatID, text, kb)
	})
}

// Markup renders a chat keyboard. Nil stays nil so Telegram keeps the current keyboard.
func Markup(kb chat.Keyboard) *tele.ReplyMarkup {
	switch k := kb.(type) {
	case chat.ReplyKeyboard:
		return keyboard.ReplyButtons(k.Rows...)
	case chat.InlineKeyboard:
		rows := make([][]keyboard.InlineBtn, 0, len(k.Rows))
		for _, row := range k.Rows {
			btns := make([]keyboard.InlineBtn, 0, len(row))
			for _, b := range row {
				unique, payload := b.Action.Encode()
				btns = append(btns, keyboard.InlineBtn{Text: b.Text, Unique: unique, Data: payload})
			}
			rows = append(rows, btns)
		}
		markup, dropped := keyboard.InlineButtonsRows(rows...)
		for _, b := range dropped {
			logger.Warn(logger.Background(), component, "keyboard.oversized",
				slog.String("cb_key", b.Unique),
				slog.Int("payload_len", len(b.Data)),
			)
		}
		return markup
	case chat.RemoveKeyboard:
		return keyboard.RemoveKeyboard()
	case nil:
		return nil
	default:
		logger.Warn(logger.Background(), component, "keyboard.unknown", slog.String("type", fmt.Sprintf("%T", kb)))
		return nil
	}
}

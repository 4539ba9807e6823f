package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/moexbot/core/buildinfo"
	"github.com/m3rciful/moexbot/core/logger"
	coretelegram "github.com/m3rciful/moexbot/core/telegram"
	"github.com/m3rciful/moexbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/moexbot/core/telegram/helpers"
	tgsender "github.com/m3rciful/moexbot/core/telegram/sender"
	"github.com/m3rciful/moexbot/internal/chat"
	"github.com/m3rciful/moexbot/internal/notify"
	"github.com/m3rciful/moexbot/internal/store"

	tele "gopkg.in/telebot.v4"
)

// Conversations is the dispatcher surface driven by Telegram updates.
type Conversations interface {
	HandleMessage(ctx context.Context, msg chat.Message) error
	HandleCallback(ctx context.Context, cb chat.Callback) error
	Active(chatID int64) bool
}

// StatsSource feeds the admin /stats command.
type StatsSource struct {
	Store    func() store.Stats
	LastTick func() (notify.Report, bool)
	Outbound func() tgsender.Stats
}

// Handlers converts telebot updates into dispatcher calls.
type Handlers struct {
	conv  Conversations
	stats StatsSource
}

// NewHandlers builds the handler set.
func NewHandlers(conv Conversations, stats StatsSource) *Handlers {
	return &Handlers{conv: conv, stats: stats}
}

// Active implements router.Conversation.
func (h *Handlers) Active(chatID int64) bool { return h.conv.Active(chatID) }

// HandleText implements router.Conversation.
func (h *Handlers) HandleText(c tele.Context) error { return h.Message(c) }

// Message forwards any text, commands included, to the dispatcher.
func (h *Handlers) Message(c tele.Context) error {
	chatID, username := tghelpers.Identity(c)
	if chatID == 0 {
		return nil
	}
	msg := chat.Message{ChatID: chatID, Username: username, Text: c.Text()}
	return h.conv.HandleMessage(tghelpers.BuildContext(c), msg)
}

// Callback decodes the button action and forwards it to the dispatcher.
func (h *Handlers) Callback(c tele.Context) error {
	chatID, username := tghelpers.Identity(c)
	if chatID == 0 || c.Callback() == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	unique, payload := callbacks.ParseCallbackData(c.Callback())
	action, err := chat.DecodeAction(unique, payload)
	if err != nil {
		logger.Warn(ctx, component, "callback.decode",
			slog.String("status", "skip"),
			slog.String("cb_key", unique),
			slog.String("err", err.Error()),
		)
		return nil
	}
	return h.conv.HandleCallback(ctx, chat.Callback{ChatID: chatID, Username: username, Action: action})
}

// UnknownDocument answers non-text uploads.
func (h *Handlers) UnknownDocument(c tele.Context) error {
	return c.Send("Only text messages are supported. Use the menu buttons.")
}

// UnknownCallback answers buttons no route is registered for.
func (h *Handlers) UnknownCallback(c tele.Context) error {
	return c.Send("This button has expired.")
}

// Stats reports store size, the last scheduler tick and queued delivery outcomes.
func (h *Handlers) Stats(c tele.Context) error {
	return c.Send(h.statsText())
}

func (h *Handlers) statsText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "🛠 moexbot %s\n", buildinfo.String())
	if h.stats.Store != nil {
		st := h.stats.Store()
		fmt.Fprintf(&b, "Users: %d\nLists: %d\nItems: %d\n", st.Users, st.Lists, st.Items)
	}
	if h.stats.LastTick != nil {
		if r, ok := h.stats.LastTick(); ok {
			fmt.Fprintf(&b, "Last tick: %s (%s), sent %d, missing %d, failed %d\n",
				r.Clock, r.At.Format("2006-01-02 15:04:05"), r.Sent, r.Missing, r.Failed)
		} else {
			b.WriteString("Last tick: none yet\n")
		}
	}
	if h.stats.Outbound != nil {
		o := h.stats.Outbound()
		fmt.Fprintf(&b, "Queued sends: %d ok, %d retried, %d failed, %d blocked\n", o.Sent, o.Retried, o.Failed, o.Blocked)
	}
	return strings.TrimRight(b.String(), "\n")
}

// userCommands are forwarded verbatim to the dispatcher, which owns their semantics.
var userCommands = []struct {
	name, description string
}{
	{"/start", "Register and show the main menu"},
	{"/find", "Find a security and add it to a list"},
	{"/lists", "Show your lists"},
	{"/addlist", "Create a list named HH:MM"},
	{"/deletelist", "Delete a list"},
	{"/analytics", "Candle analytics for a tracked security"},
	{"/about", "About this bot"},
	{"/cancel", "Cancel the current action"},
}

// Register fills reg with the bot commands and callback handlers.
func (h *Handlers) Register(reg *coretelegram.Registry) error {
	var errs []error
	for _, cmd := range userCommands {
		errs = append(errs, reg.RegisterCommand(cmd.name, coretelegram.Command{
			Handler:     h.Message,
			Description: cmd.description,
		}))
	}
	errs = append(errs, reg.RegisterCommand("/stats", coretelegram.Command{
		Handler:     h.Stats,
		Description: "Bot statistics",
		AdminOnly:   true,
		Hidden:      true,
	}))
	for _, kind := range chat.Kinds {
		errs = append(errs, reg.RegisterCallback(string(kind), h.Callback))
	}
	reg.SetCallbackNotFound(h.UnknownCallback)
	reg.SetTextFallback(h.Message)
	return errors.Join(errs...)
}

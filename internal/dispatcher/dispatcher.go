// Package dispatcher routes inbound messages and callbacks either to the
// scenario active in a chat or to the global menu commands.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/moexbot/core/logger"
	"github.com/m3rciful/moexbot/core/telegram/state"
	"github.com/m3rciful/moexbot/internal/chat"
	"github.com/m3rciful/moexbot/internal/domain"
	"github.com/m3rciful/moexbot/internal/menu"
	"github.com/m3rciful/moexbot/internal/report"
	"github.com/m3rciful/moexbot/internal/scenario"
)

const component = "dispatcher"

// Users is the store surface used by the dispatcher.
type Users interface {
	scenario.UserStore
	GetOrCreate(ctx context.Context, chatID int64, username string) (domain.User, bool, error)
}

// Options configures a Dispatcher.
type Options struct {
	Users     Users
	Sender    chat.Sender
	Prices    domain.PriceLookup
	Scenarios *scenario.Registry
	// About is the text of the about command.
	About    string
	Location *time.Location
	// PriceTimeout bounds the per-item lookups when a list is opened.
	PriceTimeout time.Duration
}

// Dispatcher owns the per-chat scenario contexts. Events of one chat are
// handled one at a time; different chats proceed in parallel.
type Dispatcher struct {
	users        Users
	sender       chat.Sender
	prices       domain.PriceLookup
	scenarios    *scenario.Registry
	sessions     *state.Manager[*scenario.Context]
	about        string
	loc          *time.Location
	priceTimeout time.Duration
}

// New builds a Dispatcher.
func New(opts Options) *Dispatcher {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	timeout := opts.PriceTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{
		users:        opts.Users,
		sender:       opts.Sender,
		prices:       opts.Prices,
		scenarios:    opts.Scenarios,
		sessions:     state.NewManager[*scenario.Context](),
		about:        opts.About,
		loc:          loc,
		priceTimeout: timeout,
	}
}

// Sessions exposes which chats have a scenario in progress.
func (d *Dispatcher) Sessions() state.Store { return d.sessions }

// Active reports whether chatID is inside a scenario.
func (d *Dispatcher) Active(chatID int64) bool { return d.sessions.Active(chatID) }

// HandleMessage processes one text message.
func (d *Dispatcher) HandleMessage(ctx context.Context, msg chat.Message) error {
	lease, err := d.sessions.Acquire(ctx, msg.ChatID)
	if err != nil {
		return err
	}
	defer lease.Release()

	if sc, ok := lease.Get(); ok {
		s, err := d.scenarios.Get(sc.Name)
		if err != nil {
			lease.Clear()
			return d.reject(ctx, msg.ChatID, err)
		}
		ctx = logger.WithScenario(ctx, string(sc.Name))
		err = s.HandleMessage(ctx, sc, msg)
		d.finish(ctx, lease, sc)
		return err
	}
	return d.command(ctx, lease, msg)
}

// HandleCallback processes one inline-button press.
func (d *Dispatcher) HandleCallback(ctx context.Context, cb chat.Callback) error {
	lease, err := d.sessions.Acquire(ctx, cb.ChatID)
	if err != nil {
		return err
	}
	defer lease.Release()

	if sc, ok := lease.Get(); ok {
		s, err := d.scenarios.Get(sc.Name)
		if err != nil {
			lease.Clear()
			return d.reject(ctx, cb.ChatID, err)
		}
		ctx = logger.WithScenario(ctx, string(sc.Name))
		h, ok := s.(scenario.CallbackHandler)
		if !ok {
			return d.send(ctx, cb.ChatID, "Finish or cancel the current action first.", menu.CancelOnly())
		}
		err = h.HandleCallback(ctx, sc, cb)
		d.finish(ctx, lease, sc)
		return err
	}

	u, ok := d.users.Get(cb.ChatID)
	if !ok {
		return d.send(ctx, cb.ChatID, "Send /start to register first.", nil)
	}
	switch cb.Action.Kind {
	case chat.KindItemShow:
		return d.showItem(ctx, u, cb.Action.List, cb.Action.Ticker, cb.Action.Board)
	case chat.KindItemRemove:
		return d.removeItem(ctx, cb.ChatID, cb.Action.List, cb.Action.Ticker, cb.Action.Board)
	case chat.KindItemAnalyze:
		return d.analyzeItem(ctx, lease, u, cb.Action.List, cb.Action.Ticker, cb.Action.Board)
	default:
		logger.Debug(ctx, component, "callback.expired", slog.String("op", string(cb.Action.Kind)))
		return d.send(ctx, cb.ChatID, "This button has expired.", nil)
	}
}

func (d *Dispatcher) command(ctx context.Context, lease *state.Lease[*scenario.Context], msg chat.Message) error {
	text := msg.TrimmedText()
	cmd := commandName(text)
	if cmd == "/start" {
		return d.register(ctx, msg)
	}

	u, ok := d.users.Get(msg.ChatID)
	if !ok {
		return d.send(ctx, msg.ChatID, "Send /start to register first.", nil)
	}

	switch {
	case text == menu.Find || cmd == "/find":
		return d.startScenario(ctx, lease, scenario.FindSecurityName, u)
	case text == menu.AddList || cmd == "/addlist":
		return d.startScenario(ctx, lease, scenario.AddListName, u)
	case text == menu.DeleteList || cmd == "/deletelist":
		return d.startScenario(ctx, lease, scenario.DeleteListName, u)
	case text == menu.Analytics || cmd == "/analytics":
		return d.startScenario(ctx, lease, scenario.AnalyticsName, u)
	case text == menu.Lists || cmd == "/lists":
		return d.send(ctx, msg.ChatID, report.Lists(u), menu.UserLists(u))
	case text == menu.About || cmd == "/about":
		return d.send(ctx, msg.ChatID, d.about, menu.Main())
	case text == menu.Back:
		return d.send(ctx, msg.ChatID, "Main menu", menu.Main())
	case menu.IsCancel(text):
		return d.send(ctx, msg.ChatID, "Nothing to cancel.", menu.Main())
	}

	if l, ok := u.List(text); ok {
		return d.openList(ctx, msg.ChatID, l)
	}
	return d.send(ctx, msg.ChatID, "Use the menu buttons below.", menu.Main())
}

// commandName returns "/name" for "/name@bot args", or "" for plain text.
func commandName(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	name, _, _ := strings.Cut(text, " ")
	name, _, _ = strings.Cut(name, "@")
	return strings.ToLower(name)
}

func (d *Dispatcher) register(ctx context.Context, msg chat.Message) error {
	u, created, err := d.users.GetOrCreate(ctx, msg.ChatID, msg.Username)
	switch {
	case errors.Is(err, domain.ErrNotSaved):
		logger.Warn(ctx, component, "store.unsaved", slog.String("err", err.Error()))
	case err != nil:
		return fmt.Errorf("register %d: %w", msg.ChatID, err)
	}
	if created {
		logger.Info(ctx, component, "user.registered", slog.Int64("chat_id", msg.ChatID))
		return d.send(ctx, msg.ChatID,
			fmt.Sprintf("👋 Welcome, %s!\nYour default list %s is ready. Create lists named HH:MM to get prices at that time.",
				u.DisplayName(), domain.DefaultListName),
			menu.Main())
	}
	return d.send(ctx, msg.ChatID,
		fmt.Sprintf("👋 Welcome back, %s!\n\n%s", u.DisplayName(), report.Lists(u)),
		menu.Main())
}

func (d *Dispatcher) startScenario(ctx context.Context, lease *state.Lease[*scenario.Context], name scenario.Name, u domain.User) error {
	s, err := d.scenarios.Get(name)
	if err != nil {
		return d.reject(ctx, u.ChatID, err)
	}
	sc := scenario.NewContext(u.ChatID, name)
	if err := lease.Set(sc); err != nil {
		return err
	}
	ctx = logger.WithScenario(ctx, string(name))
	logger.Debug(ctx, component, "scenario.start")
	if err := s.Start(ctx, sc, u); err != nil {
		lease.Clear()
		return err
	}
	d.finish(ctx, lease, sc)
	return nil
}

// finish drops the context of a completed run.
func (d *Dispatcher) finish(ctx context.Context, lease *state.Lease[*scenario.Context], sc *scenario.Context) {
	if !sc.Completed {
		return
	}
	lease.Clear()
	logger.Debug(ctx, component, "scenario.done",
		slog.String("scenario", string(sc.Name)),
		slog.Int("step", sc.Step),
	)
}

func (d *Dispatcher) reject(ctx context.Context, chatID int64, cause error) error {
	logger.Warn(ctx, component, "scenario",
		slog.String("status", "fail"),
		slog.String("err", cause.Error()),
	)
	return errors.Join(cause, d.send(ctx, chatID, "This action is not available.", menu.Main()))
}

func (d *Dispatcher) send(ctx context.Context, chatID int64, text string, kb chat.Keyboard) error {
	if err := d.sender.Send(ctx, chatID, text, kb); err != nil {
		return fmt.Errorf("send to %d: %w", chatID, err)
	}
	return nil
}

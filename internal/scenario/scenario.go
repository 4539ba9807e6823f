// Package scenario implements the guided multi-step dialogs of the bot.
//
// A Scenario is stateless; everything a run needs between steps lives in the
// typed Context owned by the dispatcher for the duration of the run.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/m3rciful/moexbot/core/logger"
	"github.com/m3rciful/moexbot/internal/chat"
	"github.com/m3rciful/moexbot/internal/domain"
	"github.com/m3rciful/moexbot/internal/menu"
)

const component = "scenario"

// Name identifies a scenario in the registry.
type Name string

const (
	AddListName      Name = "add_list"
	DeleteListName   Name = "delete_list"
	FindSecurityName Name = "find_security"
	AnalyticsName    Name = "analytics"
)

// ErrUnknownScenario is returned by Registry.Get for unregistered names.
var ErrUnknownScenario = errors.New("unknown scenario")

// Context is the per-chat state of one scenario run. Exactly one of the
// typed state pointers is set, matching Name.
type Context struct {
	ChatID    int64
	Name      Name
	Step      int
	Completed bool

	Delete    *DeleteState
	Find      *FindState
	Analytics *AnalyticsState
}

// NewContext returns a fresh context for a run of name in chatID.
func NewContext(chatID int64, name Name) *Context {
	return &Context{ChatID: chatID, Name: name}
}

// Complete marks the run finished; the dispatcher drops the context afterwards.
func (c *Context) Complete() { c.Completed = true }

// DeleteState is the scratch data of DeleteList.
type DeleteState struct {
	Selected string
}

// FindState is the scratch data of FindSecurity.
type FindState struct {
	Market   domain.Market
	Security domain.SecurityInfo
}

// AnalyticsState is the scratch data of Analytics.
type AnalyticsState struct {
	Subject domain.ListedItem
	From    time.Time
	To      time.Time
}

// Scenario is one dialog variant.
type Scenario interface {
	Name() Name
	Start(ctx context.Context, sc *Context, user domain.User) error
	HandleMessage(ctx context.Context, sc *Context, msg chat.Message) error
}

// CallbackHandler is implemented by scenarios driven by inline buttons.
type CallbackHandler interface {
	HandleCallback(ctx context.Context, sc *Context, cb chat.Callback) error
}

// UserStore is the part of the store scenarios mutate.
type UserStore interface {
	Get(chatID int64) (domain.User, bool)
	Update(ctx context.Context, chatID int64, fn func(u *domain.User) error) (domain.User, error)
}

// Deps are the collaborators shared by all scenarios.
type Deps struct {
	Users     UserStore
	Sender    chat.Sender
	Prices    domain.PriceLookup
	Analytics domain.CandleAnalytics
	// Location interprets dates typed by users and renders quote times.
	Location *time.Location
}

func (d Deps) location() *time.Location {
	if d.Location == nil {
		return time.Local
	}
	return d.Location
}

func (d Deps) send(ctx context.Context, chatID int64, text string, kb chat.Keyboard) error {
	if err := d.Sender.Send(ctx, chatID, text, kb); err != nil {
		return fmt.Errorf("send to %d: %w", chatID, err)
	}
	return nil
}

func (d Deps) user(chatID int64) (domain.User, error) {
	u, ok := d.Users.Get(chatID)
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

// update commits fn through the store. A change that could not be saved is
// still in effect, so it is reported as done with saved false.
func (d Deps) update(ctx context.Context, chatID int64, fn func(u *domain.User) error) (u domain.User, saved bool, err error) {
	u, err = d.Users.Update(ctx, chatID, fn)
	if errors.Is(err, domain.ErrNotSaved) {
		logger.Warn(ctx, component, "store.unsaved", slog.String("err", err.Error()))
		return u, false, nil
	}
	return u, err == nil, err
}

// fail abandons the run after a collaborator failure.
func (d Deps) fail(ctx context.Context, sc *Context, err error) error {
	sc.Complete()
	return errors.Join(err, d.send(ctx, sc.ChatID, "⚠️ Something went wrong, nothing was changed. Try again later.", menu.Main()))
}

// cancel completes the run without touching the store.
func (d Deps) cancel(ctx context.Context, sc *Context) error {
	sc.Complete()
	logger.Debug(ctx, component, "cancel", slog.String("scenario", string(sc.Name)), slog.Int("step", sc.Step))
	return d.send(ctx, sc.ChatID, "Cancelled.", menu.Main())
}

// Registry maps names to scenarios. It is built once and read-only afterwards.
type Registry struct {
	byName map[Name]Scenario
}

// NewRegistry registers scenarios; a later duplicate name replaces an earlier one.
func NewRegistry(scenarios ...Scenario) *Registry {
	r := &Registry{byName: make(map[Name]Scenario, len(scenarios))}
	for _, s := range scenarios {
		r.byName[s.Name()] = s
	}
	return r
}

// Default builds the registry of every dialog the bot offers.
func Default(deps Deps) *Registry {
	return NewRegistry(
		NewAddList(deps),
		NewDeleteList(deps),
		NewFindSecurity(deps),
		NewAnalytics(deps),
	)
}

// Get returns the scenario registered under name.
func (r *Registry) Get(name Name) (Scenario, error) {
	s, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownScenario)
	}
	return s, nil
}

// Names lists registered scenarios in lexical order.
func (r *Registry) Names() []Name {
	out := make([]Name, 0, len(r.byName))
	for n := range r.byName {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

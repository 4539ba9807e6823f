package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/moexbot/core/logger"
	"github.com/m3rciful/moexbot/internal/chat"
	"github.com/m3rciful/moexbot/internal/domain"
	"github.com/m3rciful/moexbot/internal/menu"
	"github.com/m3rciful/moexbot/internal/report"
)

// AddList asks for an HH:MM name and creates an empty list.
type AddList struct {
	deps Deps
}

// NewAddList returns the AddList scenario.
func NewAddList(deps Deps) *AddList { return &AddList{deps: deps} }

// Name implements Scenario.
func (s *AddList) Name() Name { return AddListName }

// Start implements Scenario.
func (s *AddList) Start(ctx context.Context, sc *Context, _ domain.User) error {
	sc.Step = 0
	return s.deps.send(ctx, sc.ChatID,
		"Enter the new list name as HH:MM, e.g. 09:30.\nPrices of its securities will be sent to you every day at that time.",
		menu.CancelOnly())
}

// HandleMessage implements Scenario.
func (s *AddList) HandleMessage(ctx context.Context, sc *Context, msg chat.Message) error {
	if menu.IsCancel(msg.Text) {
		return s.deps.cancel(ctx, sc)
	}
	name := msg.TrimmedText()
	u, saved, err := s.deps.update(ctx, sc.ChatID, func(u *domain.User) error {
		return u.AddList(name)
	})
	switch {
	case errors.Is(err, domain.ErrEmptyName):
		return s.deps.send(ctx, sc.ChatID, "❌ The name cannot be empty. Enter HH:MM:", nil)
	case errors.Is(err, domain.ErrInvalidListName):
		return s.deps.send(ctx, sc.ChatID, "❌ Use the HH:MM format, e.g. 09:30 or 23:59. Try again:", nil)
	case errors.Is(err, domain.ErrDuplicateList):
		return s.deps.send(ctx, sc.ChatID, fmt.Sprintf("❌ List %s already exists. Enter another name:", name), nil)
	case err != nil:
		return s.deps.fail(ctx, sc, fmt.Errorf("add list %q: %w", name, err))
	}

	sc.Complete()
	logger.Info(ctx, component, "list.created", slog.String("list", name))
	return s.deps.send(ctx, sc.ChatID,
		fmt.Sprintf("✅ List %s created.\n\n%s%s", name, report.Lists(u), report.UnsavedNote(saved)),
		menu.UserLists(u))
}

package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/moexbot/core/logger"
	"github.com/m3rciful/moexbot/internal/chat"
	"github.com/m3rciful/moexbot/internal/domain"
	"github.com/m3rciful/moexbot/internal/menu"
	"github.com/m3rciful/moexbot/internal/report"
)

const (
	deleteStepSelect  = 0
	deleteStepConfirm = 1
)

// DeleteList removes a non-default list after an explicit confirmation.
type DeleteList struct {
	deps Deps
}

// NewDeleteList returns the DeleteList scenario.
func NewDeleteList(deps Deps) *DeleteList { return &DeleteList{deps: deps} }

// Name implements Scenario.
func (s *DeleteList) Name() Name { return DeleteListName }

// Start implements Scenario.
func (s *DeleteList) Start(ctx context.Context, sc *Context, user domain.User) error {
	lists := user.DeletableLists()
	if len(lists) == 0 {
		sc.Complete()
		return s.deps.send(ctx, sc.ChatID, "You have no lists that can be deleted.", menu.UserLists(user))
	}
	sc.Step = deleteStepSelect
	sc.Delete = &DeleteState{}
	return s.deps.send(ctx, sc.ChatID, "Which list should be deleted?", selectKeyboard(lists))
}

func selectKeyboard(lists []domain.WatchList) chat.InlineKeyboard {
	btns := make([]chat.InlineButton, 0, len(lists)+1)
	for _, l := range lists {
		btns = append(btns, chat.InlineButton{
			Text:   "🗑 " + l.Name,
			Action: chat.Action{Kind: chat.KindDeleteSelect, List: l.Name},
		})
	}
	btns = append(btns, chat.InlineButton{Text: menu.Cancel, Action: chat.Action{Kind: chat.KindDeleteCancel}})
	return menu.Inline(btns, 2)
}

// HandleMessage implements Scenario. Typing a list name selects it.
func (s *DeleteList) HandleMessage(ctx context.Context, sc *Context, msg chat.Message) error {
	if menu.IsCancel(msg.Text) {
		return s.deps.cancel(ctx, sc)
	}
	if sc.Step == deleteStepConfirm {
		return s.deps.send(ctx, sc.ChatID,
			fmt.Sprintf("Confirm or cancel deleting %s with the buttons above.", sc.Delete.Selected), nil)
	}
	return s.selectList(ctx, sc, msg.TrimmedText())
}

// HandleCallback implements CallbackHandler.
func (s *DeleteList) HandleCallback(ctx context.Context, sc *Context, cb chat.Callback) error {
	switch cb.Action.Kind {
	case chat.KindDeleteSelect:
		return s.selectList(ctx, sc, cb.Action.List)
	case chat.KindDeleteConfirm:
		return s.confirm(ctx, sc, cb.Action.List)
	case chat.KindDeleteCancel:
		sc.Complete()
		u, err := s.deps.user(sc.ChatID)
		if err != nil {
			return errors.Join(err, s.deps.send(ctx, sc.ChatID, "Deletion cancelled.", menu.Main()))
		}
		return s.deps.send(ctx, sc.ChatID, "Deletion cancelled.", menu.UserLists(u))
	default:
		return s.deps.send(ctx, sc.ChatID, "Use the buttons above or "+menu.Cancel+".", nil)
	}
}

func (s *DeleteList) selectList(ctx context.Context, sc *Context, name string) error {
	u, err := s.deps.user(sc.ChatID)
	if err != nil {
		return err
	}
	l, ok := u.List(name)
	switch {
	case !ok:
		return s.deps.send(ctx, sc.ChatID,
			fmt.Sprintf("❌ There is no list %q. Choose one of the buttons:", name),
			selectKeyboard(u.DeletableLists()))
	case l.IsDefault():
		return s.deps.send(ctx, sc.ChatID,
			fmt.Sprintf("❌ %s is the default list and cannot be deleted.", l.Name), nil)
	}

	sc.Delete.Selected = l.Name
	sc.Step = deleteStepConfirm
	kb := chat.InlineKeyboard{Rows: [][]chat.InlineButton{{
		{Text: "✅ Delete", Action: chat.Action{Kind: chat.KindDeleteConfirm, List: l.Name}},
		{Text: menu.Cancel, Action: chat.Action{Kind: chat.KindDeleteCancel}},
	}}}
	return s.deps.send(ctx, sc.ChatID,
		fmt.Sprintf("Delete list %s with %d securities?", l.Name, len(l.Items)), kb)
}

func (s *DeleteList) confirm(ctx context.Context, sc *Context, name string) error {
	if sc.Step != deleteStepConfirm || !strings.EqualFold(sc.Delete.Selected, name) {
		return s.deps.send(ctx, sc.ChatID, "❌ This confirmation does not match the selected list. Choose a list first.", nil)
	}
	u, saved, err := s.deps.update(ctx, sc.ChatID, func(u *domain.User) error {
		return u.RemoveList(name)
	})
	switch {
	case errors.Is(err, domain.ErrDefaultList):
		sc.Complete()
		return s.deps.send(ctx, sc.ChatID, "❌ The default list cannot be deleted.", menu.UserLists(u))
	case errors.Is(err, domain.ErrListNotFound):
		sc.Complete()
		return s.deps.send(ctx, sc.ChatID, fmt.Sprintf("List %s no longer exists.", name), menu.UserLists(u))
	case err != nil:
		return s.deps.fail(ctx, sc, fmt.Errorf("delete list %q: %w", name, err))
	}

	sc.Complete()
	logger.Info(ctx, component, "list.deleted", slog.String("list", name))
	return s.deps.send(ctx, sc.ChatID,
		fmt.Sprintf("🗑 List %s deleted.\n\n%s%s", name, report.Lists(u), report.UnsavedNote(saved)),
		menu.UserLists(u))
}

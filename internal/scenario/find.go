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

const (
	findStepMarket = 0
	findStepTicker = 1
	findStepOffer  = 2
	findStepList   = 3
)

// FindSecurity looks a ticker up on a chosen board and optionally adds it to a list.
type FindSecurity struct {
	deps Deps
}

// NewFindSecurity returns the FindSecurity scenario.
func NewFindSecurity(deps Deps) *FindSecurity { return &FindSecurity{deps: deps} }

// Name implements Scenario.
func (s *FindSecurity) Name() Name { return FindSecurityName }

// Start implements Scenario.
func (s *FindSecurity) Start(ctx context.Context, sc *Context, _ domain.User) error {
	sc.Step = findStepMarket
	sc.Find = &FindState{}
	return s.deps.send(ctx, sc.ChatID, "Choose a market:", marketKeyboard())
}

func marketKeyboard() chat.InlineKeyboard {
	btns := make([]chat.InlineButton, 0, len(domain.SupportedMarkets)+1)
	for _, m := range domain.SupportedMarkets {
		btns = append(btns, chat.InlineButton{
			Text:   m.Title,
			Action: chat.Action{Kind: chat.KindFindMarket, Market: m.Key},
		})
	}
	btns = append(btns, chat.InlineButton{Text: menu.Cancel, Action: chat.Action{Kind: chat.KindFindCancel}})
	return menu.Inline(btns, 3)
}

// HandleMessage implements Scenario.
func (s *FindSecurity) HandleMessage(ctx context.Context, sc *Context, msg chat.Message) error {
	if menu.IsCancel(msg.Text) {
		return s.deps.cancel(ctx, sc)
	}
	text := msg.TrimmedText()
	switch sc.Step {
	case findStepMarket:
		if m, ok := domain.MarketByKey(text); ok {
			return s.chooseMarket(ctx, sc, m)
		}
		return s.deps.send(ctx, sc.ChatID, "Choose a market with the buttons above.", nil)
	case findStepTicker, findStepOffer:
		return s.lookup(ctx, sc, text)
	default:
		return s.deps.send(ctx, sc.ChatID, "Choose a list with the buttons above or press "+menu.Cancel+".", nil)
	}
}

// HandleCallback implements CallbackHandler.
func (s *FindSecurity) HandleCallback(ctx context.Context, sc *Context, cb chat.Callback) error {
	switch cb.Action.Kind {
	case chat.KindFindMarket:
		if sc.Step > findStepTicker {
			break
		}
		m, ok := domain.MarketByKey(cb.Action.Market)
		if !ok {
			return s.deps.send(ctx, sc.ChatID, "❌ Unknown market. Choose one of the buttons:", marketKeyboard())
		}
		return s.chooseMarket(ctx, sc, m)
	case chat.KindFindAdd:
		if sc.Step != findStepOffer {
			break
		}
		return s.offerLists(ctx, sc)
	case chat.KindFindTo:
		if sc.Step != findStepList {
			break
		}
		return s.addTo(ctx, sc, cb.Action.List)
	case chat.KindFindCancel:
		return s.deps.cancel(ctx, sc)
	}
	return s.deps.send(ctx, sc.ChatID, "This button is no longer active.", nil)
}

func (s *FindSecurity) chooseMarket(ctx context.Context, sc *Context, m domain.Market) error {
	sc.Find.Market = m
	sc.Find.Security = domain.SecurityInfo{}
	sc.Step = findStepTicker
	return s.deps.send(ctx, sc.ChatID,
		fmt.Sprintf("%s selected. Enter a ticker, e.g. SBER:", m.Title), menu.CancelOnly())
}

func (s *FindSecurity) lookup(ctx context.Context, sc *Context, ticker string) error {
	item := sc.Find.Market.Item(ticker)
	if item.Ticker == "" {
		return s.deps.send(ctx, sc.ChatID, "Enter a ticker, e.g. SBER:", nil)
	}
	info, err := s.deps.Prices.ResolveSecurity(ctx, item)
	if errors.Is(err, domain.ErrNotFound) {
		sc.Step = findStepTicker
		sc.Find.Security = domain.SecurityInfo{}
		return s.deps.send(ctx, sc.ChatID,
			fmt.Sprintf("❌ %s not found on %s. Enter another ticker:", item.Ticker, item.Board), nil)
	}
	if err != nil {
		_ = s.deps.send(ctx, sc.ChatID, "⚠️ The exchange is not responding. Try again later.", nil)
		return fmt.Errorf("resolve %s: %w", item.Ticker, err)
	}

	item.Ticker = info.SecID
	text := report.PriceUnavailable(info)
	q, err := s.deps.Prices.LastPrice(ctx, item)
	switch {
	case err == nil:
		text = report.Quote(info, item, q, s.deps.location())
	case !errors.Is(err, domain.ErrNotFound):
		logger.Warn(ctx, component, "find.price",
			slog.String("status", "fail"),
			slog.String("ticker", item.Ticker),
			slog.String("err", err.Error()),
		)
	}

	sc.Find.Security = info
	sc.Step = findStepOffer
	kb := chat.InlineKeyboard{Rows: [][]chat.InlineButton{{
		{Text: "➕ Add to list", Action: chat.Action{Kind: chat.KindFindAdd}},
		{Text: menu.Cancel, Action: chat.Action{Kind: chat.KindFindCancel}},
	}}}
	return s.deps.send(ctx, sc.ChatID, text, kb)
}

func (s *FindSecurity) offerLists(ctx context.Context, sc *Context) error {
	u, err := s.deps.user(sc.ChatID)
	if err != nil {
		return err
	}
	btns := make([]chat.InlineButton, 0, len(u.Lists)+1)
	for _, l := range u.Lists {
		btns = append(btns, chat.InlineButton{Text: l.Name, Action: chat.Action{Kind: chat.KindFindTo, List: l.Name}})
	}
	btns = append(btns, chat.InlineButton{Text: menu.Cancel, Action: chat.Action{Kind: chat.KindFindCancel}})
	sc.Step = findStepList
	return s.deps.send(ctx, sc.ChatID,
		fmt.Sprintf("Add %s to which list?", sc.Find.Security.SecID), menu.Inline(btns, 2))
}

func (s *FindSecurity) addTo(ctx context.Context, sc *Context, list string) error {
	item := sc.Find.Market.Item(sc.Find.Security.SecID)
	u, saved, err := s.deps.update(ctx, sc.ChatID, func(u *domain.User) error {
		return u.AddItem(list, item)
	})
	switch {
	case errors.Is(err, domain.ErrListNotFound):
		return s.deps.send(ctx, sc.ChatID, fmt.Sprintf("❌ List %s no longer exists. Choose another one:", list), nil)
	case errors.Is(err, domain.ErrDuplicateItem):
		return s.deps.send(ctx, sc.ChatID, fmt.Sprintf("%s is already in %s. Choose another list:", item.Ticker, list), nil)
	case err != nil:
		return s.deps.fail(ctx, sc, fmt.Errorf("add %s to %q: %w", item.Ticker, list, err))
	}

	sc.Complete()
	logger.Info(ctx, component, "item.added",
		slog.String("list", list),
		slog.String("ticker", item.Ticker),
		slog.String("board", item.Board),
	)
	return s.deps.send(ctx, sc.ChatID, fmt.Sprintf("✅ %s added to %s.%s", item.Ticker, list, report.UnsavedNote(saved)), menu.UserLists(u))
}

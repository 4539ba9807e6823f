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
	analyticsStepSubject  = 0
	analyticsStepFrom     = 1
	analyticsStepTo       = 2
	analyticsStepInterval = 3

	dateHint = "YYYY-MM-DD or DD.MM.YYYY"
)

// Seeder is implemented by scenarios that can begin with a known subject.
type Seeder interface {
	StartWithItem(ctx context.Context, sc *Context, subject domain.ListedItem) error
}

// Analytics collects a period and a candle interval and reports a summary.
type Analytics struct {
	deps Deps
}

// NewAnalytics returns the Analytics scenario.
func NewAnalytics(deps Deps) *Analytics { return &Analytics{deps: deps} }

// Name implements Scenario.
func (s *Analytics) Name() Name { return AnalyticsName }

// Start implements Scenario. It asks for the subject among tracked items.
func (s *Analytics) Start(ctx context.Context, sc *Context, user domain.User) error {
	items := user.Items()
	if len(items) == 0 {
		sc.Complete()
		return s.deps.send(ctx, sc.ChatID,
			"You are not tracking any securities yet. Use "+menu.Find+" first.", menu.Main())
	}
	sc.Step = analyticsStepSubject
	sc.Analytics = &AnalyticsState{}
	btns := make([]chat.InlineButton, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, li := range items {
		key := li.Item.Ticker + "/" + li.Item.Board
		if seen[key] {
			continue
		}
		seen[key] = true
		btns = append(btns, chat.InlineButton{
			Text:   li.Item.Ticker,
			Action: chat.Action{Kind: chat.KindItemAnalyze, List: li.List, Ticker: li.Item.Ticker, Board: li.Item.Board},
		})
	}
	return s.deps.send(ctx, sc.ChatID, "Which security should be analysed?", menu.Inline(btns, 3))
}

// StartWithItem implements Seeder and skips the subject step.
func (s *Analytics) StartWithItem(ctx context.Context, sc *Context, subject domain.ListedItem) error {
	sc.Analytics = &AnalyticsState{Subject: subject}
	return s.askFrom(ctx, sc)
}

func (s *Analytics) askFrom(ctx context.Context, sc *Context) error {
	sc.Step = analyticsStepFrom
	return s.deps.send(ctx, sc.ChatID,
		fmt.Sprintf("📅 %s: enter the start date (%s):", sc.Analytics.Subject.Item.Ticker, dateHint),
		menu.CancelOnly())
}

// HandleMessage implements Scenario.
func (s *Analytics) HandleMessage(ctx context.Context, sc *Context, msg chat.Message) error {
	if menu.IsCancel(msg.Text) {
		return s.deps.cancel(ctx, sc)
	}
	st := sc.Analytics
	switch sc.Step {
	case analyticsStepSubject:
		return s.deps.send(ctx, sc.ChatID, "Choose a security with the buttons above.", nil)
	case analyticsStepFrom:
		from, ok := ParseFlexibleDate(msg.Text, s.deps.location())
		if !ok {
			return s.deps.send(ctx, sc.ChatID, "❌ Unrecognised date. Enter the start date ("+dateHint+"):", nil)
		}
		st.From = from
		sc.Step = analyticsStepTo
		return s.deps.send(ctx, sc.ChatID, "📅 Now enter the end date ("+dateHint+"):", nil)
	case analyticsStepTo:
		to, ok := ParseFlexibleDate(msg.Text, s.deps.location())
		if !ok {
			return s.deps.send(ctx, sc.ChatID, "❌ Unrecognised date. Enter the end date ("+dateHint+"):", nil)
		}
		if to.Before(st.From) {
			return s.deps.send(ctx, sc.ChatID,
				fmt.Sprintf("❌ The end date cannot be before %s. Enter the end date:", st.From.Format("2006-01-02")), nil)
		}
		st.To = to
		sc.Step = analyticsStepInterval
		return s.deps.send(ctx, sc.ChatID, "⏱ Choose the candle interval:", intervalKeyboard(st))
	default:
		return s.deps.send(ctx, sc.ChatID, "Choose an interval with the buttons above.", nil)
	}
}

func intervalKeyboard(st *AnalyticsState) chat.InlineKeyboard {
	avail := domain.AvailableIntervals(st.From, st.To)
	btns := make([]chat.InlineButton, 0, len(avail))
	for _, iv := range avail {
		btns = append(btns, chat.InlineButton{
			Text:   iv.Label(),
			Action: chat.Action{Kind: chat.KindInterval, Interval: iv},
		})
	}
	return menu.Inline(btns, 2)
}

// HandleCallback implements CallbackHandler.
func (s *Analytics) HandleCallback(ctx context.Context, sc *Context, cb chat.Callback) error {
	switch {
	case cb.Action.Kind == chat.KindItemAnalyze && sc.Step == analyticsStepSubject:
		u, err := s.deps.user(sc.ChatID)
		if err != nil {
			return err
		}
		item, ok := u.FindItem(cb.Action.List, cb.Action.Ticker, cb.Action.Board)
		if !ok {
			return s.deps.send(ctx, sc.ChatID, fmt.Sprintf("❌ %s is no longer tracked.", cb.Action.Ticker), nil)
		}
		sc.Analytics.Subject = domain.ListedItem{List: cb.Action.List, Item: item}
		return s.askFrom(ctx, sc)
	case cb.Action.Kind == chat.KindInterval && sc.Step == analyticsStepInterval:
		return s.run(ctx, sc, cb.Action.Interval)
	}
	return s.deps.send(ctx, sc.ChatID, "This button is no longer active.", nil)
}

func (s *Analytics) run(ctx context.Context, sc *Context, iv domain.Interval) error {
	st := sc.Analytics
	if !domain.IntervalAllowed(iv, st.From, st.To) {
		return s.deps.send(ctx, sc.ChatID, "❌ This interval is not available for the period. Choose another:", intervalKeyboard(st))
	}
	item := st.Subject.Item
	summary, err := s.deps.Analytics.Analyze(ctx, item, iv, st.From, st.To)
	sc.Complete()
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return s.deps.send(ctx, sc.ChatID,
			fmt.Sprintf("No candles for %s in this period.", item.Ticker), menu.Main())
	case err != nil:
		_ = s.deps.send(ctx, sc.ChatID, "⚠️ Analytics is unavailable right now. Try again later.", menu.Main())
		return fmt.Errorf("analyze %s: %w", item.Ticker, err)
	}
	logger.Info(ctx, component, "analytics",
		slog.String("ticker", item.Ticker),
		slog.Int("interval", int(iv)),
		slog.Int("count", summary.Candles),
	)
	return s.deps.send(ctx, sc.ChatID, report.Summary(summary), menu.Main())
}

package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/m3rciful/moexbot/core/logger"
	"github.com/m3rciful/moexbot/core/telegram/state"
	"github.com/m3rciful/moexbot/internal/chat"
	"github.com/m3rciful/moexbot/internal/domain"
	"github.com/m3rciful/moexbot/internal/menu"
	"github.com/m3rciful/moexbot/internal/report"
	"github.com/m3rciful/moexbot/internal/scenario"
)

const priceLookupConcurrency = 4

// openList shows one row per item: price button, analytics and removal.
func (d *Dispatcher) openList(ctx context.Context, chatID int64, l domain.WatchList) error {
	if len(l.Items) == 0 {
		return d.send(ctx, chatID,
			fmt.Sprintf("📋 %s is empty. Add securities with %s.", l.Name, menu.Find), nil)
	}

	labels := d.priceLabels(ctx, l.Items)
	rows := make([][]chat.InlineButton, 0, len(l.Items))
	for i, it := range l.Items {
		rows = append(rows, []chat.InlineButton{
			{Text: labels[i], Action: chat.Action{Kind: chat.KindItemShow, List: l.Name, Ticker: it.Ticker, Board: it.Board}},
			{Text: "📊", Action: chat.Action{Kind: chat.KindItemAnalyze, List: l.Name, Ticker: it.Ticker, Board: it.Board}},
			{Text: "🗑", Action: chat.Action{Kind: chat.KindItemRemove, List: l.Name, Ticker: it.Ticker, Board: it.Board}},
		})
	}
	title := fmt.Sprintf("📋 %s", l.Name)
	if !l.IsDefault() {
		title += fmt.Sprintf("\nPrices are sent daily at %s.", l.Name)
	}
	return d.send(ctx, chatID, title, chat.InlineKeyboard{Rows: rows})
}

// priceLabels fetches last prices concurrently; a failed lookup leaves the bare ticker.
func (d *Dispatcher) priceLabels(ctx context.Context, items []domain.TickerItem) []string {
	labels := make([]string, len(items))
	lookupCtx, cancel := context.WithTimeout(ctx, d.priceTimeout)
	defer cancel()

	var g errgroup.Group
	g.SetLimit(priceLookupConcurrency)
	for i, it := range items {
		labels[i] = it.Ticker
		g.Go(func() error {
			q, err := d.prices.LastPrice(lookupCtx, it)
			if err != nil {
				if !errors.Is(err, domain.ErrNotFound) {
					logger.Debug(ctx, component, "list.price",
						slog.String("status", "fail"),
						slog.String("ticker", it.Ticker),
						slog.String("err", err.Error()),
					)
				}
				return nil
			}
			labels[i] = fmt.Sprintf("%s · %s", it.Ticker, q.Price.String())
			return nil
		})
	}
	_ = g.Wait()
	return labels
}

func (d *Dispatcher) showItem(ctx context.Context, u domain.User, list, ticker, board string) error {
	item, ok := u.FindItem(list, ticker, board)
	if !ok {
		return d.send(ctx, u.ChatID, fmt.Sprintf("%s is no longer in %s.", ticker, list), nil)
	}
	info, err := d.prices.ResolveSecurity(ctx, item)
	if errors.Is(err, domain.ErrNotFound) {
		return d.send(ctx, u.ChatID, report.SecurityNotFound(item.Ticker), nil)
	}
	if err != nil {
		_ = d.send(ctx, u.ChatID, "⚠️ The exchange is not responding. Try again later.", nil)
		return fmt.Errorf("resolve %s: %w", item.Ticker, err)
	}
	q, err := d.prices.LastPrice(ctx, item)
	if errors.Is(err, domain.ErrNotFound) {
		return d.send(ctx, u.ChatID, report.PriceUnavailable(info), nil)
	}
	if err != nil {
		_ = d.send(ctx, u.ChatID, "⚠️ The exchange is not responding. Try again later.", nil)
		return fmt.Errorf("price %s: %w", item.Ticker, err)
	}
	return d.send(ctx, u.ChatID, report.Quote(info, item, q, d.loc), nil)
}

func (d *Dispatcher) removeItem(ctx context.Context, chatID int64, list, ticker, board string) error {
	var removed domain.TickerItem
	u, err := d.users.Update(ctx, chatID, func(u *domain.User) error {
		var err error
		removed, err = u.RemoveItem(list, ticker, board)
		return err
	})
	saved := !errors.Is(err, domain.ErrNotSaved)
	if !saved {
		logger.Warn(ctx, component, "store.unsaved", slog.String("err", err.Error()))
		err = nil
	}
	switch {
	case errors.Is(err, domain.ErrItemNotFound), errors.Is(err, domain.ErrListNotFound):
		return d.send(ctx, chatID, fmt.Sprintf("%s is no longer in %s.", ticker, list), nil)
	case err != nil:
		return fmt.Errorf("remove %s from %q: %w", ticker, list, err)
	}
	logger.Info(ctx, component, "item.removed",
		slog.String("list", list),
		slog.String("ticker", removed.Ticker),
	)
	if err := d.send(ctx, chatID, fmt.Sprintf("🗑 %s removed from %s.%s", removed.Ticker, list, report.UnsavedNote(saved)), nil); err != nil {
		return err
	}
	if l, ok := u.List(list); ok {
		return d.openList(ctx, chatID, l)
	}
	return nil
}

// analyzeItem enters Analytics with the subject already known.
func (d *Dispatcher) analyzeItem(ctx context.Context, lease *state.Lease[*scenario.Context], u domain.User, list, ticker, board string) error {
	item, ok := u.FindItem(list, ticker, board)
	if !ok {
		return d.send(ctx, u.ChatID, fmt.Sprintf("%s is no longer in %s.", ticker, list), nil)
	}
	s, err := d.scenarios.Get(scenario.AnalyticsName)
	if err != nil {
		return d.reject(ctx, u.ChatID, err)
	}
	seeder, ok := s.(scenario.Seeder)
	if !ok {
		return d.reject(ctx, u.ChatID, fmt.Errorf("%s cannot be seeded: %w", s.Name(), scenario.ErrUnknownScenario))
	}
	sc := scenario.NewContext(u.ChatID, scenario.AnalyticsName)
	if err := lease.Set(sc); err != nil {
		return err
	}
	if err := seeder.StartWithItem(ctx, sc, domain.ListedItem{List: list, Item: item}); err != nil {
		lease.Clear()
		return err
	}
	d.finish(ctx, lease, sc)
	return nil
}

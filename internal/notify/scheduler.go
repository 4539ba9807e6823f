// Package notify sends price updates for lists whose name matches the clock.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/moexbot/core/logger"
	"github.com/m3rciful/moexbot/internal/chat"
	"github.com/m3rciful/moexbot/internal/domain"
	"github.com/m3rciful/moexbot/internal/events"
	"github.com/m3rciful/moexbot/internal/report"
)

const component = "scheduler"

// Users is the read-only view of the store the scheduler scans.
type Users interface {
	Snapshot() []domain.User
}

// Options configures a Scheduler.
type Options struct {
	Users    Users
	Prices   domain.PriceLookup
	Sender   chat.Sender
	Events   events.Publisher
	Location *time.Location
	// Interval between ticks; a one-minute interval is aligned to minute boundaries.
	Interval time.Duration
}

// Report summarises one tick.
type Report struct {
	RID     string
	At      time.Time
	Clock   string
	Users   int
	Lists   int
	Sent    int
	Missing int
	Failed  int
}

// Scheduler scans all users once per tick.
type Scheduler struct {
	users    Users
	prices   domain.PriceLookup
	sender   chat.Sender
	events   events.Publisher
	loc      *time.Location
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last *Report
}

// New builds a Scheduler.
func New(opts Options) *Scheduler {
	s := &Scheduler{
		users:    opts.Users,
		prices:   opts.Prices,
		sender:   opts.Sender,
		events:   opts.Events,
		loc:      opts.Location,
		interval: opts.Interval,
		now:      time.Now,
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.interval <= 0 {
		s.interval = time.Minute
	}
	if s.events == nil {
		s.events = events.Nop{}
	}
	return s
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	first := s.interval
	if s.interval == time.Minute {
		now := s.now()
		first = now.Truncate(time.Minute).Add(time.Minute).Sub(now)
	}
	logger.Info(ctx, component, "start",
		slog.Duration("interval", s.interval),
		slog.Duration("first_in", logger.RoundMS(first)),
		slog.String("tz", s.loc.String()),
	)

	timer := time.NewTimer(first)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		logger.Info(ctx, component, "stop")
		return nil
	case <-timer.C:
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		s.Tick(ctx, s.now())
		select {
		case <-ctx.Done():
			logger.Info(ctx, component, "stop")
			return nil
		case <-ticker.C:
		}
	}
}

// LastReport returns the report of the most recent tick.
func (s *Scheduler) LastReport() (Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Report{}, false
	}
	return *s.last, true
}

// Tick notifies every list named after now's "HH:MM".
func (s *Scheduler) Tick(ctx context.Context, now time.Time) Report {
	rid := uuid.NewString()
	ctx = logger.WithRID(ctx, rid)
	rep := Report{RID: rid, At: now, Clock: now.In(s.loc).Format("15:04")}
	start := time.Now()

	for _, u := range s.users.Snapshot() {
		if ctx.Err() != nil {
			break
		}
		rep.Users++
		s.notifyUser(ctx, u, &rep)
	}

	s.mu.Lock()
	r := rep
	s.last = &r
	s.mu.Unlock()

	level := slog.LevelDebug
	if rep.Lists > 0 {
		level = slog.LevelInfo
	}
	logger.Event(ctx, component, level, "tick",
		slog.String("status", tickStatus(rep)),
		slog.String("list", rep.Clock),
		slog.Int("users", rep.Users),
		slog.Int("lists", rep.Lists),
		slog.Int("sent", rep.Sent),
		slog.Int("failed", rep.Failed),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return rep
}

func tickStatus(r Report) string {
	if r.Failed > 0 {
		return "fail"
	}
	return "ok"
}

func (s *Scheduler) notifyUser(ctx context.Context, u domain.User, rep *Report) {
	ctx = logger.WithChat(ctx, u.ChatID)
	defer func() {
		if r := recover(); r != nil {
			rep.Failed++
			logger.Error(ctx, component, "tick.user.panic",
				slog.String("err", fmt.Sprint(r)),
			)
		}
	}()
	for _, l := range u.Lists {
		if !l.Triggers(rep.Clock) {
			continue
		}
		rep.Lists++
		for _, it := range l.Items {
			switch err := s.notifyItem(ctx, u.ChatID, l.Name, it, rep.RID); {
			case errors.Is(err, domain.ErrNotFound):
				rep.Missing++
			case err != nil:
				rep.Failed++
				logger.Warn(ctx, component, "tick.item.failed",
					slog.String("list", l.Name),
					slog.String("ticker", it.Ticker),
					slog.String("err", err.Error()),
				)
			default:
				rep.Sent++
			}
		}
	}
}

// notifyItem returns domain.ErrNotFound when the security is unknown; the
// user is told so and that is not a failure.
func (s *Scheduler) notifyItem(ctx context.Context, chatID int64, list string, it domain.TickerItem, rid string) (err error) {
	ev := events.New(events.TypeNotificationSent, chatID)
	ev.List, ev.Ticker, ev.Board, ev.TickID = list, it.Ticker, it.Board, rid
	defer func() {
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			ev.Type, ev.Error = events.TypeNotificationFailed, err.Error()
		}
		s.publish(ctx, ev)
	}()
	// Runs before the publish above.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	info, err := s.prices.ResolveSecurity(ctx, it)
	if errors.Is(err, domain.ErrNotFound) {
		ev.Type = events.TypeSecurityMissing
		if sendErr := s.sender.Send(ctx, chatID, report.SecurityNotFound(it.Ticker), nil); sendErr != nil {
			return sendErr
		}
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}

	text := report.PriceUnavailable(info)
	q, err := s.prices.LastPrice(ctx, it)
	switch {
	case err == nil:
		text = report.Quote(info, it, q, s.loc)
		ev.Price = q.Price.String()
	case !errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("price: %w", err)
	}
	if err := s.sender.Send(ctx, chatID, text, nil); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

func (s *Scheduler) publish(ctx context.Context, ev events.Event) {
	if err := s.events.Publish(ctx, ev); err != nil {
		logger.Debug(ctx, component, "event",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
}

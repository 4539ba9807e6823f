package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/m3rciful/moexbot/internal/chat"
	"github.com/m3rciful/moexbot/internal/domain"
	"github.com/m3rciful/moexbot/internal/events"
)

type staticUsers []domain.User

func (s staticUsers) Snapshot() []domain.User { return s }

type outbox struct {
	mu   sync.Mutex
	msgs map[int64][]string
}

func (o *outbox) Send(_ context.Context, chatID int64, text string, _ chat.Keyboard) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.msgs == nil {
		o.msgs = map[int64][]string{}
	}
	o.msgs[chatID] = append(o.msgs[chatID], text)
	return nil
}

func (o *outbox) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, m := range o.msgs {
		n += len(m)
	}
	return n
}

type lookup struct {
	panicOn string
	failOn  string
}

func (l lookup) ResolveSecurity(_ context.Context, it domain.TickerItem) (domain.SecurityInfo, error) {
	switch it.Ticker {
	case l.panicOn:
		panic("boom")
	case l.failOn:
		return domain.SecurityInfo{}, errors.New("iss down")
	case "GONE":
		return domain.SecurityInfo{}, domain.ErrNotFound
	}
	return domain.SecurityInfo{SecID: it.Ticker, ShortName: it.Ticker}, nil
}

func (lookup) LastPrice(context.Context, domain.TickerItem) (domain.Quote, error) {
	return domain.Quote{Price: decimal.NewFromInt(100)}, nil
}

type eventLog struct {
	mu  sync.Mutex
	evs []events.Event
}

func (e *eventLog) Publish(_ context.Context, ev events.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.evs = append(e.evs, ev)
	return nil
}

func (e *eventLog) Close() error { return nil }

func userWith(chatID int64, list string, tickers ...string) domain.User {
	u := domain.NewUser(chatID, "")
	if err := u.AddList(list); err != nil {
		panic(err)
	}
	for _, tk := range tickers {
		if err := u.AddItem(list, domain.TickerItem{Ticker: tk, Engine: "stock", Market: "shares", Board: "TQBR"}); err != nil {
			panic(err)
		}
	}
	return u
}

func at(hhmm string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", "2024-05-13 "+hhmm, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func TestTickMatchesListName(t *testing.T) {
	out := &outbox{}
	s := New(Options{
		Users:    staticUsers{userWith(1, "09:30", "SBER")},
		Prices:   lookup{},
		Sender:   out,
		Location: time.UTC,
	})

	rep := s.Tick(context.Background(), at("09:30"))
	if rep.Sent != 1 || out.count() != 1 {
		t.Fatalf("09:30: report=%+v sent=%d", rep, out.count())
	}
	if !strings.Contains(out.msgs[1][0], "SBER") {
		t.Fatalf("message = %q", out.msgs[1][0])
	}

	rep = s.Tick(context.Background(), at("09:31"))
	if rep.Sent != 0 || out.count() != 1 {
		t.Fatalf("09:31: report=%+v sent=%d", rep, out.count())
	}
	if last, ok := s.LastReport(); !ok || last.Clock != "09:31" {
		t.Fatalf("last report = %+v", last)
	}
}

func TestTickUsesConfiguredZone(t *testing.T) {
	out := &outbox{}
	msk := time.FixedZone("MSK", 3*60*60)
	s := New(Options{Users: staticUsers{userWith(1, "12:30", "SBER")}, Prices: lookup{}, Sender: out, Location: msk})
	if rep := s.Tick(context.Background(), at("09:30")); rep.Sent != 1 {
		t.Fatalf("report = %+v", rep)
	}
}

func TestTickIsolatesFailures(t *testing.T) {
	out := &outbox{}
	evs := &eventLog{}
	s := New(Options{
		Users: staticUsers{
			userWith(1, "09:30", "BOOM", "SBER"),
			userWith(2, "09:30", "FAIL", "GONE", "GAZP"),
		},
		Prices:   lookup{panicOn: "BOOM", failOn: "FAIL"},
		Sender:   out,
		Events:   evs,
		Location: time.UTC,
	})

	rep := s.Tick(context.Background(), at("09:30"))
	if rep.Sent != 2 || rep.Failed != 2 || rep.Missing != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if len(out.msgs[1]) != 1 || len(out.msgs[2]) != 2 {
		t.Fatalf("msgs = %v", out.msgs)
	}
	if !strings.Contains(out.msgs[2][0], "not found") {
		t.Fatalf("missing security message = %q", out.msgs[2][0])
	}

	types := map[string]int{}
	for _, ev := range evs.evs {
		types[ev.Type]++
		if ev.TickID != rep.RID {
			t.Fatalf("event tick id = %q, want %q", ev.TickID, rep.RID)
		}
	}
	if types[events.TypeNotificationSent] != 2 || types[events.TypeNotificationFailed] != 2 || types[events.TypeSecurityMissing] != 1 {
		t.Fatalf("event types = %v", types)
	}
}

func TestDefaultListNeverTriggers(t *testing.T) {
	u := domain.NewUser(1, "")
	if err := u.AddItem(domain.DefaultListName, domain.TickerItem{Ticker: "SBER"}); err != nil {
		t.Fatal(err)
	}
	out := &outbox{}
	s := New(Options{Users: staticUsers{u}, Prices: lookup{}, Sender: out, Location: time.UTC})
	for _, hhmm := range []string{"00:00", "09:30", "23:59"} {
		s.Tick(context.Background(), at(hhmm))
	}
	if out.count() != 0 {
		t.Fatalf("default list sent %d messages", out.count())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	out := &outbox{}
	s := New(Options{Users: staticUsers{}, Prices: lookup{}, Sender: out, Interval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(time.Second)
	for {
		if _, ok := s.LastReport(); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no tick within a second")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("run did not stop")
	}
}

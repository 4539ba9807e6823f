package middleware

import (
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

func TestLastSeen(t *testing.T) {
	l := &lastSeen{at: make(map[int64]time.Time)}
	t0 := time.Unix(1000, 0)
	gap := time.Second
	if !l.allow(1, t0, gap) {
		t.Fatal("first update dropped")
	}
	if l.allow(1, t0.Add(500*time.Millisecond), gap) {
		t.Fatal("update inside the gap allowed")
	}
	if !l.allow(2, t0.Add(500*time.Millisecond), gap) {
		t.Fatal("other user limited")
	}
	if !l.allow(1, t0.Add(gap), gap) {
		t.Fatal("update after the gap dropped")
	}
	l.allow(3, t0.Add(10*gap), gap)
	if len(l.at) != 1 {
		t.Fatalf("stale entries kept: %v", l.at)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	b, err := tele.NewBot(tele.Settings{Offline: true})
	if err != nil {
		t.Fatal(err)
	}
	msg := func(id int, userID int64) tele.Context {
		return b.NewContext(tele.Update{ID: id, Message: &tele.Message{
			Chat: &tele.Chat{ID: userID}, Sender: &tele.User{ID: userID}, Text: "hi",
		}})
	}
	cb := func(id int) tele.Context {
		return b.NewContext(tele.Update{ID: id, Callback: &tele.Callback{Sender: &tele.User{ID: 1}}})
	}

	var served, limited int
	h := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Hour,
		Exclude:   map[string]struct{}{"callback": {}},
		Skip:      func(c tele.Context) bool { return c.Sender().ID == 99 },
		OnLimited: func(tele.Context) error { limited++; return nil },
	})(func(tele.Context) error { served++; return nil })

	for i, c := range []tele.Context{msg(1, 1), msg(2, 1), cb(3), cb(4), msg(5, 99), msg(6, 99), msg(7, 2)} {
		if err := h(c); err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
	}
	if served != 6 || limited != 1 {
		t.Fatalf("served %d, limited %d", served, limited)
	}
}

func TestRecentUpdates(t *testing.T) {
	var r recentUpdates
	if r.seen(10) {
		t.Fatal("new id reported as seen")
	}
	if !r.seen(10) {
		t.Fatal("repeated id not detected")
	}
	for i := 0; i < len(r.ids); i++ {
		r.seen(1000 + i)
	}
	if r.seen(10) {
		t.Fatal("evicted id still reported")
	}
}

func TestRecoverMiddleware(t *testing.T) {
	b, err := tele.NewBot(tele.Settings{Offline: true})
	if err != nil {
		t.Fatal(err)
	}
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	if err := h(b.NewContext(tele.Update{ID: 1})); err == nil || err.Error() != "handler panic: boom" {
		t.Fatalf("err = %v", err)
	}
}

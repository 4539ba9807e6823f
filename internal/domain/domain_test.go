package domain

import (
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
)

func TestValidateListName(t *testing.T) {
	for _, ok := range []string{"00:00", "09:30", "23:59", " 12:00 "} {
		if err := ValidateListName(ok); err != nil {
			t.Fatalf("%q rejected: %v", ok, err)
		}
	}
	bad := map[string]error{
		"":      ErrEmptyName,
		"   ":   ErrEmptyName,
		"24:00": ErrInvalidListName,
		"9:5":   ErrInvalidListName,
		"9:30":  ErrInvalidListName,
		"12:60": ErrInvalidListName,
		"abc":   ErrInvalidListName,
	}
	for name, want := range bad {
		if err := ValidateListName(name); !errors.Is(err, want) {
			t.Fatalf("%q: got %v want %v", name, err, want)
		}
	}
}

func TestUserListLifecycle(t *testing.T) {
	u := NewUser(1, "dave")
	if err := u.AddList("10:15"); err != nil {
		t.Fatal(err)
	}
	if err := u.AddList("10:15"); !errors.Is(err, ErrDuplicateList) {
		t.Fatalf("duplicate: %v", err)
	}
	if err := u.RemoveList("myfavorites"); !errors.Is(err, ErrDefaultList) {
		t.Fatalf("default removal: %v", err)
	}
	if err := u.RemoveList("11:00"); !errors.Is(err, ErrListNotFound) {
		t.Fatalf("missing removal: %v", err)
	}
	if got := u.DeletableLists(); len(got) != 1 || got[0].Name != "10:15" {
		t.Fatalf("deletable = %+v", got)
	}
	if err := u.RemoveList("10:15"); err != nil {
		t.Fatal(err)
	}
	if len(u.Lists) != 1 || !u.Lists[0].IsDefault() {
		t.Fatalf("lists = %+v", u.Lists)
	}
}

func TestUserItems(t *testing.T) {
	u := NewUser(1, "")
	sber := TickerItem{Ticker: "SBER", Board: "TQBR"}
	if err := u.AddItem(DefaultListName, sber); err != nil {
		t.Fatal(err)
	}
	if err := u.AddItem(DefaultListName, TickerItem{Ticker: "sber", Board: "tqbr"}); !errors.Is(err, ErrDuplicateItem) {
		t.Fatalf("duplicate item: %v", err)
	}
	if err := u.AddItem("07:00", sber); !errors.Is(err, ErrListNotFound) {
		t.Fatalf("unknown list: %v", err)
	}
	if _, ok := u.FindItem("", "SBER", ""); !ok {
		t.Fatal("item not found across lists")
	}
	if got := u.Items(); len(got) != 1 || got[0].List != DefaultListName {
		t.Fatalf("items = %+v", got)
	}
	if _, err := u.RemoveItem(DefaultListName, "GAZP", ""); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("remove missing: %v", err)
	}
	removed, err := u.RemoveItem(DefaultListName, "sber", "")
	if err != nil || removed.Ticker != "SBER" {
		t.Fatalf("removed=%+v err=%v", removed, err)
	}
}

func TestItemsAreKeyedByBoard(t *testing.T) {
	u := NewUser(1, "")
	for _, board := range []string{"TQBR", "SMAL"} {
		if err := u.AddItem(DefaultListName, TickerItem{Ticker: "SBER", Board: board}); err != nil {
			t.Fatalf("add on %s: %v", board, err)
		}
	}
	if it, ok := u.FindItem(DefaultListName, "SBER", "smal"); !ok || it.Board != "SMAL" {
		t.Fatalf("find on SMAL = %+v %v", it, ok)
	}
	removed, err := u.RemoveItem(DefaultListName, "SBER", "SMAL")
	if err != nil || removed.Board != "SMAL" {
		t.Fatalf("removed=%+v err=%v", removed, err)
	}
	if items := u.Lists[0].Items; len(items) != 1 || items[0].Board != "TQBR" {
		t.Fatalf("remaining = %+v", items)
	}
	if _, err := u.RemoveItem(DefaultListName, "SBER", "SMAL"); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("second remove: %v", err)
	}
}

func TestTriggers(t *testing.T) {
	if (WatchList{Name: DefaultListName}).Triggers(DefaultListName) {
		t.Fatal("default list never triggers")
	}
	l := WatchList{Name: "09:30"}
	if !l.Triggers("09:30") || l.Triggers("09:31") {
		t.Fatal("time list must trigger only on its minute")
	}
}

func TestCloneIsDeep(t *testing.T) {
	amount := int64(3)
	price := decimal.NewFromInt(100)
	u := NewUser(1, "")
	u.AddItem(DefaultListName, TickerItem{Ticker: "SBER", Amount: &amount, BuyPrice: &price})
	c := u.Clone()
	*c.Lists[0].Items[0].Amount = 99
	c.Lists[0].Items[0].Ticker = "X"
	if *u.Lists[0].Items[0].Amount != 3 || u.Lists[0].Items[0].Ticker != "SBER" {
		t.Fatal("clone shares memory with original")
	}
}

func TestAvailableIntervals(t *testing.T) {
	day := 24 * time.Hour
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		span time.Duration
		want int
	}{
		{3 * day, 4},
		{7 * day, 5},
		{10 * day, 5},
		{31 * day, 6},
		{40 * day, 6},
	}
	for _, tc := range cases {
		got := AvailableIntervals(start, start.Add(tc.span))
		if len(got) != tc.want {
			t.Fatalf("span %v: got %v", tc.span, got)
		}
	}
	if IntervalAllowed(IntervalMonth, start, start.Add(10*day)) {
		t.Fatal("monthly candles need at least 31 days")
	}
}

func TestAvailableIntervalsAcrossDST(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatal(err)
	}
	at := func(m time.Month, d int) time.Time { return time.Date(2024, m, d, 0, 0, 0, 0, berlin) }

	if !IntervalAllowed(IntervalWeek, at(time.March, 27), at(time.April, 3)) {
		t.Fatalf("week across spring-forward: %v", AvailableIntervals(at(time.March, 27), at(time.April, 3)))
	}
	if !IntervalAllowed(IntervalMonth, at(time.March, 1), at(time.April, 1)) {
		t.Fatalf("month across spring-forward: %v", AvailableIntervals(at(time.March, 1), at(time.April, 1)))
	}
	if IntervalAllowed(IntervalWeek, at(time.March, 27), at(time.April, 2)) {
		t.Fatal("six calendar days unlocked weekly candles")
	}
	if got := CalendarDays(at(time.October, 20), at(time.October, 27).Add(23*time.Hour)); got != 7 {
		t.Fatalf("fall-back week = %d days", got)
	}
}

func TestSummarize(t *testing.T) {
	d := decimal.RequireFromString
	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	candles := []Candle{
		{Open: d("100"), Close: d("110"), High: d("112"), Low: d("98"), Volume: d("1000"), Begin: t0},
		{Open: d("110"), Close: d("105"), High: d("115"), Low: d("101"), Volume: d("5000"), Begin: t0.Add(time.Hour)},
		{Open: d("105"), Close: d("120"), High: d("121"), Low: d("104"), Volume: d("2000"), Begin: t0.Add(2 * time.Hour)},
	}
	s, err := Summarize("SBER", IntervalHour, t0, t0.Add(3*time.Hour), candles)
	if err != nil {
		t.Fatal(err)
	}
	if !s.PeriodChangePct.Equal(d("20")) {
		t.Fatalf("period change = %s", s.PeriodChangePct)
	}
	if !s.Min.Equal(d("98")) || !s.Max.Equal(d("121")) {
		t.Fatalf("range = %s..%s", s.Min, s.Max)
	}
	if !s.TotalVolume.Equal(d("8000")) || !s.PeakVolume.Equal(d("5000")) || !s.PeakBegin.Equal(t0.Add(time.Hour)) {
		t.Fatalf("volume stats = %+v", s)
	}
	if s.Candles != 3 || !s.Close.Equal(d("120")) {
		t.Fatalf("close = %s candles = %d", s.Close, s.Candles)
	}
	if _, err := Summarize("SBER", IntervalHour, t0, t0, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty series: %v", err)
	}
}

package report

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/m3rciful/moexbot/internal/domain"
)

func TestQuoteWithPosition(t *testing.T) {
	amount := int64(1500)
	buy := decimal.RequireFromString("250")
	item := domain.TickerItem{Ticker: "SBER", Amount: &amount, BuyPrice: &buy}
	q := domain.Quote{Price: decimal.RequireFromString("270.5"), Time: time.Date(2024, 5, 13, 15, 42, 10, 0, time.UTC)}

	got := Quote(domain.SecurityInfo{SecID: "SBER", ShortName: "Sberbank"}, item, q, time.UTC)
	for _, want := range []string{
		"📈 SBER (Sberbank)",
		"Price: 270.5",
		"Time: 2024-05-13 15:42:10",
		"Position: 1,500 pcs",
		"Market value: 405,750.00",
		"Approx. P&L: +30,750.00",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in:\n%s", want, got)
		}
	}
}

func TestQuoteWithoutPosition(t *testing.T) {
	zero := int64(0)
	buy := decimal.NewFromInt(1)
	item := domain.TickerItem{Ticker: "SBER", Amount: &zero, BuyPrice: &buy}
	got := Quote(domain.SecurityInfo{SecID: "SBER"}, item, domain.Quote{Price: decimal.NewFromInt(1)}, nil)
	if strings.Contains(got, "P&L") {
		t.Fatalf("zero amount must not render P&L:\n%s", got)
	}
	if !strings.Contains(got, "Time: n/a") {
		t.Fatalf("missing time placeholder:\n%s", got)
	}
}

func TestPositionAtLoss(t *testing.T) {
	amount := int64(10)
	buy := decimal.RequireFromString("100")
	pos, ok := PositionAt(domain.TickerItem{Amount: &amount, BuyPrice: &buy}, decimal.RequireFromString("90"))
	if !ok || !pos.PnL.Equal(decimal.NewFromInt(-100)) || !pos.CurrentValue.Equal(decimal.NewFromInt(900)) {
		t.Fatalf("pos = %+v ok=%v", pos, ok)
	}
	if Signed(pos.PnL) != "-100.00" {
		t.Fatalf("signed = %s", Signed(pos.PnL))
	}
}

func TestSummary(t *testing.T) {
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	s := domain.CandleSummary{
		SecID:           "GAZP",
		Interval:        domain.IntervalDay,
		From:            day,
		To:              day.AddDate(0, 0, 9),
		Candles:         10,
		Close:           decimal.RequireFromString("160.1"),
		PeriodChangePct: decimal.RequireFromString("-3.456"),
		Min:             decimal.RequireFromString("150"),
		Max:             decimal.RequireFromString("170"),
		TotalVolume:     decimal.NewFromInt(12345678),
		PeakVolume:      decimal.NewFromInt(2000000),
		PeakBegin:       day,
		PeakEnd:         day.Add(24*time.Hour - time.Second),
	}
	got := Summary(s)
	for _, want := range []string{
		"📊 GAZP, 2024-01-10 – 2024-01-19, interval 1 day",
		"- Period change: -3.46%",
		"- Range: 150 – 170",
		"- Total volume: 12,345,678",
		"- Peak volume: 2,000,000",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in:\n%s", want, got)
		}
	}
}

func TestLists(t *testing.T) {
	u := domain.NewUser(1, "")
	if err := u.AddList("09:30"); err != nil {
		t.Fatal(err)
	}
	if err := u.AddItem("09:30", domain.TickerItem{Ticker: "SBER", Board: "TQBR"}); err != nil {
		t.Fatal(err)
	}
	got := Lists(u)
	if !strings.Contains(got, "• MyFavorites (empty)") || !strings.Contains(got, "• 09:30 (1, notifies at 09:30)") {
		t.Fatalf("lists:\n%s", got)
	}
}

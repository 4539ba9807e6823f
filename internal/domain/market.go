package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Market is one supported engine/market/board routing triple.
type Market struct {
	Key    string
	Title  string
	Engine string
	Market string
	Board  string
}

// SupportedMarkets is the fixed set offered by the security search.
var SupportedMarkets = []Market{
	{Key: "TQBR", Title: "📈 TQBR", Engine: "stock", Market: "shares", Board: "TQBR"},
	{Key: "CETS", Title: "💱 CETS", Engine: "currency", Market: "selt", Board: "CETS"},
	{Key: "SPBFUT", Title: "📊 SPBFUT", Engine: "futures", Market: "forts", Board: "SPBFUT"},
}

// MarketByKey resolves a market by its key.
func MarketByKey(key string) (Market, bool) {
	for _, m := range SupportedMarkets {
		if strings.EqualFold(m.Key, key) {
			return m, true
		}
	}
	return Market{}, false
}

// Item builds a TickerItem routed through the market.
func (m Market) Item(ticker string) TickerItem {
	return TickerItem{
		Ticker: strings.ToUpper(strings.TrimSpace(ticker)),
		Engine: m.Engine,
		Market: m.Market,
		Board:  m.Board,
	}
}

// SecurityInfo describes a resolved instrument.
type SecurityInfo struct {
	SecID     string
	ShortName string
	Type      string
	Group     string
}

// Quote is the last traded price of an instrument.
type Quote struct {
	Price decimal.Decimal
	Time  time.Time
}

// Candle is one OHLCV bar.
type Candle struct {
	Open   decimal.Decimal
	Close  decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Value  decimal.Decimal
	Volume decimal.Decimal
	Begin  time.Time
	End    time.Time
}

// CandleSummary aggregates a candle series for the analytics report.
type CandleSummary struct {
	SecID               string
	Interval            Interval
	From                time.Time
	To                  time.Time
	Candles             int
	Close               decimal.Decimal
	PeriodChangePct     decimal.Decimal
	LastCandleChangePct decimal.Decimal
	Min                 decimal.Decimal
	Max                 decimal.Decimal
	TotalVolume         decimal.Decimal
	PeakVolume          decimal.Decimal
	PeakChangePct       decimal.Decimal
	PeakBegin           time.Time
	PeakEnd             time.Time
}

var hundred = decimal.NewFromInt(100)

// Summarize folds an ordered candle series. It returns ErrNotFound for an empty series.
func Summarize(secID string, interval Interval, from, to time.Time, candles []Candle) (CandleSummary, error) {
	if len(candles) == 0 {
		return CandleSummary{}, ErrNotFound
	}
	first, last := candles[0], candles[len(candles)-1]
	s := CandleSummary{
		SecID:    secID,
		Interval: interval,
		From:     from,
		To:       to,
		Candles:  len(candles),
		Close:    last.Close,
		Min:      first.Low,
		Max:      first.High,
	}
	s.PeriodChangePct = changePct(first.Open, last.Close)
	s.LastCandleChangePct = changePct(last.Open, last.Close)
	peak := -1
	for i, c := range candles {
		if c.Low.LessThan(s.Min) {
			s.Min = c.Low
		}
		if c.High.GreaterThan(s.Max) {
			s.Max = c.High
		}
		s.TotalVolume = s.TotalVolume.Add(c.Volume)
		if peak < 0 || c.Volume.GreaterThan(s.PeakVolume) {
			peak = i
			s.PeakVolume = c.Volume
		}
	}
	s.PeakBegin = candles[peak].Begin
	s.PeakEnd = candles[peak].End
	s.PeakChangePct = changePct(candles[peak].Open, candles[peak].Close)
	return s, nil
}

func changePct(open, close decimal.Decimal) decimal.Decimal {
	if open.IsZero() {
		return decimal.Zero
	}
	return close.Sub(open).Div(open).Mul(hundred)
}

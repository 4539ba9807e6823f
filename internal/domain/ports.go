package domain

import (
	"context"
	"time"
)

// PriceLookup resolves instruments and their last prices.
// Both methods return ErrNotFound when the exchange does not know the answer.
type PriceLookup interface {
	ResolveSecurity(ctx context.Context, item TickerItem) (SecurityInfo, error)
	LastPrice(ctx context.Context, item TickerItem) (Quote, error)
}

// CandleAnalytics summarises candles of an instrument over a period.
type CandleAnalytics interface {
	Analyze(ctx context.Context, item TickerItem, interval Interval, from, till time.Time) (CandleSummary, error)
}

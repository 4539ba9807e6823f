package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/m3rciful/moexbot/core/logger"
	"github.com/m3rciful/moexbot/internal/domain"
)

const component = "cache"

// quoteStore is the storage side of the cache; Redis in production.
type quoteStore interface {
	Get(ctx context.Context, key string) (domain.Quote, error)
	Set(ctx context.Context, key string, q domain.Quote, ttl time.Duration) error
}

// PriceCache stores quotes as hashes at "price:{engine}:{market}:{board}:{ticker}"
// with fields "price" and "ts" (Unix nanoseconds).
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by c.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.rdb}
}

func priceKey(item domain.TickerItem) string {
	return strings.ToLower(fmt.Sprintf("price:%s:%s:%s:%s", item.Engine, item.Market, item.Board, item.Ticker))
}

// Get returns domain.ErrNotFound when the key is absent or expired.
func (pc *PriceCache) Get(ctx context.Context, key string) (domain.Quote, error) {
	vals, err := pc.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: get %s: %w", key, err)
	}
	return decodeQuote(vals)
}

// Set stores the quote and applies ttl to the whole hash.
func (pc *PriceCache) Set(ctx context.Context, key string, q domain.Quote, ttl time.Duration) error {
	pipe := pc.rdb.TxPipeline()
	pipe.HSet(ctx, key, encodeQuote(q))
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

func encodeQuote(q domain.Quote) map[string]any {
	return map[string]any{
		"price": q.Price.String(),
		"ts":    strconv.FormatInt(q.Time.UnixNano(), 10),
	}
}

func decodeQuote(vals map[string]string) (domain.Quote, error) {
	priceStr, ok := vals["price"]
	if !ok {
		return domain.Quote{}, domain.ErrNotFound
	}
	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: parse price: %w", err)
	}
	q := domain.Quote{Price: price}
	if tsStr, ok := vals["ts"]; ok {
		ns, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			return domain.Quote{}, fmt.Errorf("redis: parse ts: %w", err)
		}
		if ns > 0 {
			q.Time = time.Unix(0, ns)
		}
	}
	return q, nil
}

// CachedLookup decorates a PriceLookup with a read-through quote cache.
// Cache failures degrade to direct lookups.
type CachedLookup struct {
	next  domain.PriceLookup
	store quoteStore
	ttl   time.Duration
}

// NewCachedLookup wraps next. ttl bounds how stale a served price may be.
func NewCachedLookup(next domain.PriceLookup, pc *PriceCache, ttl time.Duration) *CachedLookup {
	return newCachedLookup(next, pc, ttl)
}

func newCachedLookup(next domain.PriceLookup, store quoteStore, ttl time.Duration) *CachedLookup {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedLookup{next: next, store: store, ttl: ttl}
}

// ResolveSecurity is not cached.
func (c *CachedLookup) ResolveSecurity(ctx context.Context, item domain.TickerItem) (domain.SecurityInfo, error) {
	return c.next.ResolveSecurity(ctx, item)
}

// LastPrice serves from cache when fresh, otherwise asks next and stores the answer.
func (c *CachedLookup) LastPrice(ctx context.Context, item domain.TickerItem) (domain.Quote, error) {
	key := priceKey(item)
	q, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		logger.Debug(ctx, component, "price", slog.String("cache", "hit"), slog.String("ticker", item.Ticker))
		return q, nil
	case !errors.Is(err, domain.ErrNotFound):
		logger.Warn(ctx, component, "price",
			slog.String("status", "fail"),
			slog.String("ticker", item.Ticker),
			slog.String("err", err.Error()),
		)
	default:
		logger.Debug(ctx, component, "price", slog.String("cache", "miss"), slog.String("ticker", item.Ticker))
	}

	q, err = c.next.LastPrice(ctx, item)
	if err != nil {
		return domain.Quote{}, err
	}
	if err := c.store.Set(ctx, key, q, c.ttl); err != nil {
		logger.Warn(ctx, component, "price.store",
			slog.String("status", "fail"),
			slog.String("ticker", item.Ticker),
			slog.String("err", err.Error()),
		)
	}
	return q, nil
}

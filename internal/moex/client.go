// Package moex talks to the Moscow Exchange ISS REST API.
package moex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/moexbot/core/logger"
	"github.com/m3rciful/moexbot/core/netutil"
	"github.com/m3rciful/moexbot/internal/domain"
)

const (
	component = "moex"

	// DefaultBaseURL is the public ISS endpoint.
	DefaultBaseURL = "https://iss.moex.com/iss"

	userAgent = "moexbot/1.0"
	// ISS serves at most this many candles per page.
	candlesPageSize = 500
	maxCandlePages  = 200
)

// Moscow time; ISS timestamps carry no zone.
var issLocation = time.FixedZone("MSK", 3*60*60)

// Options configures the client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	Client  *http.Client
}

// Client resolves securities, last prices and candles.
type Client struct {
	base string
	http *http.Client
}

// New builds a client. A nil Options.Client gets a retrying pooled client.
func New(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	hc := opts.Client
	if hc == nil {
		hc = netutil.NewHTTPClient(netutil.ClientOptions{Timeout: opts.Timeout, RetryBackoff: 500 * time.Millisecond})
	}
	return &Client{base: base, http: hc}
}

// ResolveSecurity looks the ticker up on the given board.
func (c *Client) ResolveSecurity(ctx context.Context, item domain.TickerItem) (domain.SecurityInfo, error) {
	ticker := strings.ToUpper(strings.TrimSpace(item.Ticker))
	if ticker == "" {
		return domain.SecurityInfo{}, domain.ErrNotFound
	}
	q := url.Values{}
	q.Set("iss.only", "securities")
	q.Set("iss.meta", "off")
	q.Set("securities.columns", "SECID,SHORTNAME,TYPE,GROUP")

	var resp struct {
		Securities table `json:"securities"`
	}
	if err := c.get(ctx, securityPath(item, ticker), q, &resp); err != nil {
		return domain.SecurityInfo{}, err
	}
	rows := resp.Securities.rows()
	if len(rows) == 0 {
		return domain.SecurityInfo{}, domain.ErrNotFound
	}
	r := rows[0]
	info := domain.SecurityInfo{
		SecID:     r.str("SECID"),
		ShortName: r.str("SHORTNAME"),
		Type:      r.str("TYPE"),
		Group:     r.str("GROUP"),
	}
	if info.SecID == "" {
		return domain.SecurityInfo{}, domain.ErrNotFound
	}
	return info, nil
}

// LastPrice returns the last trade of the instrument. ErrNotFound means no LAST value.
func (c *Client) LastPrice(ctx context.Context, item domain.TickerItem) (domain.Quote, error) {
	q := url.Values{}
	q.Set("iss.only", "marketdata")
	q.Set("iss.meta", "off")
	q.Set("marketdata.columns", "SECID,LAST,TIME,SYSTIME")

	var resp struct {
		MarketData table `json:"marketdata"`
	}
	if err := c.get(ctx, securityPath(item, item.Ticker), q, &resp); err != nil {
		return domain.Quote{}, err
	}
	rows := resp.MarketData.rows()
	if len(rows) == 0 {
		return domain.Quote{}, domain.ErrNotFound
	}
	r := rows[0]
	price, ok := r.decimal("LAST")
	if !ok {
		return domain.Quote{}, domain.ErrNotFound
	}
	quote := domain.Quote{Price: price}
	if ts, ok := r.dateTime("SYSTIME"); ok {
		quote.Time = ts
	}
	if hhmmss := r.str("TIME"); hhmmss != "" {
		if clock, err := time.Parse(time.TimeOnly, hhmmss); err == nil {
			day := quote.Time
			if day.IsZero() {
				day = time.Now().In(issLocation)
			}
			quote.Time = time.Date(day.Year(), day.Month(), day.Day(),
				clock.Hour(), clock.Minute(), clock.Second(), 0, issLocation)
		}
	}
	return quote, nil
}

// Candles fetches every candle in [from, till], following ISS pagination.
func (c *Client) Candles(ctx context.Context, item domain.TickerItem, interval domain.Interval, from, till time.Time) ([]domain.Candle, error) {
	path := fmt.Sprintf("/engines/%s/markets/%s/securities/%s/candles.json",
		url.PathEscape(item.Engine), url.PathEscape(item.Market), url.PathEscape(item.Ticker))

	var out []domain.Candle
	for page := 0; page < maxCandlePages; page++ {
		q := url.Values{}
		q.Set("from", from.Format(time.DateOnly))
		q.Set("till", till.Format(time.DateOnly))
		q.Set("interval", strconv.Itoa(int(interval)))
		q.Set("iss.meta", "off")
		q.Set("start", strconv.Itoa(len(out)))

		var resp struct {
			Candles table `json:"candles"`
		}
		if err := c.get(ctx, path, q, &resp); err != nil {
			return nil, err
		}
		rows := resp.Candles.rows()
		for _, r := range rows {
			out = append(out, r.candle())
		}
		if len(rows) < candlesPageSize {
			break
		}
	}
	logger.Debug(ctx, component, "candles",
		slog.String("status", "ok"),
		slog.String("ticker", item.Ticker),
		slog.Int("count", len(out)),
	)
	return out, nil
}

// Analyze fetches candles and folds them into a summary.
func (c *Client) Analyze(ctx context.Context, item domain.TickerItem, interval domain.Interval, from, till time.Time) (domain.CandleSummary, error) {
	candles, err := c.Candles(ctx, item, interval, from, till)
	if err != nil {
		return domain.CandleSummary{}, err
	}
	return domain.Summarize(item.Ticker, interval, from, till, candles)
}

func securityPath(item domain.TickerItem, ticker string) string {
	return fmt.Sprintf("/engines/%s/markets/%s/boards/%s/securities/%s.json",
		url.PathEscape(item.Engine), url.PathEscape(item.Market),
		url.PathEscape(item.Board), url.PathEscape(ticker))
}

func (c *Client) get(ctx context.Context, path string, q url.Values, dst any) error {
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("moex: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		logger.Warn(ctx, component, "request",
			slog.String("status", "fail"),
			slog.String("op", path),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("moex: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return domain.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		logger.Warn(ctx, component, "request",
			slog.String("status", "fail"),
			slog.String("op", path),
			slog.Int("http_code", resp.StatusCode),
		)
		return fmt.Errorf("moex: %s: unexpected status %s", path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("moex: decode %s: %w", path, err)
	}
	logger.Debug(ctx, component, "request",
		slog.String("status", "ok"),
		slog.String("op", path),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return nil
}

package moex

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/m3rciful/moexbot/internal/domain"
)

var sber = domain.TickerItem{Ticker: "SBER", Engine: "stock", Market: "shares", Board: "TQBR"}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Options{BaseURL: srv.URL, Client: srv.Client()})
}

func TestResolveSecurity(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/engines/stock/markets/shares/boards/TQBR/securities/SBER.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("iss.only") != "securities" {
			t.Errorf("missing iss.only")
		}
		fmt.Fprint(w, `{"securities":{"columns":["SECID","SHORTNAME","TYPE","GROUP"],
			"data":[["SBER","Сбербанк","common_share","stock_shares"]]}}`)
	})
	info, err := c.ResolveSecurity(context.Background(), domain.TickerItem{Ticker: " sber ", Engine: "stock", Market: "shares", Board: "TQBR"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if info.SecID != "SBER" || info.ShortName != "Сбербанк" || info.Type != "common_share" {
		t.Fatalf("info = %+v", info)
	}
}

func TestResolveSecurityMiss(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"securities":{"columns":["SECID","SHORTNAME","TYPE","GROUP"],"data":[]}}`)
	})
	if _, err := c.ResolveSecurity(context.Background(), sber); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("got %v", err)
	}
}

func TestLastPrice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"marketdata":{"columns":["SECID","LAST","TIME","SYSTIME"],
			"data":[["SBER",271.35,"15:42:10","2024-05-13 15:42:25"]]}}`)
	})
	q, err := c.LastPrice(context.Background(), sber)
	if err != nil {
		t.Fatalf("last price: %v", err)
	}
	if !q.Price.Equal(decimal.RequireFromString("271.35")) {
		t.Fatalf("price = %s", q.Price)
	}
	want := time.Date(2024, 5, 13, 15, 42, 10, 0, issLocation)
	if !q.Time.Equal(want) {
		t.Fatalf("time = %s, want %s", q.Time, want)
	}
}

func TestLastPriceAbsent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"marketdata":{"columns":["SECID","LAST","TIME","SYSTIME"],"data":[["SBER",null,null,null]]}}`)
	})
	if _, err := c.LastPrice(context.Background(), sber); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("got %v", err)
	}
}

func TestServerErrorIsNotAMiss(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	_, err := c.LastPrice(context.Background(), sber)
	if err == nil || errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("got %v", err)
	}
}

func TestCandlesPaginates(t *testing.T) {
	total := candlesPageSize + 3
	var pages int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/engines/stock/markets/shares/securities/SBER/candles.json") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("interval") != "60" {
			t.Errorf("interval = %s", r.URL.Query().Get("interval"))
		}
		pages++
		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		end := start + candlesPageSize
		if end > total {
			end = total
		}
		var b strings.Builder
		b.WriteString(`{"candles":{"columns":["open","close","high","low","value","volume","begin","end"],"data":[`)
		for i := start; i < end; i++ {
			if i > start {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, `[100,101,102,99,1000.5,%d,"2024-01-10 10:00:00","2024-01-10 10:59:59"]`, i+1)
		}
		b.WriteString(`]}}`)
		fmt.Fprint(w, b.String())
	})
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	got, err := c.Candles(context.Background(), sber, domain.IntervalHour, from, from.AddDate(0, 0, 30))
	if err != nil {
		t.Fatalf("candles: %v", err)
	}
	if len(got) != total || pages != 2 {
		t.Fatalf("got %d candles over %d pages", len(got), pages)
	}
	if !got[0].Close.Equal(decimal.NewFromInt(101)) || got[0].Begin.Hour() != 10 {
		t.Fatalf("first candle = %+v", got[0])
	}

	sum, err := c.Analyze(context.Background(), sber, domain.IntervalHour, from, from.AddDate(0, 0, 30))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !sum.PeakVolume.Equal(decimal.NewFromInt(int64(total))) {
		t.Fatalf("peak volume = %s", sum.PeakVolume)
	}
}

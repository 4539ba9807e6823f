// Package report renders quotes, positions and analytics summaries as chat text.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/m3rciful/moexbot/internal/domain"
)

const (
	timeLayout = "2006-01-02 15:04:05"
	dateLayout = "2006-01-02"
)

var printer = message.NewPrinter(language.English)

// Position is the unrealized result of a held item at a given price.
type Position struct {
	Amount       int64
	BuyPrice     decimal.Decimal
	CurrentValue decimal.Decimal
	PnL          decimal.Decimal
}

// PositionAt values the item at price. ok is false when the item carries no position.
func PositionAt(item domain.TickerItem, price decimal.Decimal) (Position, bool) {
	if !item.HasPosition() {
		return Position{}, false
	}
	amount := decimal.NewFromInt(*item.Amount)
	return Position{
		Amount:       *item.Amount,
		BuyPrice:     *item.BuyPrice,
		CurrentValue: amount.Mul(price),
		PnL:          amount.Mul(price.Sub(*item.BuyPrice)),
	}, true
}

// Quote renders the last price of an item, with P&L when the item has a position.
func Quote(info domain.SecurityInfo, item domain.TickerItem, q domain.Quote, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📈 %s (%s)\n", info.SecID, info.ShortName)
	fmt.Fprintf(&b, "Price: %s\n", q.Price.String())
	if !q.Time.IsZero() {
		t := q.Time
		if loc != nil {
			t = t.In(loc)
		}
		fmt.Fprintf(&b, "Time: %s", t.Format(timeLayout))
	} else {
		b.WriteString("Time: n/a")
	}
	if pos, ok := PositionAt(item, q.Price); ok {
		b.WriteString("\n")
		fmt.Fprintf(&b, "Position: %s pcs\n", printer.Sprintf("%d", pos.Amount))
		fmt.Fprintf(&b, "Buy price: %s\n", pos.BuyPrice.String())
		fmt.Fprintf(&b, "Market value: %s\n", Money(pos.CurrentValue))
		fmt.Fprintf(&b, "Approx. P&L: %s", Signed(pos.PnL))
	}
	return b.String()
}

// SecurityNotFound is sent when the exchange no longer knows an item.
func SecurityNotFound(ticker string) string {
	return fmt.Sprintf("❌ Security %s not found on MOEX.", ticker)
}

// PriceUnavailable is sent when the security is known but has no last trade.
func PriceUnavailable(info domain.SecurityInfo) string {
	return fmt.Sprintf("📈 %s (%s)\nNo last price available right now.", info.SecID, info.ShortName)
}

// UnsavedNote is appended to a confirmation whose change could not be saved.
func UnsavedNote(saved bool) string {
	if saved {
		return ""
	}
	return "\n\n⚠️ The change is in effect but could not be saved yet. It will be saved with the next change."
}

// Summary renders a candle summary.
func Summary(s domain.CandleSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 %s, %s – %s, interval %s\n",
		s.SecID, s.From.Format(dateLayout), s.To.Format(dateLayout), s.Interval.Label())
	fmt.Fprintf(&b, "- Close: %s\n", s.Close.String())
	fmt.Fprintf(&b, "- Last candle change: %s%%\n", Signed(s.LastCandleChangePct))
	fmt.Fprintf(&b, "- Period change: %s%%\n", Signed(s.PeriodChangePct))
	fmt.Fprintf(&b, "- Range: %s – %s\n", s.Min.String(), s.Max.String())
	fmt.Fprintf(&b, "- Total volume: %s\n", Volume(s.TotalVolume))
	fmt.Fprintf(&b, "- Peak volume: %s (%s – %s, %s%%)\n",
		Volume(s.PeakVolume), s.PeakBegin.Format(timeLayout), s.PeakEnd.Format(timeLayout), Signed(s.PeakChangePct))
	fmt.Fprintf(&b, "- Candles: %s", printer.Sprintf("%d", s.Candles))
	return b.String()
}

// Lists renders the user's lists with item counts in menu order.
func Lists(u domain.User) string {
	var b strings.Builder
	b.WriteString("📋 Your lists:")
	for _, l := range u.Lists {
		b.WriteString("\n• ")
		b.WriteString(l.Name)
		switch n := len(l.Items); {
		case n == 0:
			b.WriteString(" (empty)")
		case l.IsDefault():
			fmt.Fprintf(&b, " (%d)", n)
		default:
			fmt.Fprintf(&b, " (%d, notifies at %s)", n, l.Name)
		}
	}
	return b.String()
}

// Money formats an amount with two decimals and thousands grouping.
func Money(d decimal.Decimal) string {
	return group(d.StringFixed(2))
}

// Volume formats a whole volume with thousands grouping.
func Volume(d decimal.Decimal) string {
	return printer.Sprintf("%d", d.Round(0).IntPart())
}

// Signed formats d with two decimals and an explicit plus sign.
func Signed(d decimal.Decimal) string {
	s := Money(d)
	if d.IsPositive() {
		return "+" + s
	}
	return s
}

func group(fixed string) string {
	neg := strings.HasPrefix(fixed, "-")
	fixed = strings.TrimPrefix(fixed, "-")
	intPart, frac, _ := strings.Cut(fixed, ".")
	n, err := decimal.NewFromString(intPart)
	if err != nil {
		return fixed
	}
	out := printer.Sprintf("%d", n.IntPart())
	if frac != "" {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}

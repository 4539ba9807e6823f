package moex

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/m3rciful/moexbot/internal/domain"
)

const issDateTime = time.DateTime

// table is ISS's columnar block: {"columns": [...], "data": [[...], ...]}.
type table struct {
	Columns []string            `json:"columns"`
	Data    [][]json.RawMessage `json:"data"`
}

type row struct {
	idx    map[string]int
	values []json.RawMessage
}

func (t table) rows() []row {
	if len(t.Data) == 0 {
		return nil
	}
	idx := make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		idx[strings.ToUpper(c)] = i
	}
	out := make([]row, len(t.Data))
	for i, d := range t.Data {
		out[i] = row{idx: idx, values: d}
	}
	return out
}

func (r row) raw(col string) (json.RawMessage, bool) {
	i, ok := r.idx[strings.ToUpper(col)]
	if !ok || i >= len(r.values) {
		return nil, false
	}
	v := r.values[i]
	if len(v) == 0 || string(v) == "null" {
		return nil, false
	}
	return v, true
}

func (r row) str(col string) string {
	v, ok := r.raw(col)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return strings.Trim(string(v), `"`)
	}
	return strings.TrimSpace(s)
}

func (r row) decimal(col string) (decimal.Decimal, bool) {
	v, ok := r.raw(col)
	if !ok {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(strings.Trim(string(v), `"`))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

func (r row) dateTime(col string) (time.Time, bool) {
	s := r.str(col)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(issDateTime, s, issLocation)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (r row) candle() domain.Candle {
	var c domain.Candle
	c.Open, _ = r.decimal("open")
	c.Close, _ = r.decimal("close")
	c.High, _ = r.decimal("high")
	c.Low, _ = r.decimal("low")
	c.Value, _ = r.decimal("value")
	c.Volume, _ = r.decimal("volume")
	c.Begin, _ = r.dateTime("begin")
	c.End, _ = r.dateTime("end")
	return c
}

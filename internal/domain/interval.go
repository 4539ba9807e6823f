package domain

import "time"

// Interval is an ISS candle interval code.
type Interval int

const (
	IntervalMinute   Interval = 1
	Interval10Minute Interval = 10
	IntervalHour     Interval = 60
	IntervalDay      Interval = 24
	IntervalWeek     Interval = 7
	IntervalMonth    Interval = 31
)

const (
	weekSpanDays  = 7
	monthSpanDays = 31
)

// Label returns the button caption for the interval.
func (i Interval) Label() string {
	switch i {
	case IntervalMinute:
		return "1 min"
	case Interval10Minute:
		return "10 min"
	case IntervalHour:
		return "1 hour"
	case IntervalDay:
		return "1 day"
	case IntervalWeek:
		return "1 week"
	case IntervalMonth:
		return "1 month"
	}
	return "unknown"
}

// AvailableIntervals lists the intervals offered for a date span.
// Spans of at least a week unlock weekly candles, at least 31 days monthly ones.
func AvailableIntervals(from, to time.Time) []Interval {
	out := []Interval{IntervalMinute, Interval10Minute, IntervalHour, IntervalDay}
	days := CalendarDays(from, to)
	if days >= weekSpanDays {
		out = append(out, IntervalWeek)
	}
	if days >= monthSpanDays {
		out = append(out, IntervalMonth)
	}
	return out
}

// IntervalAllowed reports whether i is offered for the span.
func IntervalAllowed(i Interval, from, to time.Time) bool {
	for _, v := range AvailableIntervals(from, to) {
		if v == i {
			return true
		}
	}
	return false
}

// CalendarDays counts date changes between from and to, each read in its own
// location. Clock times and DST shifts do not affect the result.
func CalendarDays(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a) / (24 * time.Hour))
}

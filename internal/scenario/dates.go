package scenario

import (
	"strings"
	"time"
)

var flexibleDateLayouts = []string{
	"2006-01-02 15:04",
	"2006-1-2 15:04",
	"2006-01-02",
	"2006-1-2",
	"02.01.2006 15:04",
	"2.1.2006 15:04",
	"02.01.2006",
	"2.1.2006",
}

// ParseFlexibleDate accepts ISO and dotted day-first dates, optionally with a time.
func ParseFlexibleDate(input string, loc *time.Location) (time.Time, bool) {
	s := strings.TrimSpace(input)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range flexibleDateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

package model

import (
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout = "2006-01-02"
	clockLong  = "15:04:05"
	clockShort = "15:04"
)

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: want YYYY-MM-DD", s)
	}
	return t, nil
}

// ParseClock parses HH:MM:SS or HH:MM into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	layout := clockLong
	if strings.Count(s, ":") == 1 {
		layout = clockShort
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, fmt.Errorf("time %q: want HH:MM[:SS]", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second, nil
}

// ParseWeekday accepts MONDAY..SUNDAY in any case, or the Go short names.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown day of week %q", s)
}

// When returns the order's weekday and time of day. ok is false when the order
// has no date or no time, in which case any drone schedule fits.
func (o Order) When() (day time.Weekday, clock time.Duration, ok bool, err error) {
	if o.Date == "" || o.Time == "" {
		return 0, 0, false, nil
	}
	d, err := ParseDate(o.Date)
	if err != nil {
		return 0, 0, false, err
	}
	c, err := ParseClock(o.Time)
	if err != nil {
		return 0, 0, false, err
	}
	return d.Weekday(), c, true, nil
}

// Covers reports whether the window includes day at clock, bounds inclusive.
// Malformed windows cover nothing.
func (s Schedule) Covers(day time.Weekday, clock time.Duration) bool {
	d, err := ParseWeekday(s.DayOfWeek)
	if err != nil || d != day {
		return false
	}
	from, err := ParseClock(s.From)
	if err != nil {
		return false
	}
	until, err := ParseClock(s.Until)
	if err != nil {
		return false
	}
	return clock >= from && clock <= until
}

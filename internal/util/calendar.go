package util

import (
	"time"

	"stratfolio/internal/domain"
)

// Calendar resolves calendar dates for a market. Dates are UTC midnights.
type Calendar struct {
	market domain.Market
	now    func() time.Time
}

// NewCalendar creates a Calendar for the given market using the wall clock.
func NewCalendar(market domain.Market) *Calendar {
	return &Calendar{market: market, now: time.Now}
}

// NewFixedCalendar creates a Calendar whose clock always reads now.
func NewFixedCalendar(market domain.Market, now time.Time) *Calendar {
	return &Calendar{market: market, now: func() time.Time { return now }}
}

// Now returns the current instant in UTC.
func (c *Calendar) Now() time.Time { return c.now().UTC() }

// Today returns the current date at UTC midnight.
func (c *Calendar) Today() time.Time {
	return Midnight(c.now())
}

// LastWeekday returns the most recent Monday-Friday date at or before today.
// Exchange holidays are not modelled.
func (c *Calendar) LastWeekday() time.Time {
	d := c.Today()
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// Midnight truncates t to midnight of its UTC calendar day.
func Midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a stored date. It accepts RFC 3339 timestamps, SQLite's
// "2006-01-02 15:04:05" layout and date-only strings, returning UTC.
func ParseDate(s string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05",
		time.DateOnly,
	}
	var err error
	for _, layout := range layouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}

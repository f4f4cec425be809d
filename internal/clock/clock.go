// Package clock does the program-day arithmetic. Every date it hands out is
// a civil date in the program's home timezone, represented as midnight of
// that day in that location.
package clock

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/xaenox/slimday-bot/internal/models"
)

const (
	DefaultTimezone = "Asia/Taipei"
	DateLayout      = "2006-01-02"
)

type Clock struct {
	loc *time.Location
	now func() time.Time
}

// New returns a clock for the named IANA timezone.
func New(timezone string) (*Clock, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", timezone, err)
	}
	return &Clock{loc: loc, now: time.Now}, nil
}

// NewWithNow is New with a fixed time source, for tests.
func NewWithNow(loc *time.Location, now func() time.Time) *Clock {
	return &Clock{loc: loc, now: now}
}

func (c *Clock) Location() *time.Location {
	return c.loc
}

func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// Today is the current civil date in the clock's location.
func (c *Clock) Today() time.Time {
	return c.dateOf(c.now())
}

func (c *Clock) dateOf(t time.Time) time.Time {
	y, m, d := t.In(c.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.loc)
}

// DaysBetween counts whole calendar days from start to today. Only the civil
// dates matter; both sides are moved to UTC midnight first so a DST change
// in between cannot cost or gain an hour.
func DaysBetween(start, today time.Time) int {
	sy, sm, sd := start.Date()
	ty, tm, td := today.Date()
	s := time.Date(sy, sm, sd, 0, 0, 0, 0, time.UTC)
	t := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(t.Sub(s) / (24 * time.Hour))
}

// RawDay is the 1-based program day without clamping.
func (c *Clock) RawDay(start time.Time) int {
	return DaysBetween(c.dateOf(start), c.Today()) + 1
}

// CurrentDay is the program day for a start date, clamped to the program.
func (c *Clock) CurrentDay(start time.Time) int {
	return models.ClampDay(c.RawDay(start))
}

// StartForDay returns the start date that makes today the given day.
func (c *Clock) StartForDay(day int) time.Time {
	return c.Today().AddDate(0, 0, -(day - 1))
}

// ParseDate reads a YYYY-MM-DD string as a civil date in the clock's location.
func (c *Clock) ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func taipei(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Taipei")
	require.NoError(t, err)
	return loc
}

func fixedClock(t *testing.T, now time.Time) *Clock {
	t.Helper()
	return NewWithNow(taipei(t), func() time.Time { return now })
}

func TestToday_UsesHomeTimezoneNotUTC(t *testing.T) {
	// 2026-03-09 17:30 UTC is already 2026-03-10 01:30 in Taipei.
	c := fixedClock(t, time.Date(2026, 3, 9, 17, 30, 0, 0, time.UTC))
	assert.Equal(t, "2026-03-10", FormatDate(c.Today()))
}

func TestDaysBetween(t *testing.T) {
	loc := taipei(t)
	start := time.Date(2026, 1, 30, 0, 0, 0, 0, loc)
	assert.Equal(t, 0, DaysBetween(start, start))
	assert.Equal(t, 1, DaysBetween(start, start.AddDate(0, 0, 1)))
	assert.Equal(t, 30, DaysBetween(start, time.Date(2026, 3, 1, 0, 0, 0, 0, loc)))
	assert.Equal(t, -2, DaysBetween(start, start.AddDate(0, 0, -2)))
}

func TestDaysBetween_IgnoresDST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	start := time.Date(2026, 3, 7, 0, 0, 0, 0, ny)
	today := time.Date(2026, 3, 9, 0, 0, 0, 0, ny)
	assert.Equal(t, 2, DaysBetween(start, today))
}

func TestCurrentDay_AdvancesOnePerDayThenSaturates(t *testing.T) {
	loc := taipei(t)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, loc)
	prev := 0
	for offset := 0; offset < 60; offset++ {
		now := time.Date(2026, 1, 1, 9, 0, 0, 0, loc).AddDate(0, 0, offset)
		day := fixedClock(t, now).CurrentDay(start)
		if offset < 45 {
			assert.Equal(t, prev+1, day, "offset %d", offset)
		} else {
			assert.Equal(t, 45, day, "offset %d", offset)
		}
		prev = day
	}
}

func TestCurrentDay_Clamped(t *testing.T) {
	loc := taipei(t)
	c := fixedClock(t, time.Date(2026, 6, 1, 12, 0, 0, 0, loc))

	future := time.Date(2027, 1, 1, 0, 0, 0, 0, loc)
	assert.Equal(t, 1, c.CurrentDay(future))

	past := time.Date(2001, 1, 1, 0, 0, 0, 0, loc)
	assert.Equal(t, 45, c.CurrentDay(past))
}

func TestStartForDay_InvertsCurrentDay(t *testing.T) {
	loc := taipei(t)
	for _, now := range []time.Time{
		time.Date(2026, 3, 10, 0, 0, 0, 0, loc),
		time.Date(2026, 3, 10, 23, 59, 0, 0, loc),
		time.Date(2026, 11, 1, 8, 0, 0, 0, loc),
	} {
		c := fixedClock(t, now)
		for day := 1; day <= 45; day++ {
			assert.Equal(t, day, c.CurrentDay(c.StartForDay(day)), "day %d at %s", day, now)
		}
	}
}

func TestStartForDay_Day12(t *testing.T) {
	loc := taipei(t)
	c := fixedClock(t, time.Date(2026, 10, 18, 10, 0, 0, 0, loc))
	assert.Equal(t, "2026-10-07", FormatDate(c.StartForDay(12)))
}

func TestParseDate(t *testing.T) {
	loc := taipei(t)
	c := fixedClock(t, time.Now())

	d, err := c.ParseDate("2026-10-07")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 7, 0, 0, 0, 0, loc), d)

	_, err = c.ParseDate("07/10/2026")
	assert.Error(t, err)
}

func TestNew_UnknownTimezone(t *testing.T) {
	_, err := New("Mars/Olympus")
	assert.Error(t, err)

	c, err := New("")
	require.NoError(t, err)
	assert.Equal(t, DefaultTimezone, c.Location().String())
}

package compliance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCalendarWeekOfStartsMonday(t *testing.T) {
	cal := NewCalendar(time.UTC)
	sunday := time.Date(2026, time.October, 25, 18, 0, 0, 0, time.UTC)

	week := cal.WeekOf(sunday)

	require.Len(t, week, 7)
	require.Equal(t, time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC), week[0])
	require.Equal(t, time.Monday, week[0].Weekday())
	require.Equal(t, time.Date(2026, time.October, 25, 0, 0, 0, 0, time.UTC), week[6])
}

func TestCalendarFortnightOfIncludesPreviousWeek(t *testing.T) {
	cal := NewCalendar(time.UTC)
	wednesday := time.Date(2026, time.October, 21, 9, 0, 0, 0, time.UTC)

	fortnight := cal.FortnightOf(wednesday)

	require.Len(t, fortnight, 14)
	require.Equal(t, time.Date(2026, time.October, 12, 0, 0, 0, 0, time.UTC), fortnight[0])
	require.Equal(t, cal.WeekOf(wednesday), fortnight[7:])
}

func TestCalendarDaysAcrossDSTEnd(t *testing.T) {
	cal, err := LoadCalendar("Europe/Berlin")
	require.NoError(t, err)
	loc := cal.Location()

	// Clocks go back on 2026-10-25, making that day 25 hours long.
	days := cal.Days(time.Date(2026, time.October, 24, 15, 0, 0, 0, loc), 3)

	for i, d := range days {
		require.Equal(t, 0, d.Hour(), "day %d not at midnight", i)
	}
	require.Equal(t, 25*time.Hour, days[2].Sub(days[1]))

	lateActivity := time.Date(2026, time.October, 25, 23, 30, 0, 0, loc)
	require.True(t, cal.Contains(days[1], lateActivity))
	require.False(t, cal.Contains(days[2], lateActivity))
}

func TestCalendarSpanCoversAllDates(t *testing.T) {
	cal := NewCalendar(time.UTC)
	dates := cal.FortnightOf(time.Date(2026, time.October, 21, 0, 0, 0, 0, time.UTC))

	from, to := cal.Span(dates)

	require.Equal(t, time.Date(2026, time.October, 12, 0, 0, 0, 0, time.UTC), from)
	require.Equal(t, time.Date(2026, time.October, 26, 0, 0, 0, 0, time.UTC), to)

	zeroFrom, zeroTo := cal.Span(nil)
	require.True(t, zeroFrom.IsZero())
	require.True(t, zeroTo.IsZero())
}

func TestCalendarParseDayAndKey(t *testing.T) {
	cal, err := LoadCalendar("America/New_York")
	require.NoError(t, err)

	d, err := cal.ParseDay("2026-10-19")
	require.NoError(t, err)
	require.Equal(t, "2026-10-19", cal.DayKey(d))
	require.Equal(t, "2026-10-19", cal.DayKey(d.Add(23*time.Hour)))

	_, err = cal.ParseDay("19/10/2026")
	require.Error(t, err)
}

func TestLoadCalendarUnknownZone(t *testing.T) {
	_, err := LoadCalendar("Mars/Olympus_Mons")
	require.Error(t, err)
}

package compliance

import "time"

// Calendar computes day boundaries in a single fixed location. One Calendar must
// be used for every aggregation inside an evaluation so that all days agree on
// where midnight is.
type Calendar struct {
	loc *time.Location
}

// NewCalendar returns a Calendar for loc. A nil location means UTC.
func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{loc: loc}
}

// LoadCalendar resolves an IANA zone name such as "Europe/Berlin".
func LoadCalendar(name string) (Calendar, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Calendar{}, err
	}
	return NewCalendar(loc), nil
}

// Location returns the calendar's time zone.
func (c Calendar) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// StartOfDay returns local midnight of the day containing t.
func (c Calendar) StartOfDay(t time.Time) time.Time {
	local := t.In(c.Location())
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.Location())
}

// nextDay returns local midnight of the day after the one containing t. AddDate
// keeps this correct across DST transitions where a day is 23 or 25 hours long.
func (c Calendar) nextDay(t time.Time) time.Time {
	return c.StartOfDay(t).AddDate(0, 0, 1)
}

// EndOfDay returns the last representable millisecond of the day containing t.
func (c Calendar) EndOfDay(t time.Time) time.Time {
	return c.nextDay(t).Add(-time.Millisecond)
}

// Contains reports whether instant falls within the local day of date, start
// inclusive.
func (c Calendar) Contains(date, instant time.Time) bool {
	start := c.StartOfDay(date)
	return !instant.Before(start) && instant.Before(c.nextDay(date))
}

// DayKey formats the local date of t as YYYY-MM-DD.
func (c Calendar) DayKey(t time.Time) string {
	return t.In(c.Location()).Format(time.DateOnly)
}

// ParseDay parses a YYYY-MM-DD string as local midnight.
func (c Calendar) ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, s, c.Location())
}

// Days returns n consecutive local midnights starting with the day of from.
func (c Calendar) Days(from time.Time, n int) []time.Time {
	if n <= 0 {
		return []time.Time{}
	}
	start := c.StartOfDay(from)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.AddDate(0, 0, i)
	}
	return out
}

// WeekStart returns local Monday midnight of the week containing t.
func (c Calendar) WeekStart(t time.Time) time.Time {
	day := c.StartOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// WeekOf returns the seven dates, Monday to Sunday, of the week containing t.
func (c Calendar) WeekOf(t time.Time) []time.Time {
	return c.Days(c.WeekStart(t), 7)
}

// FortnightOf returns fourteen dates: the week before the week containing t,
// followed by that week.
func (c Calendar) FortnightOf(t time.Time) []time.Time {
	return c.Days(c.WeekStart(t).AddDate(0, 0, -7), 14)
}

// Span returns the half-open instant range [first day start, day after last)
// covering dates. It is the range a caller needs to fetch from an activity store.
func (c Calendar) Span(dates []time.Time) (time.Time, time.Time) {
	if len(dates) == 0 {
		return time.Time{}, time.Time{}
	}
	from, to := c.StartOfDay(dates[0]), c.nextDay(dates[0])
	for _, d := range dates[1:] {
		if s := c.StartOfDay(d); s.Before(from) {
			from = s
		}
		if e := c.nextDay(d); e.After(to) {
			to = e
		}
	}
	return from, to
}

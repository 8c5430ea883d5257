package compliance

import "time"

// DailyStats holds per-category hour totals for one local calendar day.
// TotalHours is always the sum of the four category fields.
type DailyStats struct {
	Date         time.Time `json:"date"`
	TotalHours   float64   `json:"total_hours"`
	DrivingHours float64   `json:"driving_hours"`
	WorkHours    float64   `json:"work_hours"`
	BreakHours   float64   `json:"break_hours"`
	RestHours    float64   `json:"rest_hours"`
}

// DutyHours is driving plus other work.
func (d DailyStats) DutyHours() float64 {
	return d.DrivingHours + d.WorkHours
}

// WeeklyStats aggregates any run of days, not only weeks.
type WeeklyStats struct {
	TotalWorkHours    float64      `json:"total_work_hours"`
	TotalDrivingHours float64      `json:"total_driving_hours"`
	TotalBreakHours   float64      `json:"total_break_hours"`
	TotalRestHours    float64      `json:"total_rest_hours"`
	DailyStats        []DailyStats `json:"daily_stats"`
}

// AggregateDay sums the durations of activities that start on the local day of
// date. Activities starting on other days are ignored even if they run into it.
func (c Calendar) AggregateDay(activities []Activity, date time.Time) DailyStats {
	stats := DailyStats{Date: c.StartOfDay(date)}
	for _, a := range activities {
		if !c.Contains(date, a.Start) {
			continue
		}
		switch a.Type {
		case ActivityDriving:
			stats.DrivingHours += a.Duration
		case ActivityWork:
			stats.WorkHours += a.Duration
		case ActivityBreak:
			stats.BreakHours += a.Duration
		case ActivityRest:
			stats.RestHours += a.Duration
		}
	}
	stats.TotalHours = stats.DrivingHours + stats.WorkHours + stats.BreakHours + stats.RestHours
	return stats
}

// AggregatePeriod runs AggregateDay for each date, in the order given, and sums
// the results. Activities are not deduplicated across calls: the same record may
// legitimately be counted by a week and by the fortnight that contains it.
func (c Calendar) AggregatePeriod(activities []Activity, dates []time.Time) WeeklyStats {
	period := WeeklyStats{DailyStats: make([]DailyStats, 0, len(dates))}
	for _, date := range dates {
		day := c.AggregateDay(activities, date)
		period.DailyStats = append(period.DailyStats, day)
		period.TotalWorkHours += day.DutyHours()
		period.TotalDrivingHours += day.DrivingHours
		period.TotalBreakHours += day.BreakHours
		period.TotalRestHours += day.RestHours
	}
	return period
}

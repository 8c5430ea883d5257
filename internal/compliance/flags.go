package compliance

import "time"

// ExportLimits are the per-day thresholds behind the export compliance columns.
type ExportLimits struct {
	DailyDrivingHours   float64
	BreakAfterDutyHours float64
	MinBreakHours       float64
	MinRestHours        float64
	// NightStart and NightEnd are offsets from local midnight.
	NightStart time.Duration
	NightEnd   time.Duration
}

// DefaultExportLimits uses the 9 hour standard daily driving limit and the
// 00:00-04:00 night period.
var DefaultExportLimits = ExportLimits{
	DailyDrivingHours:   9,
	BreakAfterDutyHours: 4.5,
	MinBreakHours:       0.75,
	MinRestHours:        11,
	NightStart:          0,
	NightEnd:            4 * time.Hour,
}

// RowFlags are the per-activity compliance columns of an export row.
type RowFlags struct {
	DailyDrivingOK bool `json:"daily_driving_ok"`
	BreakOK        bool `json:"break_ok"`
	RestOK         bool `json:"rest_ok"`
	NightWork      bool `json:"night_work"`
}

// RowFlags derives the export flags for activity. The daily checks use the
// totals of sameDay, the activities that start on the same local day; the night
// work flag only looks at activity itself.
func (c Calendar) RowFlags(activity Activity, sameDay []Activity, limits ExportLimits) RowFlags {
	day := c.AggregateDay(sameDay, activity.Start)
	duty := day.DutyHours()
	return RowFlags{
		DailyDrivingOK: day.DrivingHours <= limits.DailyDrivingHours,
		BreakOK:        duty <= limits.BreakAfterDutyHours || day.BreakHours >= limits.MinBreakHours,
		RestOK:         duty == 0 || day.RestHours >= limits.MinRestHours,
		NightWork:      activity.Type.IsDuty() && c.overlapsNight(activity, limits),
	}
}

func (c Calendar) overlapsNight(a Activity, limits ExportLimits) bool {
	if limits.NightEnd <= limits.NightStart || !a.End.After(a.Start) {
		return false
	}
	for day := c.StartOfDay(a.Start); day.Before(a.End); day = day.AddDate(0, 0, 1) {
		nightStart := day.Add(limits.NightStart)
		nightEnd := day.Add(limits.NightEnd)
		if a.Start.Before(nightEnd) && a.End.After(nightStart) {
			return true
		}
	}
	return false
}

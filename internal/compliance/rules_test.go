package compliance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func day(driving, work, brk, rest float64) DailyStats {
	return DailyStats{
		TotalHours:   driving + work + brk + rest,
		DrivingHours: driving,
		WorkHours:    work,
		BreakHours:   brk,
		RestHours:    rest,
	}
}

func period(days ...DailyStats) WeeklyStats {
	p := WeeklyStats{DailyStats: days}
	for _, d := range days {
		p.TotalWorkHours += d.DutyHours()
		p.TotalDrivingHours += d.DrivingHours
		p.TotalBreakHours += d.BreakHours
		p.TotalRestHours += d.RestHours
	}
	return p
}

func TestEvaluateWeeklyDrivingBoundaryIsExclusive(t *testing.T) {
	days := make([]DailyStats, 7)
	for i := range days {
		days[i] = day(8, 0, 1, 11)
	}
	weekly := period(days...)
	require.Equal(t, 56.0, weekly.TotalDrivingHours)

	status := Evaluate(weekly, weekly)

	// 56h is not above the 56h violation limit, only above the 52h warning
	// limit. 56h of duty also exceeds 48h, which may only warn.
	require.Equal(t, []AlertCode{AlertWeeklyDrivingExceeded, AlertWeeklyWorkExceeded}, status.Alerts)
	require.Equal(t, LevelWarning, status.Level)
}

func TestEvaluateDailyWorkExceededForcesViolation(t *testing.T) {
	weekly := period(day(10, 4, 0.5, 11))

	status := Evaluate(weekly, weekly)

	require.True(t, status.HasAlert(AlertDailyWorkExceeded))
	require.True(t, status.HasAlert(AlertMissingBreaks))
	require.Equal(t, LevelViolation, status.Level)
	require.False(t, status.IsCompliant)
}

func TestEvaluateEmptyStatsIsCompliant(t *testing.T) {
	status := Evaluate(WeeklyStats{}, WeeklyStats{})

	require.Equal(t, LevelCompliant, status.Level)
	require.True(t, status.IsCompliant)
	require.NotNil(t, status.Alerts)
	require.Empty(t, status.Alerts)
}

func TestEvaluateFortnightDrivingIndependentOfWeek(t *testing.T) {
	weekly := WeeklyStats{TotalDrivingHours: 50, TotalWorkHours: 40}
	fortnight := WeeklyStats{TotalDrivingHours: 91, TotalWorkHours: 91}

	status := Evaluate(weekly, fortnight)

	require.Equal(t, LevelViolation, status.Level)
	require.True(t, status.HasAlert(AlertFortnightDrivingExceeded))
	require.False(t, status.HasAlert(AlertWeeklyDrivingExceeded))
}

func TestEvaluateMissingBreaksOnly(t *testing.T) {
	weekly := period(day(5, 0, 0.5, 12))

	status := Evaluate(weekly, weekly)

	require.True(t, status.HasAlert(AlertMissingBreaks))
	require.False(t, status.HasAlert(AlertMissingRest))
	require.Equal(t, LevelWarning, status.Level)
}

func TestEvaluateDeduplicatesAlerts(t *testing.T) {
	weekly := period(day(3, 0, 0, 5), day(2, 1, 0, 4), day(1, 0, 0, 0))

	status := Evaluate(weekly, weekly)

	require.Equal(t, []AlertCode{AlertMissingRest}, status.Alerts)
	require.Equal(t, LevelWarning, status.Level)
}

func TestEvaluateIsIdempotent(t *testing.T) {
	weekly := period(day(10, 4, 0.5, 8), day(6, 0, 0, 11), day(0, 0, 0, 24))
	fortnight := period(append(weekly.DailyStats, day(9, 2, 1, 11))...)

	first := Evaluate(weekly, fortnight)
	second := Evaluate(weekly, fortnight)

	require.Equal(t, first, second)
}

func TestEvaluateViolationIsNeverDowngraded(t *testing.T) {
	// The violating day comes first; later warning-only rules must not lower the level.
	weekly := period(day(12, 2, 1, 11), day(5, 0, 0, 5))
	weekly.TotalDrivingHours = 53

	status := Evaluate(weekly, weekly)

	require.Equal(t, LevelViolation, status.Level)
	require.Equal(t, []AlertCode{
		AlertWeeklyDrivingExceeded,
		AlertDailyWorkExceeded,
		AlertMissingBreaks,
		AlertMissingRest,
	}, status.Alerts)
}

func TestEvaluateDailyRulesIgnoreFortnightDays(t *testing.T) {
	fortnight := period(day(10, 5, 0, 0))

	status := Evaluate(WeeklyStats{}, fortnight)

	require.True(t, status.IsCompliant)
}

func TestEvaluateWeeklyWorkNeverViolatesAlone(t *testing.T) {
	status := Evaluate(WeeklyStats{TotalWorkHours: 80}, WeeklyStats{})

	require.Equal(t, LevelWarning, status.Level)
	require.Equal(t, []AlertCode{AlertWeeklyWorkExceeded}, status.Alerts)
}

// Every rule row must be triggerable on its own, and the resulting level must
// match the highest tier the row allows.
func TestEveryRuleIsIndependentlyTriggerable(t *testing.T) {
	cases := []struct {
		name      string
		weekly    WeeklyStats
		fortnight WeeklyStats
		alert     AlertCode
		level     Level
	}{
		{"weekly driving warning", WeeklyStats{TotalDrivingHours: 53}, WeeklyStats{}, AlertWeeklyDrivingExceeded, LevelWarning},
		{"weekly driving violation", WeeklyStats{TotalDrivingHours: 57}, WeeklyStats{}, AlertWeeklyDrivingExceeded, LevelViolation},
		{"weekly work warning", WeeklyStats{TotalWorkHours: 45}, WeeklyStats{}, AlertWeeklyWorkExceeded, LevelWarning},
		{"weekly work capped", WeeklyStats{TotalWorkHours: 49}, WeeklyStats{}, AlertWeeklyWorkExceeded, LevelWarning},
		{"fortnight driving warning", WeeklyStats{}, WeeklyStats{TotalDrivingHours: 86}, AlertFortnightDrivingExceeded, LevelWarning},
		{"fortnight driving violation", WeeklyStats{}, WeeklyStats{TotalDrivingHours: 90.5}, AlertFortnightDrivingExceeded, LevelViolation},
		{"daily work", WeeklyStats{DailyStats: []DailyStats{day(0, 13.5, 1, 11)}}, WeeklyStats{}, AlertDailyWorkExceeded, LevelViolation},
		{"missing breaks", WeeklyStats{DailyStats: []DailyStats{day(4, 1, 0.5, 11)}}, WeeklyStats{}, AlertMissingBreaks, LevelWarning},
		{"missing rest", WeeklyStats{DailyStats: []DailyStats{day(1, 0, 0, 10.5)}}, WeeklyStats{}, AlertMissingRest, LevelWarning},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status := Evaluate(tc.weekly, tc.fortnight)
			require.Equal(t, []AlertCode{tc.alert}, status.Alerts)
			require.Equal(t, tc.level, status.Level)
		})
	}
}

// A measure sitting exactly on a threshold never fires that tier.
func TestEvaluateThresholdsAreExclusive(t *testing.T) {
	daily := func(d DailyStats) WeeklyStats { return WeeklyStats{DailyStats: []DailyStats{d}} }
	cases := []struct {
		name      string
		weekly    WeeklyStats
		fortnight WeeklyStats
		alerts    []AlertCode
		level     Level
	}{
		{"weekly driving at 52h", WeeklyStats{TotalDrivingHours: 52}, WeeklyStats{}, []AlertCode{}, LevelCompliant},
		{"weekly work at 44h", WeeklyStats{TotalWorkHours: 44}, WeeklyStats{}, []AlertCode{}, LevelCompliant},
		{"weekly work at 48h", WeeklyStats{TotalWorkHours: 48}, WeeklyStats{}, []AlertCode{AlertWeeklyWorkExceeded}, LevelWarning},
		{"fortnight driving at 85h", WeeklyStats{}, WeeklyStats{TotalDrivingHours: 85}, []AlertCode{}, LevelCompliant},
		{"fortnight driving at 90h", WeeklyStats{}, WeeklyStats{TotalDrivingHours: 90}, []AlertCode{AlertFortnightDrivingExceeded}, LevelWarning},
		{"daily duty at 13h", daily(day(9, 4, 1, 11)), WeeklyStats{}, []AlertCode{}, LevelCompliant},
		{"duty at 4.5h with short break", daily(day(4.5, 0, 0.5, 11)), WeeklyStats{}, []AlertCode{}, LevelCompliant},
		{"break at 0.75h", daily(day(5, 0, 0.75, 11)), WeeklyStats{}, []AlertCode{}, LevelCompliant},
		{"rest at 11h", daily(day(2, 0, 0, 11)), WeeklyStats{}, []AlertCode{}, LevelCompliant},
		{"no duty without rest", daily(day(0, 0, 0, 0)), WeeklyStats{}, []AlertCode{}, LevelCompliant},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status := Evaluate(tc.weekly, tc.fortnight)
			require.Equal(t, tc.alerts, status.Alerts)
			require.Equal(t, tc.level, status.Level)
		})
	}
}

func TestRuleSetAppendRow(t *testing.T) {
	rules := RuleSet{
		Limits: append(append([]LimitRule(nil), DefaultRules.Limits...), LimitRule{
			Alert: "dailyDrivingExceeded", Window: WindowDay, Measure: MeasureDriving,
			WarnAbove: 9, ViolateAbove: 10, Ceiling: LevelViolation,
		}),
		Sufficiency: DefaultRules.Sufficiency,
	}
	weekly := period(day(9.5, 0, 1, 11))

	status := rules.Evaluate(weekly, weekly)

	require.Equal(t, []AlertCode{"dailyDrivingExceeded"}, status.Alerts)
	require.Equal(t, LevelWarning, status.Level)
	require.True(t, Evaluate(weekly, weekly).IsCompliant)
}

func TestEvaluateOverAggregatedActivities(t *testing.T) {
	cal := NewCalendar(time.UTC)
	monday := time.Date(2026, time.October, 12, 0, 0, 0, 0, time.UTC)
	var activities []Activity
	for i := 0; i < 7; i++ {
		d := monday.AddDate(0, 0, i)
		activities = append(activities,
			activity(ActivityRest, d, 0, 11),
			activity(ActivityDriving, d.Add(11*time.Hour), 0, 4),
			activity(ActivityBreak, d.Add(15*time.Hour), 0, 1),
			activity(ActivityDriving, d.Add(16*time.Hour), 0, 4),
		)
	}

	weekly := cal.AggregatePeriod(activities, cal.WeekOf(monday))
	fortnight := cal.AggregatePeriod(activities, cal.FortnightOf(monday))
	status := Evaluate(weekly, fortnight)

	require.Equal(t, 56.0, weekly.TotalDrivingHours)
	require.Equal(t, 56.0, fortnight.TotalDrivingHours)
	require.Equal(t, []AlertCode{AlertWeeklyDrivingExceeded, AlertWeeklyWorkExceeded}, status.Alerts)
	require.Equal(t, LevelWarning, status.Level)
}

func TestLevelOrdering(t *testing.T) {
	require.True(t, LevelViolation.AtLeast(LevelWarning))
	require.True(t, LevelWarning.AtLeast(LevelCompliant))
	require.False(t, LevelCompliant.AtLeast(LevelWarning))
	require.True(t, LevelWarning.AtLeast(LevelWarning))
}

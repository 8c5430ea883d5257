package compliance

import "math"

// Level is the severity of a compliance result.
type Level string

const (
	LevelCompliant Level = "compliant"
	LevelWarning   Level = "warning"
	LevelViolation Level = "violation"
)

func (l Level) rank() int {
	switch l {
	case LevelWarning:
		return 1
	case LevelViolation:
		return 2
	}
	return 0
}

// AtLeast reports whether l is as severe as other or more.
func (l Level) AtLeast(other Level) bool {
	return l.rank() >= other.rank()
}

func maxLevel(a, b Level) Level {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

func minLevel(a, b Level) Level {
	if b.rank() < a.rank() {
		return b
	}
	return a
}

// AlertCode identifies the rule that produced an alert.
type AlertCode string

const (
	AlertWeeklyDrivingExceeded    AlertCode = "weeklyDrivingExceeded"
	AlertWeeklyWorkExceeded       AlertCode = "weeklyWorkExceeded"
	AlertFortnightDrivingExceeded AlertCode = "fortnightDrivingExceeded"
	AlertDailyWorkExceeded        AlertCode = "dailyWorkExceeded"
	AlertMissingBreaks            AlertCode = "missingBreaks"
	AlertMissingRest              AlertCode = "missingRest"
)

// Window selects which aggregate a LimitRule reads.
type Window int

const (
	// WindowWeek reads the weekly totals.
	WindowWeek Window = iota
	// WindowFortnight reads the fortnight totals.
	WindowFortnight
	// WindowDay is checked once per day of the weekly window.
	WindowDay
)

// Measure selects the quantity a rule compares.
type Measure int

const (
	MeasureDriving Measure = iota
	MeasureDuty
	MeasureBreak
	MeasureRest
)

func (m Measure) ofPeriod(p WeeklyStats) float64 {
	switch m {
	case MeasureDriving:
		return p.TotalDrivingHours
	case MeasureDuty:
		return p.TotalWorkHours
	case MeasureBreak:
		return p.TotalBreakHours
	case MeasureRest:
		return p.TotalRestHours
	}
	return 0
}

func (m Measure) ofDay(d DailyStats) float64 {
	switch m {
	case MeasureDriving:
		return d.DrivingHours
	case MeasureDuty:
		return d.DutyHours()
	case MeasureBreak:
		return d.BreakHours
	case MeasureRest:
		return d.RestHours
	}
	return 0
}

// NoThreshold disables a tier of a LimitRule.
var NoThreshold = math.Inf(1)

// LimitRule fires when a measure strictly exceeds a threshold. Exceeding
// ViolateAbove yields a violation and exceeding WarnAbove a warning; either is
// then capped at Ceiling, so a rule with Ceiling LevelWarning can never force a
// violation on its own.
type LimitRule struct {
	Alert        AlertCode
	Window       Window
	Measure      Measure
	WarnAbove    float64
	ViolateAbove float64
	Ceiling      Level
}

func (r LimitRule) level(value float64) (Level, bool) {
	var lvl Level
	switch {
	case value > r.ViolateAbove:
		lvl = LevelViolation
	case value > r.WarnAbove:
		lvl = LevelWarning
	default:
		return LevelCompliant, false
	}
	if r.Ceiling != "" {
		lvl = minLevel(lvl, r.Ceiling)
	}
	return lvl, true
}

// SufficiencyRule is checked per day: once duty time exceeds DutyAbove, the
// measure must reach AtLeast or the rule fires at Severity.
type SufficiencyRule struct {
	Alert     AlertCode
	DutyAbove float64
	Measure   Measure
	AtLeast   float64
	Severity  Level
}

func (r SufficiencyRule) fires(day DailyStats) bool {
	return day.DutyHours() > r.DutyAbove && r.Measure.ofDay(day) < r.AtLeast
}

// RuleSet is an ordered rule table. Period limits are evaluated first in table
// order, then every day of the weekly window runs the day limits followed by the
// sufficiency rules.
type RuleSet struct {
	Limits      []LimitRule
	Sufficiency []SufficiencyRule
}

// DefaultRules is the EU drivers'-hours rule table.
var DefaultRules = RuleSet{
	Limits: []LimitRule{
		{Alert: AlertWeeklyDrivingExceeded, Window: WindowWeek, Measure: MeasureDriving, WarnAbove: 52, ViolateAbove: 56, Ceiling: LevelViolation},
		{Alert: AlertWeeklyWorkExceeded, Window: WindowWeek, Measure: MeasureDuty, WarnAbove: 44, ViolateAbove: 48, Ceiling: LevelWarning},
		{Alert: AlertFortnightDrivingExceeded, Window: WindowFortnight, Measure: MeasureDriving, WarnAbove: 85, ViolateAbove: 90, Ceiling: LevelViolation},
		{Alert: AlertDailyWorkExceeded, Window: WindowDay, Measure: MeasureDuty, WarnAbove: NoThreshold, ViolateAbove: 13, Ceiling: LevelViolation},
	},
	Sufficiency: []SufficiencyRule{
		{Alert: AlertMissingBreaks, DutyAbove: 4.5, Measure: MeasureBreak, AtLeast: 0.75, Severity: LevelWarning},
		{Alert: AlertMissingRest, DutyAbove: 0, Measure: MeasureRest, AtLeast: 11, Severity: LevelWarning},
	},
}

// ComplianceStatus is the outcome of one evaluation. Alerts holds each code at
// most once, in the order the rules first fired.
type ComplianceStatus struct {
	Level       Level       `json:"level"`
	Alerts      []AlertCode `json:"alerts"`
	IsCompliant bool        `json:"is_compliant"`
}

// HasAlert reports whether code was raised.
func (s ComplianceStatus) HasAlert(code AlertCode) bool {
	for _, a := range s.Alerts {
		if a == code {
			return true
		}
	}
	return false
}

type evaluation struct {
	level  Level
	alerts []AlertCode
	seen   map[AlertCode]struct{}
}

// raise never lowers the current level.
func (e *evaluation) raise(code AlertCode, lvl Level) {
	e.level = maxLevel(e.level, lvl)
	if _, ok := e.seen[code]; ok {
		return
	}
	e.seen[code] = struct{}{}
	e.alerts = append(e.alerts, code)
}

// Evaluate applies DefaultRules.
func Evaluate(weekly, fortnight WeeklyStats) ComplianceStatus {
	return DefaultRules.Evaluate(weekly, fortnight)
}

// Evaluate checks weekly and fortnight aggregates against the rule table.
// Daily rules only look at weekly.DailyStats. Empty stats are compliant.
func (rs RuleSet) Evaluate(weekly, fortnight WeeklyStats) ComplianceStatus {
	ev := &evaluation{
		level:  LevelCompliant,
		alerts: make([]AlertCode, 0),
		seen:   make(map[AlertCode]struct{}),
	}

	for _, rule := range rs.Limits {
		var value float64
		switch rule.Window {
		case WindowWeek:
			value = rule.Measure.ofPeriod(weekly)
		case WindowFortnight:
			value = rule.Measure.ofPeriod(fortnight)
		default:
			continue
		}
		if lvl, ok := rule.level(value); ok {
			ev.raise(rule.Alert, lvl)
		}
	}

	for _, day := range weekly.DailyStats {
		for _, rule := range rs.Limits {
			if rule.Window != WindowDay {
				continue
			}
			if lvl, ok := rule.level(rule.Measure.ofDay(day)); ok {
				ev.raise(rule.Alert, lvl)
			}
		}
		for _, rule := range rs.Sufficiency {
			if rule.fires(day) {
				ev.raise(rule.Alert, rule.Severity)
			}
		}
	}

	return ComplianceStatus{
		Level:       ev.level,
		Alerts:      ev.alerts,
		IsCompliant: ev.level == LevelCompliant,
	}
}

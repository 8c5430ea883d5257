// Package compliance implements the driving-time compliance engine: it reduces a
// driver's activity log into daily and period totals and evaluates them against
// EU drivers'-hours style limits.
//
// Everything in this package is pure. Callers materialise the activity list
// (usually from an activity store range query) before aggregating.
package compliance

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ActivityType is the closed set of activity categories a driver can log.
type ActivityType string

const (
	ActivityDriving ActivityType = "driving"
	ActivityWork    ActivityType = "work"
	ActivityBreak   ActivityType = "break"
	ActivityRest    ActivityType = "rest"
)

// ActivityTypes lists every valid ActivityType in display order.
var ActivityTypes = []ActivityType{ActivityDriving, ActivityWork, ActivityBreak, ActivityRest}

// ErrInvalidActivity is returned by Validate for malformed records.
var ErrInvalidActivity = errors.New("invalid activity")

// ParseActivityType normalises s and returns the matching ActivityType.
func ParseActivityType(s string) (ActivityType, error) {
	t := ActivityType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown activity type %q", ErrInvalidActivity, s)
	}
	return t, nil
}

// Valid reports whether t belongs to the closed activity set.
func (t ActivityType) Valid() bool {
	switch t {
	case ActivityDriving, ActivityWork, ActivityBreak, ActivityRest:
		return true
	}
	return false
}

// IsDuty reports whether the activity counts as on-duty time (driving or other work).
func (t ActivityType) IsDuty() bool {
	return t == ActivityDriving || t == ActivityWork
}

// Activity is one continuous period of a single activity type.
//
// Duration is stored in hours and is usually HoursBetween(Start, End); manually
// entered durations may deviate slightly from the timestamp delta.
type Activity struct {
	ID       string       `json:"id,omitempty"`
	Start    time.Time    `json:"start_date_time"`
	End      time.Time    `json:"end_date_time"`
	Duration float64      `json:"duration"`
	Type     ActivityType `json:"type"`
}

// HoursBetween returns the length of [start, end) in fractional hours.
func HoursBetween(start, end time.Time) float64 {
	return end.Sub(start).Hours()
}

// Validate checks the record invariants: a known type, End after Start and a
// positive duration.
func (a Activity) Validate() error {
	if !a.Type.Valid() {
		return fmt.Errorf("%w: unknown activity type %q", ErrInvalidActivity, a.Type)
	}
	if a.Start.IsZero() || a.End.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidActivity)
	}
	if !a.End.After(a.Start) {
		return fmt.Errorf("%w: end must be after start", ErrInvalidActivity)
	}
	if a.Duration <= 0 {
		return fmt.Errorf("%w: duration must be > 0", ErrInvalidActivity)
	}
	return nil
}

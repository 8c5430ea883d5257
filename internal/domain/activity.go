package domain

import (
	"time"

	"example.com/drivinghours/internal/compliance"
)

// ActivityAggregate is the stored form of a driver activity.
type ActivityAggregate struct {
	ID            string
	TenantID      string
	DriverID      string
	Type          compliance.ActivityType
	StartedAt     time.Time
	EndedAt       time.Time
	DurationHours float64
	Source        string
	Version       int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Record projects the aggregate onto the compliance engine's input type.
func (a ActivityAggregate) Record() compliance.Activity {
	return compliance.Activity{
		ID:       a.ID,
		Start:    a.StartedAt,
		End:      a.EndedAt,
		Duration: a.DurationHours,
		Type:     a.Type,
	}
}

// Records projects a slice of aggregates.
func Records(aggs []ActivityAggregate) []compliance.Activity {
	out := make([]compliance.Activity, 0, len(aggs))
	for _, agg := range aggs {
		out = append(out, agg.Record())
	}
	return out
}

// DriverRef identifies a driver within a tenant.
type DriverRef struct {
	TenantID string
	DriverID string
}

// ComplianceAlert is a non-compliant evaluation worth publishing.
type ComplianceAlert struct {
	TenantID              string
	DriverID              string
	Date                  string
	Level                 compliance.Level
	Alerts                []compliance.AlertCode
	WeeklyDrivingHours    float64
	FortnightDrivingHours float64
	EvaluatedAt           time.Time
}

// ComplianceReport bundles the aggregates and the evaluation for one date.
type ComplianceReport struct {
	DriverID    string
	Date        time.Time
	Day         compliance.DailyStats
	Weekly      compliance.WeeklyStats
	Fortnight   compliance.WeeklyStats
	Status      compliance.ComplianceStatus
	EvaluatedAt time.Time
}

// Alert converts a report into the alert published for it.
func (r ComplianceReport) Alert(tenantID string, cal compliance.Calendar) ComplianceAlert {
	return ComplianceAlert{
		TenantID:              tenantID,
		DriverID:              r.DriverID,
		Date:                  cal.DayKey(r.Date),
		Level:                 r.Status.Level,
		Alerts:                r.Status.Alerts,
		WeeklyDrivingHours:    r.Weekly.TotalDrivingHours,
		FortnightDrivingHours: r.Fortnight.TotalDrivingHours,
		EvaluatedAt:           r.EvaluatedAt,
	}
}

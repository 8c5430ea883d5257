package events

import "time"

// ComplianceAlerted is emitted by the monitor for a non-compliant driver day.
type ComplianceAlerted struct {
	TenantID              string    `json:"tenant_id"`
	DriverID              string    `json:"driver_id"`
	Date                  string    `json:"date"`
	Level                 string    `json:"level"`
	Alerts                []string  `json:"alerts"`
	WeeklyDrivingHours    float64   `json:"weekly_driving_hours"`
	FortnightDrivingHours float64   `json:"fortnight_driving_hours"`
	EvaluatedAt           time.Time `json:"evaluated_at"`
}

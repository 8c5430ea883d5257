package api

import (
	"time"

	"example.com/drivinghours/internal/compliance"
	"example.com/drivinghours/internal/domain"
	"example.com/drivinghours/internal/export"
)

// ActivityRequest is the body of POST and PUT on activities. Duration may be
// omitted, in which case it is derived from the timestamps.
type ActivityRequest struct {
	DriverID      string    `json:"driver_id"`
	Type          string    `json:"type"`
	StartDateTime time.Time `json:"start_date_time"`
	EndDateTime   time.Time `json:"end_date_time"`
	Duration      float64   `json:"duration,omitempty"`
	Source        string    `json:"source,omitempty"`
}

// ActivityView is the public form of a stored activity.
type ActivityView struct {
	ActivityID    string                  `json:"activity_id"`
	TenantID      string                  `json:"tenant_id"`
	DriverID      string                  `json:"driver_id"`
	Type          compliance.ActivityType `json:"type"`
	StartDateTime time.Time               `json:"start_date_time"`
	EndDateTime   time.Time               `json:"end_date_time"`
	Duration      float64                 `json:"duration"`
	Source        string                  `json:"source"`
	Version       int                     `json:"version"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

// CreateActivityResponse adds the idempotency outcome to the view.
type CreateActivityResponse struct {
	ActivityView
	Replay bool `json:"idempotent_replay"`
}

// ListActivitiesResponse packages list results.
type ListActivitiesResponse struct {
	Items      []ActivityView `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// DailyStatsResponse wraps the totals for one local day.
type DailyStatsResponse struct {
	DriverID string `json:"driver_id"`
	Date     string `json:"date"`
	compliance.DailyStats
}

// ComplianceResponse is the week and fortnight evaluation for one date.
type ComplianceResponse struct {
	DriverID    string                      `json:"driver_id"`
	Date        string                      `json:"date"`
	Day         compliance.DailyStats       `json:"day"`
	Weekly      compliance.WeeklyStats      `json:"weekly"`
	Fortnight   compliance.WeeklyStats      `json:"fortnight"`
	Status      compliance.ComplianceStatus `json:"status"`
	EvaluatedAt time.Time                   `json:"evaluated_at"`
}

// ExportResponse is the JSON rendition of an export.
type ExportResponse struct {
	DriverID string       `json:"driver_id"`
	Rows     []export.Row `json:"rows"`
}

func toActivityView(agg domain.ActivityAggregate) ActivityView {
	return ActivityView{
		ActivityID:    agg.ID,
		TenantID:      agg.TenantID,
		DriverID:      agg.DriverID,
		Type:          agg.Type,
		StartDateTime: agg.StartedAt,
		EndDateTime:   agg.EndedAt,
		Duration:      agg.DurationHours,
		Source:        agg.Source,
		Version:       agg.Version,
		CreatedAt:     agg.CreatedAt,
		UpdatedAt:     agg.UpdatedAt,
	}
}

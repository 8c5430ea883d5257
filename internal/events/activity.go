// Package events defines the event payloads exchanged over Kafka.
package events

import "time"

// Event types written to the outbox.
const (
	TypeActivityLogged     = "activity.logged"
	TypeActivityDeleted    = "activity.deleted"
	TypeComplianceAlerted  = "compliance.alerted"
	TypeTachographRecorded = "tachograph.record"
)

// Topics.
const (
	TopicDriverActivity    = "driver_activity_events"
	TopicComplianceAlerts  = "compliance_alerts"
	TopicTachographRecords = "tachograph_records"
)

// ActivityLogged is emitted when an activity is created or edited. Version
// increases with every edit.
type ActivityLogged struct {
	ActivityID    string    `json:"activity_id"`
	TenantID      string    `json:"tenant_id"`
	DriverID      string    `json:"driver_id"`
	Type          string    `json:"type"`
	StartedAt     time.Time `json:"start_date_time"`
	EndedAt       time.Time `json:"end_date_time"`
	DurationHours float64   `json:"duration"`
	Source        string    `json:"source"`
	Version       int       `json:"version"`
}

// ActivityDeleted is emitted when an activity is removed.
type ActivityDeleted struct {
	ActivityID string    `json:"activity_id"`
	TenantID   string    `json:"tenant_id"`
	DriverID   string    `json:"driver_id"`
	DeletedAt  time.Time `json:"deleted_at"`
}

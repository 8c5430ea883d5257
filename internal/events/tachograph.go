package events

import "time"

// TachographRecord is one activity segment downloaded from a vehicle unit or
// driver card. RecordID is unique per device and makes redelivery harmless.
type TachographRecord struct {
	RecordID  string    `json:"record_id"`
	TenantID  string    `json:"tenant_id"`
	DriverID  string    `json:"driver_id"`
	DeviceID  string    `json:"device_id,omitempty"`
	Activity  string    `json:"activity"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

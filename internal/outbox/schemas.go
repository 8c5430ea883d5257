package outbox

import "example.com/drivinghours/internal/events"

const activityLoggedSchema = `{
  "type": "object",
  "title": "ActivityLogged",
  "properties": {
    "activity_id": {"type": "string"},
    "tenant_id": {"type": "string"},
    "driver_id": {"type": "string"},
    "type": {"type": "string", "enum": ["driving", "work", "break", "rest"]},
    "start_date_time": {"type": "string", "format": "date-time"},
    "end_date_time": {"type": "string", "format": "date-time"},
    "duration": {"type": "number", "exclusiveMinimum": 0},
    "source": {"type": "string"},
    "version": {"type": "integer", "minimum": 1}
  },
  "required": ["activity_id", "tenant_id", "driver_id", "type", "start_date_time", "end_date_time", "duration", "version"],
  "additionalProperties": false
}`

const activityDeletedSchema = `{
  "type": "object",
  "title": "ActivityDeleted",
  "properties": {
    "activity_id": {"type": "string"},
    "tenant_id": {"type": "string"},
    "driver_id": {"type": "string"},
    "deleted_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "tenant_id", "driver_id", "deleted_at"],
  "additionalProperties": false
}`

const complianceAlertedSchema = `{
  "type": "object",
  "title": "ComplianceAlerted",
  "properties": {
    "tenant_id": {"type": "string"},
    "driver_id": {"type": "string"},
    "date": {"type": "string", "format": "date"},
    "level": {"type": "string", "enum": ["compliant", "warning", "violation"]},
    "alerts": {"type": "array", "items": {"type": "string"}},
    "weekly_driving_hours": {"type": "number"},
    "fortnight_driving_hours": {"type": "number"},
    "evaluated_at": {"type": "string", "format": "date-time"}
  },
  "required": ["tenant_id", "driver_id", "date", "level", "alerts", "evaluated_at"],
  "additionalProperties": false
}`

// schemaCatalog maps event type to its JSON schema.
var schemaCatalog = map[string]string{
	events.TypeActivityLogged:    activityLoggedSchema,
	events.TypeActivityDeleted:   activityDeletedSchema,
	events.TypeComplianceAlerted: complianceAlertedSchema,
}

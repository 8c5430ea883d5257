package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"example.com/drivinghours/internal/compliance"
	"example.com/drivinghours/internal/domain"
	"example.com/drivinghours/internal/events"
)

type activityLogger interface {
	LogActivity(context.Context, domain.LogActivityInput) (*domain.ActivityAggregate, bool, error)
}

// tachographActivities maps vehicle unit activity names onto the four
// activity types. Availability counts as other work.
var tachographActivities = map[string]compliance.ActivityType{
	"driving":      compliance.ActivityDriving,
	"drive":        compliance.ActivityDriving,
	"work":         compliance.ActivityWork,
	"other_work":   compliance.ActivityWork,
	"availability": compliance.ActivityWork,
	"break":        compliance.ActivityBreak,
	"rest":         compliance.ActivityRest,
}

// IngestHandler records tachograph segments as driver activities.
type IngestHandler struct {
	svc    activityLogger
	logger *slog.Logger
}

// NewIngestHandler constructs an IngestHandler.
func NewIngestHandler(svc activityLogger, logger *slog.Logger) *IngestHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestHandler{svc: svc, logger: logger.With(slog.String("component", "ingest"))}
}

// Handle implements Handler. Records that can never be stored are logged and
// skipped; only storage failures are returned so the offset is retried.
func (h *IngestHandler) Handle(ctx context.Context, msg Message) error {
	if msg.EventType != "" && msg.EventType != events.TypeTachographRecorded {
		return nil
	}

	var record events.TachographRecord
	if err := json.Unmarshal(msg.Payload, &record); err != nil {
		h.skip(ctx, msg, "malformed", err)
		return nil
	}
	if record.TenantID == "" {
		record.TenantID = msg.TenantID
	}
	if record.RecordID == "" || record.TenantID == "" {
		h.skip(ctx, msg, "unidentified", errors.New("record_id and tenant_id are required"))
		return nil
	}

	typ, ok := tachographActivities[strings.ToLower(strings.TrimSpace(record.Activity))]
	if !ok {
		h.skip(ctx, msg, "unknown_activity", errors.New("unknown activity "+record.Activity))
		return nil
	}

	source := "tachograph"
	if record.DeviceID != "" {
		source += ":" + record.DeviceID
	}
	agg, replay, err := h.svc.LogActivity(ctx, domain.LogActivityInput{
		TenantID:       record.TenantID,
		DriverID:       record.DriverID,
		Type:           typ,
		StartedAt:      record.StartedAt,
		EndedAt:        record.EndedAt,
		Source:         source,
		IdempotencyKey: "tachograph:" + record.RecordID,
	})
	if errors.Is(err, domain.ErrInvalidActivity) {
		h.skip(ctx, msg, "invalid", err)
		return nil
	}
	if err != nil {
		return err
	}

	h.logger.DebugContext(ctx, "tachograph record stored",
		slog.String("record_id", record.RecordID),
		slog.String("activity_id", agg.ID),
		slog.Bool("replay", replay),
	)
	return nil
}

func (h *IngestHandler) skip(ctx context.Context, msg Message, reason string, err error) {
	recordSkipped(reason)
	h.logger.WarnContext(ctx, "skipping tachograph record",
		slog.String("reason", reason),
		slog.Int64("offset", msg.Offset),
		slog.Any("error", err),
	)
}

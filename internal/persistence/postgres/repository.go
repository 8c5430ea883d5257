package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/drivinghours/internal/compliance"
	"example.com/drivinghours/internal/domain"
	"example.com/drivinghours/internal/events"
	"example.com/drivinghours/internal/observability"
)

// Repository provides Postgres-backed persistence for activities and outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const activityColumns = `activity_id, tenant_id, driver_id, activity_type, started_at, ended_at, duration_hours, source, version, created_at, updated_at`

// withTenant runs fn in a transaction scoped to tenantID for row-level security.
func (r *Repository) withTenant(ctx context.Context, tenantID string, fn func(pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func scanActivity(row pgx.Row) (domain.ActivityAggregate, error) {
	var agg domain.ActivityAggregate
	var typ string
	err := row.Scan(&agg.ID, &agg.TenantID, &agg.DriverID, &typ, &agg.StartedAt, &agg.EndedAt, &agg.DurationHours, &agg.Source, &agg.Version, &agg.CreatedAt, &agg.UpdatedAt)
	agg.Type = compliance.ActivityType(typ)
	return agg, err
}

// FindByIdempotency checks if an activity already exists for the supplied idempotency key.
func (r *Repository) FindByIdempotency(ctx context.Context, tenantID, driverID, idempotencyKey string) (*domain.ActivityAggregate, error) {
	if idempotencyKey == "" {
		return nil, nil
	}

	query := `SELECT ` + activityColumns + ` FROM activities WHERE tenant_id=$1 AND driver_id=$2 AND idempotency_key=$3`

	var found *domain.ActivityAggregate
	err := r.withTenant(ctx, tenantID, func(tx pgx.Tx) error {
		agg, err := scanActivity(tx.QueryRow(ctx, query, tenantID, driverID, idempotencyKey))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = &agg
		return nil
	})
	return found, err
}

// Create persists the aggregate and records an activity.logged outbox event in the same transaction.
func (r *Repository) Create(ctx context.Context, aggregate domain.ActivityAggregate, idempotencyKey string) error {
	const insertActivity = `INSERT INTO activities (activity_id, tenant_id, driver_id, activity_type, started_at, ended_at, duration_hours, source, idempotency_key, version, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`

	err := r.withTenant(ctx, aggregate.TenantID, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertActivity,
			aggregate.ID,
			aggregate.TenantID,
			aggregate.DriverID,
			string(aggregate.Type),
			aggregate.StartedAt,
			aggregate.EndedAt,
			aggregate.DurationHours,
			aggregate.Source,
			nullIfEmpty(idempotencyKey),
			aggregate.Version,
			aggregate.CreatedAt,
			aggregate.UpdatedAt,
		); err != nil {
			return err
		}
		return insertOutbox(ctx, tx, activityLoggedEvent(aggregate))
	})
	if err != nil {
		return err
	}
	observability.RecordActivityPersisted(aggregate.UpdatedAt)
	return nil
}

// Update overwrites an activity and records the new version in the outbox.
func (r *Repository) Update(ctx context.Context, aggregate domain.ActivityAggregate) error {
	const stmt = `UPDATE activities
        SET activity_type=$3, started_at=$4, ended_at=$5, duration_hours=$6, source=$7, version=$8, updated_at=$9
        WHERE tenant_id=$1 AND activity_id=$2`

	err := r.withTenant(ctx, aggregate.TenantID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, stmt,
			aggregate.TenantID,
			aggregate.ID,
			string(aggregate.Type),
			aggregate.StartedAt,
			aggregate.EndedAt,
			aggregate.DurationHours,
			aggregate.Source,
			aggregate.Version,
			aggregate.UpdatedAt,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrActivityNotFound
		}
		return insertOutbox(ctx, tx, activityLoggedEvent(aggregate))
	})
	if err != nil {
		return err
	}
	observability.RecordActivityPersisted(aggregate.UpdatedAt)
	return nil
}

// Delete removes an activity and records an activity.deleted outbox event.
func (r *Repository) Delete(ctx context.Context, tenantID, activityID string) error {
	return r.withTenant(ctx, tenantID, func(tx pgx.Tx) error {
		var driverID string
		err := tx.QueryRow(ctx, `DELETE FROM activities WHERE tenant_id=$1 AND activity_id=$2 RETURNING driver_id`, tenantID, activityID).Scan(&driverID)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrActivityNotFound
		}
		if err != nil {
			return err
		}
		return insertOutbox(ctx, tx, outboxEvent{
			TenantID:      tenantID,
			AggregateType: "activity",
			AggregateID:   activityID,
			EventType:     events.TypeActivityDeleted,
			PartitionKey:  driverKey(tenantID, driverID),
			DedupeKey:     fmt.Sprintf("%s:%s", activityID, events.TypeActivityDeleted),
			Payload: events.ActivityDeleted{
				ActivityID: activityID,
				TenantID:   tenantID,
				DriverID:   driverID,
				DeletedAt:  time.Now().UTC(),
			},
		})
	})
}

// Get retrieves an activity by ID.
func (r *Repository) Get(ctx context.Context, tenantID, activityID string) (*domain.ActivityAggregate, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE tenant_id=$1 AND activity_id=$2`

	var found *domain.ActivityAggregate
	err := r.withTenant(ctx, tenantID, func(tx pgx.Tx) error {
		agg, err := scanActivity(tx.QueryRow(ctx, query, tenantID, activityID))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = &agg
		return nil
	})
	return found, err
}

// ListByDriver returns activities for a driver, newest first.
func (r *Repository) ListByDriver(ctx context.Context, tenantID, driverID string, cursor *domain.Cursor, limit int) ([]domain.ActivityAggregate, *domain.Cursor, error) {
	args := []any{tenantID, driverID, limit}
	query := `SELECT ` + activityColumns + ` FROM activities WHERE tenant_id=$1 AND driver_id=$2`
	if cursor != nil {
		query += ` AND (started_at, activity_id) < ($4, $5)`
		args = append(args, cursor.StartedAt, cursor.ID)
	}
	query += ` ORDER BY started_at DESC, activity_id DESC LIMIT $3`

	var results []domain.ActivityAggregate
	err := r.withTenant(ctx, tenantID, func(tx pgx.Tx) error {
		var err error
		results, err = queryActivities(ctx, tx, query, args...)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	var nextCursor *domain.Cursor
	if limit > 0 && len(results) == limit {
		last := results[len(results)-1]
		nextCursor = &domain.Cursor{StartedAt: last.StartedAt, ID: last.ID}
	}
	return results, nextCursor, nil
}

// ListRange returns activities starting in [from, to), oldest first.
func (r *Repository) ListRange(ctx context.Context, tenantID, driverID string, from, to time.Time) ([]domain.ActivityAggregate, error) {
	query := `SELECT ` + activityColumns + ` FROM activities
        WHERE tenant_id=$1 AND driver_id=$2 AND started_at >= $3 AND started_at < $4
        ORDER BY started_at, activity_id`

	var results []domain.ActivityAggregate
	err := r.withTenant(ctx, tenantID, func(tx pgx.Tx) error {
		var err error
		results, err = queryActivities(ctx, tx, query, tenantID, driverID, from, to)
		return err
	})
	return results, err
}

func queryActivities(ctx context.Context, tx pgx.Tx, query string, args ...any) ([]domain.ActivityAggregate, error) {
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.ActivityAggregate, 0)
	for rows.Next() {
		agg, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, agg)
	}
	return results, rows.Err()
}

// RecordComplianceAlert queues a compliance.alerted event. Repeating the same
// outcome for the same driver day is a no-op.
func (r *Repository) RecordComplianceAlert(ctx context.Context, alert domain.ComplianceAlert) error {
	codes := make([]string, 0, len(alert.Alerts))
	for _, code := range alert.Alerts {
		codes = append(codes, string(code))
	}
	return r.withTenant(ctx, alert.TenantID, func(tx pgx.Tx) error {
		return insertOutbox(ctx, tx, outboxEvent{
			TenantID:      alert.TenantID,
			AggregateType: "driver",
			AggregateID:   alert.DriverID,
			EventType:     events.TypeComplianceAlerted,
			PartitionKey:  driverKey(alert.TenantID, alert.DriverID),
			DedupeKey: fmt.Sprintf("%s:%s:%s:%s:%s", alert.TenantID, alert.DriverID, alert.Date,
				alert.Level, strings.Join(codes, ",")),
			Payload: events.ComplianceAlerted{
				TenantID:              alert.TenantID,
				DriverID:              alert.DriverID,
				Date:                  alert.Date,
				Level:                 string(alert.Level),
				Alerts:                codes,
				WeeklyDrivingHours:    alert.WeeklyDrivingHours,
				FortnightDrivingHours: alert.FortnightDrivingHours,
				EvaluatedAt:           alert.EvaluatedAt,
			},
		})
	})
}

// ActiveDrivers lists drivers of every tenant with an activity since the given instant.
func (r *Repository) ActiveDrivers(ctx context.Context, since time.Time) ([]domain.DriverRef, error) {
	rows, err := r.pool.Query(ctx, `SELECT tenant_id, driver_id FROM active_drivers($1)`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	drivers := make([]domain.DriverRef, 0)
	for rows.Next() {
		var ref domain.DriverRef
		if err := rows.Scan(&ref.TenantID, &ref.DriverID); err != nil {
			return nil, err
		}
		drivers = append(drivers, ref)
	}
	return drivers, rows.Err()
}

type outboxEvent struct {
	TenantID      string
	AggregateType string
	AggregateID   string
	EventType     string
	PartitionKey  string
	DedupeKey     string
	Payload       any
}

func activityLoggedEvent(a domain.ActivityAggregate) outboxEvent {
	return outboxEvent{
		TenantID:      a.TenantID,
		AggregateType: "activity",
		AggregateID:   a.ID,
		EventType:     events.TypeActivityLogged,
		PartitionKey:  driverKey(a.TenantID, a.DriverID),
		DedupeKey:     fmt.Sprintf("%s:%s:v%d", a.ID, events.TypeActivityLogged, a.Version),
		Payload: events.ActivityLogged{
			ActivityID:    a.ID,
			TenantID:      a.TenantID,
			DriverID:      a.DriverID,
			Type:          string(a.Type),
			StartedAt:     a.StartedAt,
			EndedAt:       a.EndedAt,
			DurationHours: a.DurationHours,
			Source:        a.Source,
			Version:       a.Version,
		},
	}
}

func insertOutbox(ctx context.Context, tx pgx.Tx, event outboxEvent) error {
	body, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[event.EventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", event.EventType)
	}

	const stmt = `INSERT INTO outbox (tenant_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT DO NOTHING`

	_, err = tx.Exec(ctx, stmt,
		event.TenantID,
		event.AggregateType,
		event.AggregateID,
		event.EventType,
		meta.Topic,
		meta.Topic+"-value",
		event.PartitionKey,
		body,
		nullIfEmpty(event.DedupeKey),
	)
	return err
}

func driverKey(tenantID, driverID string) string {
	return tenantID + ":" + driverID
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic string
}

var eventCatalog = map[string]EventMetadata{
	events.TypeActivityLogged:    {Topic: events.TopicDriverActivity},
	events.TypeActivityDeleted:   {Topic: events.TopicDriverActivity},
	events.TypeComplianceAlerted: {Topic: events.TopicComplianceAlerts},
}

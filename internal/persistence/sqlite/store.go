// Package sqlite is the on-device activity store used by hoursctl. Timestamps
// are stored as epoch milliseconds.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"example.com/drivinghours/internal/compliance"
	"example.com/drivinghours/internal/domain"
	"example.com/drivinghours/internal/observability"
)

const schema = `
CREATE TABLE IF NOT EXISTS activities (
	activity_id     TEXT PRIMARY KEY,
	tenant_id       TEXT NOT NULL,
	driver_id       TEXT NOT NULL,
	activity_type   TEXT NOT NULL,
	started_at      INTEGER NOT NULL,
	ended_at        INTEGER NOT NULL,
	duration_hours  REAL NOT NULL,
	source          TEXT NOT NULL DEFAULT '',
	idempotency_key TEXT,
	version         INTEGER NOT NULL DEFAULT 1,
	created_at      INTEGER NOT NULL,
	updated_at      INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_activities_idempotency ON activities(tenant_id, driver_id, idempotency_key);
CREATE INDEX IF NOT EXISTS idx_activities_driver_start ON activities(tenant_id, driver_id, started_at);

CREATE TABLE IF NOT EXISTS compliance_alerts (
	tenant_id    TEXT NOT NULL,
	driver_id    TEXT NOT NULL,
	day          TEXT NOT NULL,
	level        TEXT NOT NULL,
	alerts       TEXT NOT NULL,
	evaluated_at INTEGER NOT NULL,
	PRIMARY KEY (tenant_id, driver_id, day)
);
`

var activityColumns = []string{
	"activity_id", "tenant_id", "driver_id", "activity_type", "started_at", "ended_at",
	"duration_hours", "source", "version", "created_at", "updated_at",
}

// Store implements domain.ActivityRepository, domain.AlertRecorder and domain.DriverLister on SQLite.
type Store struct {
	db *sql.DB
	sb squirrel.StatementBuilderType
}

// Open opens (creating if needed) the database file at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: create tables: %w", err)
	}
	return &Store{db: db, sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanActivity(row scanner) (domain.ActivityAggregate, error) {
	var agg domain.ActivityAggregate
	var typ string
	var started, ended, createdAt, updatedAt int64
	if err := row.Scan(&agg.ID, &agg.TenantID, &agg.DriverID, &typ, &started, &ended, &agg.DurationHours, &agg.Source, &agg.Version, &createdAt, &updatedAt); err != nil {
		return domain.ActivityAggregate{}, err
	}
	agg.Type = compliance.ActivityType(typ)
	agg.StartedAt = fromMillis(started)
	agg.EndedAt = fromMillis(ended)
	agg.CreatedAt = fromMillis(createdAt)
	agg.UpdatedAt = fromMillis(updatedAt)
	return agg, nil
}

func (s *Store) queryOne(ctx context.Context, q squirrel.SelectBuilder) (*domain.ActivityAggregate, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	agg, err := scanActivity(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &agg, nil
}

func (s *Store) queryMany(ctx context.Context, q squirrel.SelectBuilder) ([]domain.ActivityAggregate, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ActivityAggregate, 0)
	for rows.Next() {
		agg, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, agg)
	}
	return out, rows.Err()
}

func (s *Store) selectActivities() squirrel.SelectBuilder {
	return s.sb.Select(activityColumns...).From("activities")
}

// FindByIdempotency implements domain.ActivityRepository.
func (s *Store) FindByIdempotency(ctx context.Context, tenantID, driverID, key string) (*domain.ActivityAggregate, error) {
	if key == "" {
		return nil, nil
	}
	return s.queryOne(ctx, s.selectActivities().Where(squirrel.Eq{
		"tenant_id":       tenantID,
		"driver_id":       driverID,
		"idempotency_key": key,
	}))
}

// Create implements domain.ActivityRepository.
func (s *Store) Create(ctx context.Context, a domain.ActivityAggregate, key string) error {
	var idempotencyKey any
	if key != "" {
		idempotencyKey = key
	}
	_, err := s.sb.Insert("activities").
		Columns(append(append([]string(nil), activityColumns...), "idempotency_key")...).
		Values(a.ID, a.TenantID, a.DriverID, string(a.Type), toMillis(a.StartedAt), toMillis(a.EndedAt),
			a.DurationHours, a.Source, a.Version, toMillis(a.CreatedAt), toMillis(a.UpdatedAt), idempotencyKey).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return err
	}
	observability.RecordActivityPersisted(a.UpdatedAt)
	return nil
}

// Update implements domain.ActivityRepository.
func (s *Store) Update(ctx context.Context, a domain.ActivityAggregate) error {
	res, err := s.sb.Update("activities").
		SetMap(map[string]any{
			"activity_type":  string(a.Type),
			"started_at":     toMillis(a.StartedAt),
			"ended_at":       toMillis(a.EndedAt),
			"duration_hours": a.DurationHours,
			"source":         a.Source,
			"version":        a.Version,
			"updated_at":     toMillis(a.UpdatedAt),
		}).
		Where(squirrel.Eq{"tenant_id": a.TenantID, "activity_id": a.ID}).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return domain.ErrActivityNotFound
	}
	observability.RecordActivityPersisted(a.UpdatedAt)
	return nil
}

// Delete implements domain.ActivityRepository.
func (s *Store) Delete(ctx context.Context, tenantID, activityID string) error {
	res, err := s.sb.Delete("activities").
		Where(squirrel.Eq{"tenant_id": tenantID, "activity_id": activityID}).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrActivityNotFound
	}
	return nil
}

// Get implements domain.ActivityRepository.
func (s *Store) Get(ctx context.Context, tenantID, activityID string) (*domain.ActivityAggregate, error) {
	return s.queryOne(ctx, s.selectActivities().Where(squirrel.Eq{"tenant_id": tenantID, "activity_id": activityID}))
}

// ListByDriver implements domain.ActivityRepository, newest first.
func (s *Store) ListByDriver(ctx context.Context, tenantID, driverID string, cursor *domain.Cursor, limit int) ([]domain.ActivityAggregate, *domain.Cursor, error) {
	q := s.selectActivities().
		Where(squirrel.Eq{"tenant_id": tenantID, "driver_id": driverID}).
		OrderBy("started_at DESC", "activity_id DESC").
		Limit(uint64(max(limit, 0)))
	if cursor != nil {
		ms := toMillis(cursor.StartedAt)
		q = q.Where(squirrel.Or{
			squirrel.Lt{"started_at": ms},
			squirrel.And{squirrel.Eq{"started_at": ms}, squirrel.Lt{"activity_id": cursor.ID}},
		})
	}

	results, err := s.queryMany(ctx, q)
	if err != nil {
		return nil, nil, err
	}
	var next *domain.Cursor
	if limit > 0 && len(results) == limit {
		last := results[len(results)-1]
		next = &domain.Cursor{StartedAt: last.StartedAt, ID: last.ID}
	}
	return results, next, nil
}

// ListRange implements domain.ActivityRepository.
func (s *Store) ListRange(ctx context.Context, tenantID, driverID string, from, to time.Time) ([]domain.ActivityAggregate, error) {
	return s.queryMany(ctx, s.selectActivities().
		Where(squirrel.Eq{"tenant_id": tenantID, "driver_id": driverID}).
		Where(squirrel.GtOrEq{"started_at": toMillis(from)}).
		Where(squirrel.Lt{"started_at": toMillis(to)}).
		OrderBy("started_at", "activity_id"))
}

// RecordComplianceAlert implements domain.AlertRecorder, keeping the latest result per day.
func (s *Store) RecordComplianceAlert(ctx context.Context, alert domain.ComplianceAlert) error {
	codes := make([]string, 0, len(alert.Alerts))
	for _, c := range alert.Alerts {
		codes = append(codes, string(c))
	}
	_, err := s.sb.Insert("compliance_alerts").
		Options("OR REPLACE").
		Columns("tenant_id", "driver_id", "day", "level", "alerts", "evaluated_at").
		Values(alert.TenantID, alert.DriverID, alert.Date, string(alert.Level), strings.Join(codes, ","), toMillis(alert.EvaluatedAt)).
		RunWith(s.db).
		ExecContext(ctx)
	return err
}

// Alerts lists recorded alerts for a driver, most recent day first.
func (s *Store) Alerts(ctx context.Context, tenantID, driverID string) ([]domain.ComplianceAlert, error) {
	query, args, err := s.sb.Select("tenant_id", "driver_id", "day", "level", "alerts", "evaluated_at").
		From("compliance_alerts").
		Where(squirrel.Eq{"tenant_id": tenantID, "driver_id": driverID}).
		OrderBy("day DESC").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ComplianceAlert, 0)
	for rows.Next() {
		var (
			a          domain.ComplianceAlert
			level, raw string
			evaluated  int64
		)
		if err := rows.Scan(&a.TenantID, &a.DriverID, &a.Date, &level, &raw, &evaluated); err != nil {
			return nil, err
		}
		a.Level = compliance.Level(level)
		a.Alerts = make([]compliance.AlertCode, 0)
		for _, code := range strings.Split(raw, ",") {
			if code != "" {
				a.Alerts = append(a.Alerts, compliance.AlertCode(code))
			}
		}
		a.EvaluatedAt = fromMillis(evaluated)
		out = append(out, a)
	}
	return out, rows.Err()
}

// ActiveDrivers implements domain.DriverLister.
func (s *Store) ActiveDrivers(ctx context.Context, since time.Time) ([]domain.DriverRef, error) {
	query, args, err := s.sb.Select("tenant_id", "driver_id").
		Distinct().
		From("activities").
		Where(squirrel.GtOrEq{"started_at": toMillis(since)}).
		OrderBy("tenant_id", "driver_id").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.DriverRef, 0)
	for rows.Next() {
		var ref domain.DriverRef
		if err := rows.Scan(&ref.TenantID, &ref.DriverID); err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

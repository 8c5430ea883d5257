// Package domain defines the business logic for the driving-hours service.
package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"example.com/drivinghours/internal/compliance"
	"example.com/drivinghours/internal/observability"
)

var (
	// ErrActivityNotFound is returned when an activity cannot be located.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrInvalidActivity wraps validation failures. It matches compliance.ErrInvalidActivity.
	ErrInvalidActivity = compliance.ErrInvalidActivity
)

// ActivityRepository is the Activity Store contract.
type ActivityRepository interface {
	FindByIdempotency(ctx context.Context, tenantID, driverID, idempotencyKey string) (*ActivityAggregate, error)
	Create(ctx context.Context, aggregate ActivityAggregate, idempotencyKey string) error
	Update(ctx context.Context, aggregate ActivityAggregate) error
	Delete(ctx context.Context, tenantID, activityID string) error
	Get(ctx context.Context, tenantID, activityID string) (*ActivityAggregate, error)
	ListByDriver(ctx context.Context, tenantID, driverID string, cursor *Cursor, limit int) ([]ActivityAggregate, *Cursor, error)
	// ListRange returns activities whose start lies in [from, to), oldest first.
	ListRange(ctx context.Context, tenantID, driverID string, from, to time.Time) ([]ActivityAggregate, error)
}

// AlertRecorder persists compliance alerts for publication.
type AlertRecorder interface {
	RecordComplianceAlert(ctx context.Context, alert ComplianceAlert) error
}

// DriverLister enumerates drivers with recent activity across tenants.
type DriverLister interface {
	ActiveDrivers(ctx context.Context, since time.Time) ([]DriverRef, error)
}

// Cursor models the pagination token.
type Cursor struct {
	StartedAt time.Time
	ID        string
}

// Option configures a Service.
type Option func(*Service)

// WithRules overrides the compliance rule table.
func WithRules(rules compliance.RuleSet) Option {
	return func(s *Service) { s.rules = rules }
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service orchestrates activity workflows and compliance evaluation.
type Service struct {
	repo     ActivityRepository
	calendar compliance.Calendar
	rules    compliance.RuleSet
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a Service. All day boundaries use calendar.
func NewService(repo ActivityRepository, calendar compliance.Calendar, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		calendar: calendar,
		rules:    compliance.DefaultRules,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Calendar exposes the configured day-boundary calendar.
func (s *Service) Calendar() compliance.Calendar {
	return s.calendar
}

// Now returns the service clock's current time.
func (s *Service) Now() time.Time {
	return s.now()
}

// LogActivityInput captures a new activity from the API, the CLI or the tachograph consumer.
type LogActivityInput struct {
	TenantID  string
	DriverID  string
	Type      compliance.ActivityType
	StartedAt time.Time
	EndedAt   time.Time
	// DurationHours may be left zero to derive it from the timestamps.
	DurationHours  float64
	Source         string
	IdempotencyKey string
}

// UpdateActivityInput replaces the editable fields of an activity.
type UpdateActivityInput struct {
	TenantID      string
	ActivityID    string
	Type          compliance.ActivityType
	StartedAt     time.Time
	EndedAt       time.Time
	DurationHours float64
	Source        string
}

func normalizeRecord(typ compliance.ActivityType, start, end time.Time, duration float64) (compliance.Activity, error) {
	record := compliance.Activity{
		Start:    start.UTC(),
		End:      end.UTC(),
		Duration: duration,
		Type:     typ,
	}
	if record.Duration <= 0 && end.After(start) {
		record.Duration = compliance.HoursBetween(start, end)
	}
	if err := record.Validate(); err != nil {
		return compliance.Activity{}, err
	}
	return record, nil
}

// LogActivity stores a new activity. A repeated idempotency key returns the
// original record and true.
func (s *Service) LogActivity(ctx context.Context, input LogActivityInput) (*ActivityAggregate, bool, error) {
	if strings.TrimSpace(input.DriverID) == "" {
		return nil, false, fmt.Errorf("%w: driver_id is required", ErrInvalidActivity)
	}
	if existing, err := s.repo.FindByIdempotency(ctx, input.TenantID, input.DriverID, input.IdempotencyKey); err == nil && existing != nil {
		return existing, true, nil
	}

	record, err := normalizeRecord(input.Type, input.StartedAt, input.EndedAt, input.DurationHours)
	if err != nil {
		return nil, false, err
	}

	now := s.now().UTC()
	aggregate := ActivityAggregate{
		ID:            uuid.NewString(),
		TenantID:      input.TenantID,
		DriverID:      input.DriverID,
		Type:          record.Type,
		StartedAt:     record.Start,
		EndedAt:       record.End,
		DurationHours: record.Duration,
		Source:        input.Source,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Create(ctx, aggregate, input.IdempotencyKey); err != nil {
		return nil, false, err
	}
	s.logger.DebugContext(ctx, "activity logged",
		slog.String("activity_id", aggregate.ID),
		slog.String("driver_id", aggregate.DriverID),
		slog.String("type", string(aggregate.Type)),
	)
	return &aggregate, false, nil
}

// UpdateActivity edits an activity in place and bumps its version.
func (s *Service) UpdateActivity(ctx context.Context, input UpdateActivityInput) (*ActivityAggregate, error) {
	existing, err := s.GetActivity(ctx, input.TenantID, input.ActivityID)
	if err != nil {
		return nil, err
	}

	record, err := normalizeRecord(input.Type, input.StartedAt, input.EndedAt, input.DurationHours)
	if err != nil {
		return nil, err
	}

	updated := *existing
	updated.Type = record.Type
	updated.StartedAt = record.Start
	updated.EndedAt = record.End
	updated.DurationHours = record.Duration
	if strings.TrimSpace(input.Source) != "" {
		updated.Source = input.Source
	}
	updated.Version++
	updated.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteActivity removes an activity by ID.
func (s *Service) DeleteActivity(ctx context.Context, tenantID, activityID string) error {
	return s.repo.Delete(ctx, tenantID, activityID)
}

// GetActivity fetches by ID.
func (s *Service) GetActivity(ctx context.Context, tenantID, activityID string) (*ActivityAggregate, error) {
	agg, err := s.repo.Get(ctx, tenantID, activityID)
	if err != nil {
		return nil, err
	}
	if agg == nil {
		return nil, ErrActivityNotFound
	}
	return agg, nil
}

// ListActivitiesByDriver fetches activities with cursor pagination, newest first.
func (s *Service) ListActivitiesByDriver(ctx context.Context, tenantID, driverID string, cursor *Cursor, limit int) ([]ActivityAggregate, *Cursor, error) {
	return s.repo.ListByDriver(ctx, tenantID, driverID, cursor, limit)
}

// ActivitiesBetween returns activities starting on the local days from..to inclusive.
func (s *Service) ActivitiesBetween(ctx context.Context, tenantID, driverID string, from, to time.Time) ([]ActivityAggregate, error) {
	start, _ := s.calendar.Span([]time.Time{from})
	_, end := s.calendar.Span([]time.Time{to})
	if !end.After(start) {
		return []ActivityAggregate{}, nil
	}
	return s.repo.ListRange(ctx, tenantID, driverID, start, end)
}

// DailyStats aggregates a single local day.
func (s *Service) DailyStats(ctx context.Context, tenantID, driverID string, date time.Time) (compliance.DailyStats, error) {
	from, to := s.calendar.Span([]time.Time{date})
	aggs, err := s.repo.ListRange(ctx, tenantID, driverID, from, to)
	if err != nil {
		return compliance.DailyStats{}, err
	}
	return s.calendar.AggregateDay(Records(aggs), date), nil
}

// ComplianceReport evaluates the week containing date together with the
// fortnight ending with that week. The store is read once for the whole
// fortnight and both periods are aggregated from the same activity list.
func (s *Service) ComplianceReport(ctx context.Context, tenantID, driverID string, date time.Time) (*ComplianceReport, error) {
	fortnightDates := s.calendar.FortnightOf(date)
	weekDates := fortnightDates[7:]

	from, to := s.calendar.Span(fortnightDates)
	aggs, err := s.repo.ListRange(ctx, tenantID, driverID, from, to)
	if err != nil {
		return nil, err
	}
	records := Records(aggs)

	weekly := s.calendar.AggregatePeriod(records, weekDates)
	fortnight := s.calendar.AggregatePeriod(records, fortnightDates)
	status := s.rules.Evaluate(weekly, fortnight)

	report := &ComplianceReport{
		DriverID:    driverID,
		Date:        s.calendar.StartOfDay(date),
		Weekly:      weekly,
		Fortnight:   fortnight,
		Status:      status,
		EvaluatedAt: s.now().UTC(),
	}
	dayKey := s.calendar.DayKey(date)
	for _, d := range weekly.DailyStats {
		if s.calendar.DayKey(d.Date) == dayKey {
			report.Day = d
			break
		}
	}

	observability.RecordEvaluation(status)
	if !status.IsCompliant {
		s.logger.InfoContext(ctx, "driver not compliant",
			slog.String("driver_id", driverID),
			slog.String("date", dayKey),
			slog.String("level", string(status.Level)),
			slog.Any("alerts", status.Alerts),
		)
	}
	return report, nil
}

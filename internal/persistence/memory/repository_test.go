package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/drivinghours/internal/compliance"
	"example.com/drivinghours/internal/domain"
)

func seed(t *testing.T, repo *Repository, tenant, driver string, start time.Time, n int) []domain.ActivityAggregate {
	t.Helper()
	out := make([]domain.ActivityAggregate, 0, n)
	for i := 0; i < n; i++ {
		s := start.Add(time.Duration(i) * time.Hour)
		agg := domain.ActivityAggregate{
			ID:            fmt.Sprintf("%s-%02d", driver, i),
			TenantID:      tenant,
			DriverID:      driver,
			Type:          compliance.ActivityDriving,
			StartedAt:     s,
			EndedAt:       s.Add(time.Hour),
			DurationHours: 1,
			Version:       1,
		}
		require.NoError(t, repo.Create(context.Background(), agg, ""))
		out = append(out, agg)
	}
	return out
}

func TestListByDriverPaginatesNewestFirst(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()
	start := time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC)
	seed(t, repo, "t1", "d1", start, 5)
	seed(t, repo, "t1", "d2", start, 2)

	page1, next, err := repo.ListByDriver(ctx, "t1", "d1", nil, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"d1-04", "d1-03"}, ids(page1))
	require.NotNil(t, next)

	page2, next, err := repo.ListByDriver(ctx, "t1", "d1", next, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"d1-02", "d1-01"}, ids(page2))

	page3, next, err := repo.ListByDriver(ctx, "t1", "d1", next, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"d1-00"}, ids(page3))
	require.Nil(t, next)
}

func TestListRangeIsHalfOpen(t *testing.T) {
	repo := NewRepository()
	start := time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC)
	seed(t, repo, "t1", "d1", start, 5)

	got, err := repo.ListRange(context.Background(), "t1", "d1", start.Add(time.Hour), start.Add(3*time.Hour))
	require.NoError(t, err)
	require.Equal(t, []string{"d1-01", "d1-02"}, ids(got))
}

func TestTenantIsolation(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()
	start := time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC)
	aggs := seed(t, repo, "t1", "d1", start, 1)

	got, err := repo.Get(ctx, "t2", aggs[0].ID)
	require.NoError(t, err)
	require.Nil(t, got)
	require.ErrorIs(t, repo.Delete(ctx, "t2", aggs[0].ID), domain.ErrActivityNotFound)

	updated := aggs[0]
	updated.TenantID = "t2"
	require.ErrorIs(t, repo.Update(ctx, updated), domain.ErrActivityNotFound)
}

func TestIdempotencyKeyRemovedWithActivity(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()
	start := time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC)
	agg := domain.ActivityAggregate{ID: "a1", TenantID: "t1", DriverID: "d1", Type: compliance.ActivityRest, StartedAt: start, EndedAt: start.Add(time.Hour), DurationHours: 1}
	require.NoError(t, repo.Create(ctx, agg, "key-1"))

	found, err := repo.FindByIdempotency(ctx, "t1", "d1", "key-1")
	require.NoError(t, err)
	require.Equal(t, "a1", found.ID)

	require.NoError(t, repo.Delete(ctx, "t1", "a1"))
	found, err = repo.FindByIdempotency(ctx, "t1", "d1", "key-1")
	require.NoError(t, err)
	require.Nil(t, found)
}

func TestActiveDriversAndAlerts(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()
	start := time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC)
	seed(t, repo, "t1", "d2", start, 2)
	seed(t, repo, "t1", "d1", start, 1)
	seed(t, repo, "t2", "old", start.AddDate(0, -1, 0), 1)

	drivers, err := repo.ActiveDrivers(ctx, start.AddDate(0, 0, -1))
	require.NoError(t, err)
	require.Equal(t, []domain.DriverRef{{TenantID: "t1", DriverID: "d1"}, {TenantID: "t1", DriverID: "d2"}}, drivers)

	alert := domain.ComplianceAlert{TenantID: "t1", DriverID: "d1", Date: "2026-10-19", Level: compliance.LevelWarning}
	require.NoError(t, repo.RecordComplianceAlert(ctx, alert))
	alert.Level = compliance.LevelViolation
	require.NoError(t, repo.RecordComplianceAlert(ctx, alert))

	alerts := repo.Alerts()
	require.Len(t, alerts, 1)
	require.Equal(t, compliance.LevelViolation, alerts[0].Level)
}

func ids(aggs []domain.ActivityAggregate) []string {
	out := make([]string, 0, len(aggs))
	for _, a := range aggs {
		out = append(out, a.ID)
	}
	return out
}

// Package memory stores activities in process memory for local development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"example.com/drivinghours/internal/domain"
	"example.com/drivinghours/internal/observability"
)

// Repository implements domain.ActivityRepository, domain.AlertRecorder and
// domain.DriverLister.
type Repository struct {
	mu          sync.RWMutex
	activities  map[string]domain.ActivityAggregate
	idempotency map[string]string
	alerts      []domain.ComplianceAlert
}

// NewRepository constructs an empty repository.
func NewRepository() *Repository {
	return &Repository{
		activities:  make(map[string]domain.ActivityAggregate),
		idempotency: make(map[string]string),
	}
}

func idempotencyIndex(tenantID, driverID, key string) string {
	return tenantID + "\x00" + driverID + "\x00" + key
}

// FindByIdempotency implements domain.ActivityRepository.
func (r *Repository) FindByIdempotency(_ context.Context, tenantID, driverID, key string) (*domain.ActivityAggregate, error) {
	if key == "" {
		return nil, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.idempotency[idempotencyIndex(tenantID, driverID, key)]
	if !ok {
		return nil, nil
	}
	agg, ok := r.activities[id]
	if !ok {
		return nil, nil
	}
	return &agg, nil
}

// Create implements domain.ActivityRepository.
func (r *Repository) Create(_ context.Context, aggregate domain.ActivityAggregate, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.activities[aggregate.ID] = aggregate
	if key != "" {
		r.idempotency[idempotencyIndex(aggregate.TenantID, aggregate.DriverID, key)] = aggregate.ID
	}
	observability.RecordActivityPersisted(aggregate.UpdatedAt)
	return nil
}

// Update implements domain.ActivityRepository.
func (r *Repository) Update(_ context.Context, aggregate domain.ActivityAggregate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.activities[aggregate.ID]
	if !ok || existing.TenantID != aggregate.TenantID {
		return domain.ErrActivityNotFound
	}
	r.activities[aggregate.ID] = aggregate
	observability.RecordActivityPersisted(aggregate.UpdatedAt)
	return nil
}

// Delete implements domain.ActivityRepository.
func (r *Repository) Delete(_ context.Context, tenantID, activityID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.activities[activityID]
	if !ok || existing.TenantID != tenantID {
		return domain.ErrActivityNotFound
	}
	delete(r.activities, activityID)
	for k, id := range r.idempotency {
		if id == activityID {
			delete(r.idempotency, k)
		}
	}
	return nil
}

// Get implements domain.ActivityRepository.
func (r *Repository) Get(_ context.Context, tenantID, activityID string) (*domain.ActivityAggregate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agg, ok := r.activities[activityID]
	if !ok || agg.TenantID != tenantID {
		return nil, nil
	}
	return &agg, nil
}

func (r *Repository) driverActivities(tenantID, driverID string) []domain.ActivityAggregate {
	out := make([]domain.ActivityAggregate, 0)
	for _, agg := range r.activities {
		if agg.TenantID == tenantID && agg.DriverID == driverID {
			out = append(out, agg)
		}
	}
	return out
}

// ListByDriver implements domain.ActivityRepository, newest first.
func (r *Repository) ListByDriver(_ context.Context, tenantID, driverID string, cursor *domain.Cursor, limit int) ([]domain.ActivityAggregate, *domain.Cursor, error) {
	r.mu.RLock()
	all := r.driverActivities(tenantID, driverID)
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].StartedAt.Equal(all[j].StartedAt) {
			return all[i].StartedAt.After(all[j].StartedAt)
		}
		return all[i].ID > all[j].ID
	})

	results := make([]domain.ActivityAggregate, 0, limit)
	for _, agg := range all {
		if cursor != nil && !before(agg, *cursor) {
			continue
		}
		results = append(results, agg)
		if len(results) == limit {
			break
		}
	}

	var next *domain.Cursor
	if limit > 0 && len(results) == limit {
		last := results[len(results)-1]
		next = &domain.Cursor{StartedAt: last.StartedAt, ID: last.ID}
	}
	return results, next, nil
}

// before reports whether agg sorts strictly after the cursor in descending order.
func before(agg domain.ActivityAggregate, c domain.Cursor) bool {
	if agg.StartedAt.Equal(c.StartedAt) {
		return agg.ID < c.ID
	}
	return agg.StartedAt.Before(c.StartedAt)
}

// ListRange implements domain.ActivityRepository.
func (r *Repository) ListRange(_ context.Context, tenantID, driverID string, from, to time.Time) ([]domain.ActivityAggregate, error) {
	r.mu.RLock()
	all := r.driverActivities(tenantID, driverID)
	r.mu.RUnlock()

	out := make([]domain.ActivityAggregate, 0, len(all))
	for _, agg := range all {
		if !agg.StartedAt.Before(from) && agg.StartedAt.Before(to) {
			out = append(out, agg)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// RecordComplianceAlert implements domain.AlertRecorder. One alert per driver
// and date is kept; later evaluations replace earlier ones.
func (r *Repository) RecordComplianceAlert(_ context.Context, alert domain.ComplianceAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.alerts {
		if existing.TenantID == alert.TenantID && existing.DriverID == alert.DriverID && existing.Date == alert.Date {
			r.alerts[i] = alert
			return nil
		}
	}
	r.alerts = append(r.alerts, alert)
	return nil
}

// Alerts returns a copy of the recorded alerts.
func (r *Repository) Alerts() []domain.ComplianceAlert {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.ComplianceAlert(nil), r.alerts...)
}

// ActiveDrivers implements domain.DriverLister.
func (r *Repository) ActiveDrivers(_ context.Context, since time.Time) ([]domain.DriverRef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[domain.DriverRef]struct{})
	out := make([]domain.DriverRef, 0)
	for _, agg := range r.activities {
		if agg.StartedAt.Before(since) {
			continue
		}
		ref := domain.DriverRef{TenantID: agg.TenantID, DriverID: agg.DriverID}
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TenantID != out[j].TenantID {
			return out[i].TenantID < out[j].TenantID
		}
		return out[i].DriverID < out[j].DriverID
	})
	return out, nil
}

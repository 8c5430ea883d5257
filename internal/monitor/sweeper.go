// Package monitor periodically re-evaluates compliance for recently active
// drivers and records an alert for every non-compliant result.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"example.com/drivinghours/internal/compliance"
	"example.com/drivinghours/internal/domain"
	"example.com/drivinghours/internal/observability"
)

type evaluator interface {
	ComplianceReport(ctx context.Context, tenantID, driverID string, date time.Time) (*domain.ComplianceReport, error)
	Calendar() compliance.Calendar
	Now() time.Time
}

// SweepResult summarises one sweep.
type SweepResult struct {
	Evaluated    int
	NonCompliant int
	Failed       int
}

// Sweeper evaluates every driver active within the lookback window.
type Sweeper struct {
	svc      evaluator
	drivers  domain.DriverLister
	recorder domain.AlertRecorder
	lookback time.Duration
	logger   *slog.Logger
}

// NewSweeper constructs a Sweeper.
func NewSweeper(svc evaluator, drivers domain.DriverLister, recorder domain.AlertRecorder, lookback time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		svc:      svc,
		drivers:  drivers,
		recorder: recorder,
		lookback: lookback,
		logger:   logger.With(slog.String("component", "monitor")),
	}
}

// RunOnce evaluates the current local day for every active driver. A failure
// for one driver does not stop the sweep; all failures are joined.
func (s *Sweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	started := time.Now()
	now := s.svc.Now()

	refs, err := s.drivers.ActiveDrivers(ctx, now.Add(-s.lookback))
	if err != nil {
		return SweepResult{}, fmt.Errorf("list active drivers: %w", err)
	}

	var (
		result SweepResult
		errs   []error
	)
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		report, err := s.svc.ComplianceReport(ctx, ref.TenantID, ref.DriverID, now)
		if err != nil {
			result.Failed++
			errs = append(errs, fmt.Errorf("evaluate %s/%s: %w", ref.TenantID, ref.DriverID, err))
			continue
		}
		result.Evaluated++
		if report.Status.IsCompliant {
			continue
		}
		result.NonCompliant++
		if err := s.recorder.RecordComplianceAlert(ctx, report.Alert(ref.TenantID, s.svc.Calendar())); err != nil {
			result.Failed++
			errs = append(errs, fmt.Errorf("record alert %s/%s: %w", ref.TenantID, ref.DriverID, err))
		}
	}

	observability.RecordSweep(time.Since(started), result.Evaluated, result.NonCompliant, result.Failed)
	s.logger.InfoContext(ctx, "compliance sweep finished",
		slog.Int("drivers", len(refs)),
		slog.Int("evaluated", result.Evaluated),
		slog.Int("non_compliant", result.NonCompliant),
		slog.Int("failed", result.Failed),
		slog.Duration("elapsed", time.Since(started)),
	)
	return result, errors.Join(errs...)
}

// Schedule registers the sweeper on c. Each run gets its own timeout.
func Schedule(ctx context.Context, c *cron.Cron, spec string, sweeper *Sweeper, timeout time.Duration) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		runCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if _, err := sweeper.RunOnce(runCtx); err != nil {
			sweeper.logger.ErrorContext(runCtx, "compliance sweep failed", slog.Any("error", err))
		}
	})
}

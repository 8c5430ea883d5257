package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"example.com/drivinghours/internal/compliance"
)

var (
	activityPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "drivinghours",
		Subsystem: "persistence",
		Name:      "last_activity_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity written to the store.",
	})
	evaluationsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "drivinghours",
		Subsystem: "compliance",
		Name:      "evaluations_total",
		Help:      "Compliance evaluations by resulting level.",
	}, []string{"level"})
	alertsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "drivinghours",
		Subsystem: "compliance",
		Name:      "alerts_total",
		Help:      "Alerts raised by compliance evaluations.",
	}, []string{"alert"})
	sweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "drivinghours",
		Subsystem: "monitor",
		Name:      "sweep_duration_seconds",
		Help:      "Duration of a compliance monitor sweep.",
		Buckets:   prometheus.DefBuckets,
	})
	sweepDriversGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "drivinghours",
		Subsystem: "monitor",
		Name:      "last_sweep_drivers",
		Help:      "Drivers seen by the last monitor sweep, by outcome.",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(activityPersistGauge, evaluationsCounter, alertsCounter, sweepDuration, sweepDriversGauge)
}

// RecordActivityPersisted updates the persistence watermark gauge.
func RecordActivityPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activityPersistGauge.Set(float64(ts.Unix()))
}

// RecordEvaluation counts one evaluation and each alert it raised.
func RecordEvaluation(status compliance.ComplianceStatus) {
	evaluationsCounter.WithLabelValues(string(status.Level)).Inc()
	for _, alert := range status.Alerts {
		alertsCounter.WithLabelValues(string(alert)).Inc()
	}
}

// RecordSweep observes a finished monitor sweep.
func RecordSweep(elapsed time.Duration, evaluated, nonCompliant, failed int) {
	sweepDuration.Observe(elapsed.Seconds())
	sweepDriversGauge.WithLabelValues("evaluated").Set(float64(evaluated))
	sweepDriversGauge.WithLabelValues("non_compliant").Set(float64(nonCompliant))
	sweepDriversGauge.WithLabelValues("failed").Set(float64(failed))
}

package core

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"recordstore/pkg/domain"
)

// MetricsRecorder receives one observation per service operation.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// NoopRecorder discards observations.
type NoopRecorder struct{}

// Observe implements MetricsRecorder.
func (NoopRecorder) Observe(context.Context, string, bool, time.Duration) {}

// PrometheusMetrics holds the collectors shared by every application recorder
// registered against one registry.
type PrometheusMetrics struct {
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
}

// NewPrometheusMetrics creates and registers the operation collectors.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "recordstore",
				Name:      "operations_total",
				Help:      "Total number of record store operations by outcome.",
			},
			[]string{"app", "operation", "status"},
		),
		durations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "recordstore",
				Name:      "operation_duration_seconds",
				Help:      "Duration of record store operations.",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
			},
			[]string{"app", "operation"},
		),
	}
	for _, c := range []prometheus.Collector{m.operations, m.durations} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Recorder returns a MetricsRecorder labelling observations with app.
func (m *PrometheusMetrics) Recorder(app string) MetricsRecorder {
	return prometheusRecorder{metrics: m, app: app}
}

type prometheusRecorder struct {
	metrics *PrometheusMetrics
	app     string
}

func (r prometheusRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.metrics.operations.WithLabelValues(r.app, operation, status).Inc()
	r.metrics.durations.WithLabelValues(r.app, operation).Observe(duration.Seconds())
}

// Observer logs and measures service operations for one application.
type Observer struct {
	app     string
	log     logrus.FieldLogger
	metrics MetricsRecorder
}

// NewObserver constructs an Observer. Nil log or metrics fall back to
// discarding implementations.
func NewObserver(app string, log logrus.FieldLogger, metrics MetricsRecorder) *Observer {
	if log == nil {
		log = DiscardLogger()
	}
	if metrics == nil {
		metrics = NoopRecorder{}
	}
	return &Observer{app: app, log: log.WithField("app", app), metrics: metrics}
}

// Start begins observing operation. Call the returned function once with the
// operation's error and any fields describing the affected record.
func (o *Observer) Start(ctx context.Context, operation string) func(err error, fields logrus.Fields) {
	started := time.Now()
	return func(err error, fields logrus.Fields) {
		elapsed := time.Since(started)
		o.metrics.Observe(ctx, operation, err == nil, elapsed)
		entry := o.log.WithField("op", operation).WithField("duration", elapsed)
		if len(fields) > 0 {
			entry = entry.WithFields(fields)
		}
		if err == nil {
			entry.Debug("operation completed")
			return
		}
		kind := domain.KindOf(err)
		if kind == "" {
			entry.WithError(err).Error("operation failed")
			return
		}
		var violation domain.RuleViolationError
		if errors.As(err, &violation) {
			entry = entry.WithField("violations", len(violation.Result.Violations))
		}
		entry.WithField("kind", string(kind)).WithError(err).Info("operation rejected")
	}
}

// RecordFields describes the record an operation touched. A zero id is
// omitted.
func RecordFields(entity domain.EntityType, id uint64) logrus.Fields {
	fields := logrus.Fields{"entity": string(entity)}
	if id != 0 {
		fields["id"] = id
	}
	return fields
}

package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds Guerite's OTel metric instruments, exposed over the
// Prometheus pull exporter at GET /v1/metrics (§6).
type Metrics struct {
	CyclesTotal      metric.Int64Counter
	CycleDuration     metric.Float64Histogram

	ActionSuccessTotal metric.Int64Counter // attr: action
	ActionFailureTotal metric.Int64Counter // attr: action
	RollbackTotal      metric.Int64Counter

	MonitoredContainers metric.Int64UpDownCounter

	// Events
	EventsProcessed metric.Int64Counter
	EventsDropped   metric.Int64Counter
}

// NewMetrics creates and registers all Guerite metric instruments.
// Returns a noop-safe Metrics struct — all fields are always initialized
// (OTel returns noop instruments when no MeterProvider is set).
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("guerite")
	m := &Metrics{}
	var err error

	if m.CyclesTotal, err = meter.Int64Counter("guerite.cycles.total",
		metric.WithDescription("Total action cycles executed")); err != nil {
		return nil, err
	}
	if m.CycleDuration, err = meter.Float64Histogram("guerite.cycle.duration_seconds",
		metric.WithDescription("Cycle duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 120, 300)); err != nil {
		return nil, err
	}
	if m.ActionSuccessTotal, err = meter.Int64Counter("guerite.action.success.total",
		metric.WithDescription("Total successful actions, by action kind")); err != nil {
		return nil, err
	}
	if m.ActionFailureTotal, err = meter.Int64Counter("guerite.action.failure.total",
		metric.WithDescription("Total failed actions, by action kind")); err != nil {
		return nil, err
	}
	if m.RollbackTotal, err = meter.Int64Counter("guerite.rollback.total",
		metric.WithDescription("Total swap rollbacks")); err != nil {
		return nil, err
	}
	if m.MonitoredContainers, err = meter.Int64UpDownCounter("guerite.containers.monitored",
		metric.WithDescription("Currently monitored containers")); err != nil {
		return nil, err
	}
	if m.EventsProcessed, err = meter.Int64Counter("guerite.events.processed",
		metric.WithDescription("Total notification events processed")); err != nil {
		return nil, err
	}
	if m.EventsDropped, err = meter.Int64Counter("guerite.events.dropped",
		metric.WithDescription("Total notification events dropped")); err != nil {
		return nil, err
	}

	return m, nil
}

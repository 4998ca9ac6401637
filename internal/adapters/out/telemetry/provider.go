// Package telemetry provides OpenTelemetry initialization for Guerite.
// Metrics are exported via a Prometheus pull exporter so GET /v1/metrics can
// serve the Prometheus text format directly (§6), instead of the
// OTLP/HTTP push pipeline.
package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config holds telemetry configuration.
type Config struct {
	Enabled bool // GUERITE_HTTP_API_METRICS
}

// Provider holds the initialized OTel meter provider and the Prometheus
// registry backing it.
type Provider struct {
	MeterProvider *metric.MeterProvider
	registry      *promclient.Registry
}

// NewProvider creates and configures the OTel meter provider with a
// Prometheus exporter. Returns a noop provider if metrics are disabled.
// The returned shutdown function must be called on application exit.
func NewProvider(ctx context.Context, cfg Config, serviceName, version string) (*Provider, func(context.Context), error) {
	noop := func(context.Context) {}

	if !cfg.Enabled {
		return &Provider{}, noop, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, noop, fmt.Errorf("create resource: %w", err)
	}

	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, noop, fmt.Errorf("create prometheus exporter: %w", err)
	}

	mp := metric.NewMeterProvider(
		metric.WithReader(exporter),
		metric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	p := &Provider{MeterProvider: mp, registry: registry}
	return p, func(ctx context.Context) { _ = mp.Shutdown(ctx) }, nil
}

// Handler returns the http.Handler that serves the Prometheus text format
// for GET /v1/metrics. Returns http.NotFoundHandler() if the provider is
// nil or was created disabled.
func (p *Provider) Handler() http.Handler {
	if p == nil || p.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics exposes gateway metrics through OpenTelemetry with a
// Prometheus exporter.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const meterName = "github.com/leseb/integrations-gw"

// Attribute keys used on every upstream call metric.
var (
	AttrIntegration = attribute.Key("integration")
	AttrAPIType     = attribute.Key("api_type")
	AttrStatusClass = attribute.Key("status_class")
)

// Provider owns a MeterProvider whose readings are served in the
// Prometheus exposition format.
type Provider struct {
	mp      *sdkmetric.MeterProvider
	handler http.Handler
}

// NewPrometheusProvider creates a MeterProvider backed by its own
// Prometheus registry, so several providers can coexist in tests.
func NewPrometheusProvider(ctx context.Context, serviceName string) (*Provider, error) {
	if serviceName == "" {
		serviceName = "integrations-gw"
	}
	reg := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(attribute.String("service.name", serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	return &Provider{
		mp:      mp,
		handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true}),
	}, nil
}

// Handler serves /metrics.
func (p *Provider) Handler() http.Handler {
	return p.handler
}

// Meter returns the gateway meter.
func (p *Provider) Meter() metric.Meter {
	return p.mp.Meter(meterName)
}

// Shutdown flushes and stops the MeterProvider.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.mp.Shutdown(ctx)
}

// Recorder records upstream call metrics. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	calls    metric.Int64Counter
	duration metric.Float64Histogram
}

// NewRecorder creates the call instruments on m.
func NewRecorder(m metric.Meter) (*Recorder, error) {
	calls, err := m.Int64Counter("integrations_gw_upstream_calls",
		metric.WithDescription("Upstream calls made through integrations"))
	if err != nil {
		return nil, fmt.Errorf("create calls counter: %w", err)
	}
	duration, err := m.Float64Histogram("integrations_gw_upstream_call_duration_seconds",
		metric.WithDescription("Upstream call duration in seconds"))
	if err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}
	return &Recorder{calls: calls, duration: duration}, nil
}

// RecordCall records one upstream call. A status of 0 means the call never
// got a response.
func (r *Recorder) RecordCall(ctx context.Context, integration, apiType string, status int, d time.Duration) {
	if r == nil {
		return
	}
	attrs := metric.WithAttributes(
		AttrIntegration.String(integration),
		AttrAPIType.String(apiType),
		AttrStatusClass.String(StatusClass(status)),
	)
	r.calls.Add(ctx, 1, attrs)
	r.duration.Record(ctx, d.Seconds(), attrs)
}

// StatusClass buckets an HTTP status code as "2xx", "4xx" and so on, or
// "error" when there was no response.
func StatusClass(status int) string {
	if status < 100 || status > 599 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}

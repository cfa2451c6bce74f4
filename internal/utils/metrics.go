// internal/utils/metrics.go
package utils

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/Corphon/FriendsSyndicate"

// MetricsCollector holds the OpenTelemetry instruments for the app
type MetricsCollector struct {
	conversations metric.Int64Counter
	turns         metric.Int64Counter
	topicSources  metric.Int64Counter
	imageExports  metric.Int64Counter
	llmDuration   metric.Float64Histogram
}

var (
	globalMetrics *MetricsCollector
	metricsOnce   sync.Once
)

var latencyBuckets = []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30}

// GetMetricsCollector returns the collector bound to the global meter provider.
// Instruments created before InitMetricsProvider are re-bound by the otel
// global delegate once the SDK provider is installed.
func GetMetricsCollector() *MetricsCollector {
	metricsOnce.Do(func() {
		m, err := NewMetricsCollector(otel.GetMeterProvider())
		if err != nil {
			GetLogger().Error("创建指标失败", map[string]interface{}{"error": err.Error()})
			m, _ = NewMetricsCollector(metricNoopProvider())
		}
		globalMetrics = m
	})
	return globalMetrics
}

// NewMetricsCollector creates all instruments on the given provider
func NewMetricsCollector(mp metric.MeterProvider) (*MetricsCollector, error) {
	meter := mp.Meter(meterName)
	m := &MetricsCollector{}
	var err error

	if m.conversations, err = meter.Int64Counter("syndicate.conversations",
		metric.WithDescription("Conversations generated."),
	); err != nil {
		return nil, err
	}
	if m.turns, err = meter.Int64Counter("syndicate.turns",
		metric.WithDescription("Dialogue turns by reply kind."),
	); err != nil {
		return nil, err
	}
	if m.topicSources, err = meter.Int64Counter("syndicate.topics",
		metric.WithDescription("Topics picked by source (feed, cache, fallback)."),
	); err != nil {
		return nil, err
	}
	if m.imageExports, err = meter.Int64Counter("syndicate.image_exports",
		metric.WithDescription("Share image exports by status."),
	); err != nil {
		return nil, err
	}
	if m.llmDuration, err = meter.Float64Histogram("syndicate.llm.duration",
		metric.WithDescription("Latency of text generation calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordConversation counts one finished generation run
func (m *MetricsCollector) RecordConversation(ctx context.Context, turns int) {
	m.conversations.Add(ctx, 1, metric.WithAttributes(attribute.Int("turns", turns)))
}

// RecordTurn counts a dialogue turn by its reply kind
func (m *MetricsCollector) RecordTurn(ctx context.Context, kind string) {
	m.turns.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordTopicSource counts where a topic came from
func (m *MetricsCollector) RecordTopicSource(ctx context.Context, source string) {
	m.topicSources.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

// RecordImageExport counts share image requests
func (m *MetricsCollector) RecordImageExport(ctx context.Context, status string) {
	m.imageExports.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordLLMLatency records one provider call
func (m *MetricsCollector) RecordLLMLatency(ctx context.Context, provider, status string, d time.Duration) {
	m.llmDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("status", status),
	))
}

// InitMetricsProvider installs the SDK meter provider with a Prometheus
// exporter and returns the scrape handler plus a shutdown func.
func InitMetricsProvider() (http.Handler, func(context.Context) error, error) {
	registry := prometheus.NewRegistry()
	exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(mp)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return handler, mp.Shutdown, nil
}

func metricNoopProvider() metric.MeterProvider {
	return sdkmetric.NewMeterProvider()
}

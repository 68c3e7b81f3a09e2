package infra

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/tnqbao/gau-vm-orchestrator/config"
	"github.com/tnqbao/gau-vm-orchestrator/registry"
)

const instrumentationName = "github.com/tnqbao/gau-vm-orchestrator"

type Telemetry struct {
	Tracer  trace.Tracer
	Metrics *Metrics

	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
}

// InitTelemetry exports traces and metrics over OTLP/HTTP when an endpoint is
// configured. Without one, spans and counters are recorded but never exported.
func InitTelemetry(cfg *config.Config) *Telemetry {
	ctx := context.Background()
	env := cfg.EnvConfig
	res := serviceResource(env)

	traceOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	metricOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	if env.Grafana.OTLPEndpoint != "" {
		traceExporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(env.Grafana.OTLPEndpoint))
		if err != nil {
			log.Printf("Warning: Failed to create OTLP trace exporter: %v", err)
		} else {
			traceOpts = append(traceOpts, sdktrace.WithBatcher(traceExporter))
		}

		metricExporter, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpoint(env.Grafana.OTLPEndpoint))
		if err != nil {
			log.Printf("Warning: Failed to create OTLP metric exporter: %v", err)
		} else {
			metricOpts = append(metricOpts, sdkmetric.WithReader(
				sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(30*time.Second)),
			))
		}
	}

	tp := sdktrace.NewTracerProvider(traceOpts...)
	mp := sdkmetric.NewMeterProvider(metricOpts...)
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	if err := runtime.Start(runtime.WithMeterProvider(mp)); err != nil {
		log.Printf("Warning: Failed to start runtime instrumentation: %v", err)
	}

	metrics, err := NewMetrics(mp.Meter(instrumentationName), cfg.Registry.Snapshot().Settings())
	if err != nil {
		log.Printf("Warning: Failed to register VM metrics: %v", err)
		metrics = &Metrics{}
	}

	return &Telemetry{
		Tracer:         tp.Tracer(instrumentationName),
		Metrics:        metrics,
		tracerProvider: tp,
		meterProvider:  mp,
	}
}

func (t *Telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(
		t.tracerProvider.Shutdown(ctx),
		t.meterProvider.Shutdown(ctx),
	)
}

// Metrics holds one counter per configured monitoring metric name.
type Metrics struct {
	counters map[string]metric.Int64Counter
}

// NewMetrics registers nothing when monitoring is disabled.
func NewMetrics(meter metric.Meter, settings registry.Settings) (*Metrics, error) {
	m := &Metrics{counters: make(map[string]metric.Int64Counter)}
	if !settings.Features.Monitoring {
		return m, nil
	}
	for _, name := range settings.MonitoringMetrics {
		counter, err := meter.Int64Counter(name)
		if err != nil {
			return nil, fmt.Errorf("register counter %s: %w", name, err)
		}
		m.counters[name] = counter
	}
	return m, nil
}

// Add increments the named counter. Unknown names are ignored.
func (m *Metrics) Add(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	if m == nil {
		return
	}
	if counter, ok := m.counters[name]; ok {
		counter.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func (m *Metrics) Enabled(name string) bool {
	if m == nil {
		return false
	}
	_, ok := m.counters[name]
	return ok
}

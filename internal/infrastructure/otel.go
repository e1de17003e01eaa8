package infrastructure

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// OTelConfig controls tracing and metrics setup.
type OTelConfig struct {
	Enabled     bool    `yaml:"enabled" envconfig:"OTEL_ENABLED" default:"true"`
	ServiceName string  `yaml:"service_name" envconfig:"OTEL_SERVICE_NAME" default:"licenseforge"`
	TraceStdout bool    `yaml:"trace_stdout" envconfig:"OTEL_TRACE_STDOUT" default:"false"`
	SampleRatio float64 `yaml:"sample_ratio" envconfig:"OTEL_SAMPLE_RATIO" default:"1.0"`
}

// OTelProviders bundles the SDK providers so the application can shut
// them down together.
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Metrics        *BusinessMetrics
}

// InitializeOTel sets up the tracer provider (stdout exporter, optional)
// and the meter provider backed by the Prometheus exporter, then builds
// the business metric instruments.
func InitializeOTel(ctx context.Context, cfg OTelConfig) (*OTelProviders, error) {
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
	))
	if err != nil {
		return nil, fmt.Errorf("building otel resource: %w", err)
	}

	traceOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
	}
	if cfg.TraceStdout {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("creating stdout trace exporter: %w", err)
		}
		traceOpts = append(traceOpts, sdktrace.WithBatcher(exp))
	}
	tp := sdktrace.NewTracerProvider(traceOpts...)
	otel.SetTracerProvider(tp)

	promExp, err := otelprom.New()
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExp),
	)
	otel.SetMeterProvider(mp)

	metrics, err := newBusinessMetrics(mp.Meter("licenseforge"))
	if err != nil {
		return nil, err
	}

	return &OTelProviders{
		TracerProvider: tp,
		MeterProvider:  mp,
		Metrics:        metrics,
	}, nil
}

// Shutdown flushes and stops both providers.
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var firstErr error
	if err := p.TracerProvider.Shutdown(ctx); err != nil {
		firstErr = err
	}
	if err := p.MeterProvider.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// BusinessMetrics are the domain-level instruments: license issuance,
// activation outcomes and validation checks. All methods are nil-safe so
// callers never need to guard for disabled observability.
type BusinessMetrics struct {
	licensesCreated    metric.Int64Counter
	activationAttempts metric.Int64Counter
	validations        metric.Int64Counter
}

func newBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	licensesCreated, err := meter.Int64Counter("licenseforge.licenses.created",
		metric.WithDescription("Licenses issued"))
	if err != nil {
		return nil, fmt.Errorf("creating licenses counter: %w", err)
	}
	activationAttempts, err := meter.Int64Counter("licenseforge.activations.attempts",
		metric.WithDescription("Activation attempts by outcome"))
	if err != nil {
		return nil, fmt.Errorf("creating activations counter: %w", err)
	}
	validations, err := meter.Int64Counter("licenseforge.validations",
		metric.WithDescription("License validation checks by outcome"))
	if err != nil {
		return nil, fmt.Errorf("creating validations counter: %w", err)
	}
	return &BusinessMetrics{
		licensesCreated:    licensesCreated,
		activationAttempts: activationAttempts,
		validations:        validations,
	}, nil
}

func (m *BusinessMetrics) RecordLicenseCreated(ctx context.Context, appID string) {
	if m == nil {
		return
	}
	m.licensesCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("app_id", appID)))
}

func (m *BusinessMetrics) RecordActivation(ctx context.Context, success bool, reason string) {
	if m == nil {
		return
	}
	m.activationAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("success", success),
		attribute.String("reason", reason),
	))
}

func (m *BusinessMetrics) RecordValidation(ctx context.Context, valid bool) {
	if m == nil {
		return
	}
	m.validations.Add(ctx, 1, metric.WithAttributes(attribute.Bool("valid", valid)))
}

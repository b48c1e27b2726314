// Package telemetry wires OpenTelemetry tracing for catalog loads, reloads
// and entity reads. Tracing is off unless enabled; spans then go to an OTLP
// HTTP collector configured through the standard OTEL_EXPORTER_OTLP_*
// variables or Config.Endpoint.
package telemetry

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// DefaultServiceName is used when Config.ServiceName is empty.
const DefaultServiceName = "pluginreg"

// Config controls tracing.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	// Endpoint is a full collector URL such as http://localhost:4318/v1/traces.
	// Empty defers to the OTEL_EXPORTER_OTLP_* environment.
	Endpoint string
	// SamplerType is one of always, never or ratio.
	SamplerType  string
	SamplerRatio float64
}

// InitTracer installs a global tracer provider and returns the function that
// flushes and stops it. When tracing is disabled the returned function is a
// no-op and the global provider is left alone.
func InitTracer(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }
	if !cfg.Enabled {
		return noop, nil
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = DefaultServiceName
	}
	sampler, err := newSampler(cfg)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to create resource")
	}

	var exporterOpts []otlptracehttp.Option
	if cfg.Endpoint != "" {
		exporterOpts = append(exporterOpts, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	}
	exporter, err := otlptracehttp.New(ctx, exporterOpts...)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to create trace exporter")
	}

	provider := trace.NewTracerProvider(
		trace.WithResource(res),
		trace.WithBatcher(exporter,
			trace.WithMaxExportBatchSize(512),
			trace.WithBatchTimeout(time.Second),
		),
		trace.WithSampler(sampler),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	// The provider shuts its batcher and exporter down with it.
	return func(ctx context.Context) error {
		return errors.Join(provider.ForceFlush(ctx), provider.Shutdown(ctx))
	}, nil
}

func newSampler(cfg Config) (trace.Sampler, error) {
	switch cfg.SamplerType {
	case "", "always":
		return trace.AlwaysSample(), nil
	case "never":
		return trace.NeverSample(), nil
	case "ratio":
		if cfg.SamplerRatio < 0 || cfg.SamplerRatio > 1 {
			return nil, pkgerrors.Errorf("sampler ratio must be between 0 and 1, got %v", cfg.SamplerRatio)
		}
		return trace.ParentBased(trace.TraceIDRatioBased(cfg.SamplerRatio)), nil
	default:
		return nil, pkgerrors.Errorf("unknown sampler type %q, want always, never or ratio", cfg.SamplerType)
	}
}

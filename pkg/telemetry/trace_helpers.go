package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
const (
	KeyManifest = attribute.Key("pluginreg.manifest")
	KeyDigest   = attribute.Key("pluginreg.catalog.digest")
	KeyPlugins  = attribute.Key("pluginreg.catalog.plugins")
	KeyPlugin   = attribute.Key("pluginreg.plugin")
	KeyRef      = attribute.Key("pluginreg.entity.ref")
)

// Tracer returns a named tracer from the global provider, defaulting to
// DefaultServiceName.
func Tracer(name string) trace.Tracer {
	if name == "" {
		name = DefaultServiceName
	}
	return otel.GetTracerProvider().Tracer(name)
}

// Start opens a span on the default tracer.
func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer("").Start(ctx, name, trace.WithAttributes(attrs...))
}

// Finish records the outcome held in *errp and ends span. It is meant to be
// deferred with a named error result:
//
//	ctx, span := telemetry.Start(ctx, "catalog.load")
//	defer telemetry.Finish(span, &err)
func Finish(span trace.Span, errp *error) {
	var err error
	if errp != nil {
		err = *errp
	}
	EndStatus(span, err)
	span.End()
}

// EndStatus marks span as failed when err is set and as ok otherwise.
// The caller still ends the span.
func EndStatus(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return
	}
	span.SetStatus(codes.Ok, "")
}

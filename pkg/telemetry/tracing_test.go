package telemetry

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitTracerDisabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), Config{Enabled: false, SamplerType: "bogus"})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracerRejectsBadSampler(t *testing.T) {
	_, err := InitTracer(context.Background(), Config{Enabled: true, SamplerType: "sometimes"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown sampler type "sometimes"`)
}

func TestNewSampler(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		expected string
		wantErr  string
	}{
		{name: "default", cfg: Config{}, expected: "AlwaysOn"},
		{name: "always", cfg: Config{SamplerType: "always"}, expected: "AlwaysOn"},
		{name: "never", cfg: Config{SamplerType: "never"}, expected: "AlwaysOff"},
		{name: "ratio", cfg: Config{SamplerType: "ratio", SamplerRatio: 0.5}, expected: "TraceIDRatioBased"},
		{name: "ratio out of range", cfg: Config{SamplerType: "ratio", SamplerRatio: 2}, wantErr: "between 0 and 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sampler, err := newSampler(tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, sampler.Description(), tt.expected)
		})
	}
}

func TestStartAndFinish(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	load := func(fail bool) (err error) {
		_, span := Start(context.Background(), "catalog.load", KeyManifest.String("marketplace.yaml"))
		defer Finish(span, &err)
		if fail {
			return errors.New("dangling reference")
		}
		return nil
	}

	require.NoError(t, load(false))
	require.Error(t, load(true))

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "catalog.load", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), KeyManifest.String("marketplace.yaml"))
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "dangling reference", spans[1].Status().Description)
}

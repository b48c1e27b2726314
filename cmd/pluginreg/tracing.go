package main

import (
	"context"

	"github.com/spf13/viper"

	"github.com/jingkaihe/pluginreg/pkg/telemetry"
	"github.com/jingkaihe/pluginreg/pkg/version"
)

// initTracing initializes the OpenTelemetry tracing system
func initTracing(ctx context.Context) (func(context.Context) error, error) {
	config := telemetry.Config{
		Enabled:        viper.GetBool("tracing.enabled"),
		ServiceName:    "pluginreg",
		ServiceVersion: version.Resolved().Version,
		Endpoint:       viper.GetString("tracing.endpoint"),
		SamplerType:    viper.GetString("tracing.sampler"),
		SamplerRatio:   viper.GetFloat64("tracing.ratio"),
	}

	return telemetry.InitTracer(ctx, config)
}

// Initialize global flags for tracing
func init() {
	flags := rootCmd.PersistentFlags()
	flags.Bool("tracing-enabled", false, "Enable OpenTelemetry tracing")
	flags.String("tracing-endpoint", "", "OTLP/HTTP trace endpoint URL (default: from OTEL_EXPORTER_OTLP_* variables)")
	flags.String("tracing-sampler", "ratio", "Tracing sampler type (always, never, ratio)")
	flags.Float64("tracing-ratio", 1, "Sampling ratio when using ratio sampler")

	viper.BindPFlag("tracing.enabled", flags.Lookup("tracing-enabled"))
	viper.BindPFlag("tracing.endpoint", flags.Lookup("tracing-endpoint"))
	viper.BindPFlag("tracing.sampler", flags.Lookup("tracing-sampler"))
	viper.BindPFlag("tracing.ratio", flags.Lookup("tracing-ratio"))
}

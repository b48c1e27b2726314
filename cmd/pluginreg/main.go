package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/pluginreg/pkg/logger"
	"github.com/jingkaihe/pluginreg/pkg/presenter"
)

var tracingShutdown func(context.Context) error

var rootCmd = &cobra.Command{
	Use:   "pluginreg",
	Short: "Plugin marketplace registry",
	Long: `pluginreg indexes a plugin marketplace manifest, checks that every agent,
command and skill a plugin declares has a definition, and serves the catalog
to hosts. Entity bodies are read only when an entity is opened.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := logger.Configure(viper.GetString("log_level"), viper.GetString("log_format")); err != nil {
			return err
		}
		if quiet, err := cmd.Flags().GetBool("quiet"); err == nil && quiet {
			presenter.SetQuiet(true)
		}

		shutdown, err := initTracing(cmd.Context())
		if err != nil {
			logger.G(cmd.Context()).WithError(err).Warn("failed to initialize tracing")
			return nil
		}
		tracingShutdown = shutdown
		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		flushTracing(context.Background())
	},
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

func init() {
	initConfig()

	flags := rootCmd.PersistentFlags()
	flags.StringP("manifest", "m", "", "Marketplace manifest path or URL (default: discovered from the current directory)")
	flags.String("root", "", "Content root for entity files (default: derived from the manifest location)")
	flags.String("token", "", "Bearer token for a remote marketplace")
	flags.String("log-level", "info", "Log level (panic, fatal, error, warn, info, debug, trace)")
	flags.String("log-format", "text", "Log format (text, json)")
	flags.String("state-db", "", "Install state database (default: ~/.pluginreg/state.db)")
	flags.BoolP("quiet", "q", false, "Suppress informational output")

	viper.BindPFlag("manifest", flags.Lookup("manifest"))
	viper.BindPFlag("root", flags.Lookup("root"))
	viper.BindPFlag("token", flags.Lookup("token"))
	viper.BindPFlag("log_level", flags.Lookup("log-level"))
	viper.BindPFlag("log_format", flags.Lookup("log-format"))
	viper.BindPFlag("state_db", flags.Lookup("state-db"))
}

// flushTracing exports pending spans and shuts the tracer down. Later
// calls are no-ops.
func flushTracing(ctx context.Context) {
	shutdown := tracingShutdown
	if shutdown == nil {
		return
	}
	tracingShutdown = nil
	if err := shutdown(ctx); err != nil {
		logger.G(ctx).WithError(err).Warn("failed to flush traces")
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		presenter.Error(err, "")
		flushTracing(context.Background())
		cancel()
		os.Exit(1)
	}
}

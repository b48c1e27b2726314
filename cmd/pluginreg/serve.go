package main

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/jingkaihe/pluginreg/pkg/httpapi"
	"github.com/jingkaihe/pluginreg/pkg/logger"
	"github.com/jingkaihe/pluginreg/pkg/presenter"
)

// ServeConfig holds configuration for the serve command
type ServeConfig struct {
	Host  string
	Port  int
	Watch bool
}

// NewServeConfig creates a new ServeConfig with default values
func NewServeConfig() *ServeConfig {
	return &ServeConfig{
		Host: "localhost",
		Port: 7420,
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the catalog over HTTP",
	Long: `Start a read-only HTTP API over the catalog. Plugins, their entity
identifiers and entity bodies are served from the active catalog; with --watch
the catalog is reloaded when the marketplace changes, without dropping
in-flight requests.

The server listens on localhost:7420 by default.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		config, err := getServeConfigFromFlags(cmd)
		exitOnError(err, "invalid server configuration")
		exitOnError(runServeCommand(cmd.Context(), config), "server failed")
	},
}

func init() {
	flags := serveCmd.Flags()
	flags.String("addr", "localhost:7420", "Address to listen on")
	flags.Bool("watch", false, "Reload the catalog when the marketplace changes")
	viper.BindPFlag("serve.addr", flags.Lookup("addr"))
	rootCmd.AddCommand(serveCmd)
}

// getServeConfigFromFlags extracts serve configuration from command flags
func getServeConfigFromFlags(cmd *cobra.Command) (*ServeConfig, error) {
	config := NewServeConfig()

	if addr := viper.GetString("serve.addr"); addr != "" {
		parsed, err := httpapi.ParseAddr(addr)
		if err != nil {
			return nil, err
		}
		config.Host = parsed.Host
		config.Port = parsed.Port
	}
	if watchFlag, err := cmd.Flags().GetBool("watch"); err == nil {
		config.Watch = watchFlag
	}

	return config, nil
}

// validateServeConfig validates the serve configuration
func validateServeConfig(config *ServeConfig) error {
	if config.Host == "" {
		return errors.New("host cannot be empty")
	}

	if config.Host != "localhost" && config.Host != "0.0.0.0" {
		if ip := net.ParseIP(config.Host); ip == nil {
			if strings.Contains(config.Host, " ") || strings.Contains(config.Host, ":") {
				return errors.Errorf("invalid host: %s", config.Host)
			}
		}
	}

	if config.Port < 1 || config.Port > 65535 {
		return errors.Errorf("port must be between 1 and 65535, got %d", config.Port)
	}

	if config.Port < 1024 {
		logger.G(context.Background()).WithField("port", config.Port).Warn("using privileged port (< 1024) may require elevated permissions")
	}

	return nil
}

func runServeCommand(ctx context.Context, config *ServeConfig) error {
	if err := validateServeConfig(config); err != nil {
		return err
	}

	registry, loc, err := newRegistry(ctx)
	if err != nil {
		return err
	}

	server, err := httpapi.NewServer(registry, &httpapi.ServerConfig{Host: config.Host, Port: config.Port})
	if err != nil {
		return err
	}

	logger.G(ctx).WithField("host", config.Host).WithField("port", config.Port).
		WithField("manifest", loc.Origin).Info("starting catalog API server")
	presenter.Success(fmt.Sprintf("Loaded %d plugins from %s", registry.Current().Len(), loc.Origin))
	presenter.Info("Press Ctrl+C to stop the server")

	g, gctx := errgroup.WithContext(ctx)
	if config.Watch {
		w, err := newWatcher(registry, loc)
		if err != nil {
			return err
		}
		g.Go(func() error { return w.Run(gctx) })
	}
	g.Go(func() error { return server.Start(gctx) })

	if err := g.Wait(); err != nil {
		return err
	}
	presenter.Info("Server stopped")
	return nil
}

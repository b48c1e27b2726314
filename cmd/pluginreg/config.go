package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/jingkaihe/pluginreg/pkg/catalog"
	"github.com/jingkaihe/pluginreg/pkg/content"
	"github.com/jingkaihe/pluginreg/pkg/db"
	"github.com/jingkaihe/pluginreg/pkg/logger"
	"github.com/jingkaihe/pluginreg/pkg/state"
)

// manifestCandidates are tried in order when no manifest is configured.
var manifestCandidates = []string{
	".claude-plugin/marketplace.json",
	".claude-plugin/marketplace.yaml",
	".claude-plugin/marketplace.yml",
	"marketplace.json",
	"marketplace.yaml",
	"marketplace.yml",
}

func initConfig() {
	viper.SetEnvPrefix("PLUGINREG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "text")
	viper.SetDefault("serve.addr", "localhost:7420")
	viper.SetDefault("watch.debounce", "300ms")
	viper.SetDefault("verify.concurrency", 8)
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.sampler", "ratio")
	viper.SetDefault("tracing.ratio", 1.0)

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.pluginreg")

	// Load config file if it exists (ignore errors if it doesn't)
	_ = viper.ReadInConfig()

	// A project file overrides the user config.
	if _, err := os.Stat("pluginreg.yaml"); err == nil {
		viper.SetConfigFile("pluginreg.yaml")
		if err := viper.MergeInConfig(); err != nil {
			logger.L.WithError(err).Warn("failed to read pluginreg.yaml")
		}
	}
}

// discoverManifest returns the configured manifest, or the first candidate
// that exists below dir.
func discoverManifest(configured, dir string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	for _, candidate := range manifestCandidates {
		p := filepath.Join(dir, filepath.FromSlash(candidate))
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", errors.Errorf("no marketplace manifest found in %s (tried %s); set --manifest", dir, strings.Join(manifestCandidates, ", "))
}

func openLocation() (content.Location, error) {
	wd, err := os.Getwd()
	if err != nil {
		return content.Location{}, errors.Wrap(err, "failed to get working directory")
	}
	manifestPath, err := discoverManifest(viper.GetString("manifest"), wd)
	if err != nil {
		return content.Location{}, err
	}

	var opts []content.HTTPOption
	if token := viper.GetString("token"); token != "" {
		opts = append(opts, content.WithToken(token))
	}
	return content.Open(manifestPath, viper.GetString("root"), opts...)
}

func catalogOptions() []catalog.Option {
	return []catalog.Option{catalog.WithConcurrency(viper.GetInt("verify.concurrency"))}
}

// loadCatalog loads the configured marketplace.
func loadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	loc, err := openLocation()
	if err != nil {
		return nil, err
	}
	return catalog.Load(ctx, loc, catalogOptions()...)
}

// newRegistry returns a registry for the configured marketplace, loaded once.
func newRegistry(ctx context.Context) (*catalog.Registry, content.Location, error) {
	loc, err := openLocation()
	if err != nil {
		return nil, content.Location{}, err
	}
	registry := catalog.NewRegistry(catalog.LoaderFor(loc, catalogOptions()...))
	if _, err := registry.Reload(ctx); err != nil {
		return nil, content.Location{}, err
	}
	return registry, loc, nil
}

func watchDebounce() time.Duration {
	return viper.GetDuration("watch.debounce")
}

// stateDBPath returns the configured install state database.
func stateDBPath() (string, error) {
	if path := viper.GetString("state_db"); path != "" {
		return path, nil
	}
	return db.DefaultDBPath()
}

func openStateStore(ctx context.Context) (*state.Store, error) {
	path, err := stateDBPath()
	if err != nil {
		return nil, err
	}
	return state.Open(ctx, path)
}

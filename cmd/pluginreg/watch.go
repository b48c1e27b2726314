package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/pluginreg/pkg/catalog"
	"github.com/jingkaihe/pluginreg/pkg/content"
	"github.com/jingkaihe/pluginreg/pkg/presenter"
	"github.com/jingkaihe/pluginreg/pkg/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Reload the catalog whenever the marketplace changes",
	Long: `Watch the content root and reload the catalog after every burst of changes.
Each successful reload prints what changed; a reload that fails prints the
problems and keeps the previous catalog active.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		exitOnError(runWatchCommand(cmd.Context()), "watch failed")
	},
}

func init() {
	flags := watchCmd.PersistentFlags()
	flags.Duration("debounce", watch.DefaultDebounce, "Quiet period before reloading")
	viper.BindPFlag("watch.debounce", flags.Lookup("debounce"))
	rootCmd.AddCommand(watchCmd)
}

// newWatcher returns a watcher for loc that reports every reload.
func newWatcher(registry *catalog.Registry, loc content.Location) (*watch.Watcher, error) {
	dir, ok := loc.Source.(*content.DirSource)
	if !ok || dir.Root() == "" {
		return nil, errors.Errorf("cannot watch %s: only local marketplaces can be watched", loc.Origin)
	}
	return watch.New(registry, dir.Root(),
		watch.WithDebounce(watchDebounce()),
		watch.WithReloadHook(reportReload),
	), nil
}

func reportReload(_ context.Context, result watch.Result) {
	if result.Err != nil {
		presenter.Error(result.Err, "reload failed, keeping the previous catalog")
		return
	}
	if result.Diff == "" {
		presenter.Info(fmt.Sprintf("Reloaded, no catalog changes (%s)", shortDigest(result.Current.Digest())))
		return
	}
	presenter.Success(fmt.Sprintf("Reloaded catalog %s", shortDigest(result.Current.Digest())))
	presenter.Diff(result.Diff)
}

func runWatchCommand(ctx context.Context) error {
	registry, loc, err := newRegistry(ctx)
	if err != nil {
		return err
	}
	w, err := newWatcher(registry, loc)
	if err != nil {
		return err
	}

	c := registry.Current()
	presenter.Success(fmt.Sprintf("Loaded %d plugins from %s (%s)", c.Len(), loc.Origin, shortDigest(c.Digest())))
	presenter.Info("Press Ctrl+C to stop watching")
	return w.Run(ctx)
}

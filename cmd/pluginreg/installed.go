package main

import (
	"context"
	"io"

	"github.com/opencontainers/go-digest"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/pluginreg/pkg/catalog"
	"github.com/jingkaihe/pluginreg/pkg/logger"
	"github.com/jingkaihe/pluginreg/pkg/presenter"
	"github.com/jingkaihe/pluginreg/pkg/state"
)

var installedCmd = &cobra.Command{
	Use:   "installed",
	Short: "List installed plugins and whether the catalog still provides them",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		exitOnError(runInstalledCommand(cmd.Context(), cmd.OutOrStdout(), jsonOutput), "failed to list installed plugins")
	},
}

func init() {
	installedCmd.Flags().Bool("json", false, "Print install records as JSON")
	rootCmd.AddCommand(installedCmd)
}

// installStatus compares an install record with the current catalog, which
// may be nil when it failed to load.
func installStatus(inst state.Installation, c *catalog.Catalog) string {
	if c == nil {
		return "unknown"
	}
	p, err := c.Resolve(inst.PluginID)
	if err != nil {
		return "removed"
	}
	if p.Version != inst.Version {
		return "version changed"
	}
	if digest.Digest(inst.CatalogDigest) != c.Digest() {
		return "catalog changed"
	}
	return "current"
}

func runInstalledCommand(ctx context.Context, w io.Writer, jsonOutput bool) error {
	store, err := openStateStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	installs, err := store.Installed(ctx)
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(w, installs)
	}
	if len(installs) == 0 {
		presenter.Info("No plugins installed")
		return nil
	}

	c, err := loadCatalog(ctx)
	if err != nil {
		logger.G(ctx).WithError(err).Warn("failed to load catalog, install status is unknown")
		presenter.Warning("catalog could not be loaded, install status is unknown")
		c = nil
	}

	rows := make([][]string, 0, len(installs))
	for _, inst := range installs {
		version := inst.Version
		if version == "" {
			version = "-"
		}
		rows = append(rows, []string{
			inst.PluginID,
			version,
			inst.InstalledAt.Local().Format("2006-01-02 15:04"),
			shortDigest(digest.Digest(inst.CatalogDigest)),
			installStatus(inst, c),
		})
	}
	presenter.Table([]string{"PLUGIN", "VERSION", "INSTALLED", "DIGEST", "STATUS"}, rows)
	return nil
}

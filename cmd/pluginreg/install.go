package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/pluginreg/pkg/presenter"
)

var installCmd = &cobra.Command{
	Use:   "install <plugin>...",
	Short: "Record plugins as installed",
	Long: `Record one or more plugins as installed, together with their version and
the digest of the catalog they came from. Installing again refreshes the
record.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		exitOnError(runInstallCommand(cmd.Context(), args), "install failed")
	},
}

func init() {
	rootCmd.AddCommand(installCmd)
}

func runInstallCommand(ctx context.Context, ids []string) error {
	c, err := loadCatalog(ctx)
	if err != nil {
		return err
	}
	store, err := openStateStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	for _, id := range ids {
		inst, err := store.Install(ctx, c, id)
		if err != nil {
			return err
		}
		label := inst.PluginID
		if inst.Version != "" {
			label += "@" + inst.Version
		}
		presenter.Success(fmt.Sprintf("Installed %s", label))
	}
	return nil
}

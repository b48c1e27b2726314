package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/pluginreg/pkg/presenter"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <plugin>...",
	Short: "Remove install records",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		exitOnError(runUninstallCommand(cmd.Context(), args), "uninstall failed")
	},
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
}

func runUninstallCommand(ctx context.Context, ids []string) error {
	store, err := openStateStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	for _, id := range ids {
		if err := store.Uninstall(ctx, id); err != nil {
			return err
		}
		presenter.Success(fmt.Sprintf("Uninstalled %s", id))
	}
	return nil
}

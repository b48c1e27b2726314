package main

import (
	"github.com/spf13/cobra"

	"github.com/jingkaihe/pluginreg/pkg/tui"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse plugins and entities interactively",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		c, err := loadCatalog(ctx)
		exitOnError(err, "failed to load catalog")
		exitOnError(tui.Browse(ctx, c), "browser failed")
	},
}

func init() {
	rootCmd.AddCommand(browseCmd)
}

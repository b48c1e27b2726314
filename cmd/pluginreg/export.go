package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/pluginreg/pkg/catalog"
	"github.com/jingkaihe/pluginreg/pkg/presenter"
)

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Write the catalog metadata and its digest to a file",
	Long: `Write the catalog snapshot (plugin metadata and entity identifiers, no
bodies) together with its content digest. Exports can be compared later with
'pluginreg diff'.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		exitOnError(runExportCommand(cmd.Context(), args[0]), "failed to export catalog")
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}

func runExportCommand(ctx context.Context, path string) error {
	c, err := loadCatalog(ctx)
	if err != nil {
		return err
	}
	if err := catalog.WriteExport(path, c); err != nil {
		return err
	}
	presenter.Success(fmt.Sprintf("Exported %d plugins to %s", c.Len(), path))
	presenter.Field("digest", c.Digest().String())
	return nil
}

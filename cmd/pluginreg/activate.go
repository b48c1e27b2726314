package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/pluginreg/pkg/catalog"
	"github.com/jingkaihe/pluginreg/pkg/logger"
)

var activateCmd = &cobra.Command{
	Use:   "activate <plugin/category/entity | plugin:command>",
	Short: "Load an entity of an installed plugin and record the activation",
	Long: `Load the definition of one entity from an installed plugin, print it and
record the activation in the state database.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		exitOnError(runActivateCommand(cmd.Context(), cmd.OutOrStdout(), args[0]), "activation failed")
	},
}

func init() {
	rootCmd.AddCommand(activateCmd)
}

func runActivateCommand(ctx context.Context, w io.Writer, rawRef string) error {
	ref, err := catalog.ParseRef(rawRef)
	if err != nil {
		return err
	}
	c, err := loadCatalog(ctx)
	if err != nil {
		return err
	}
	store, err := openStateStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	body, activation, err := store.Activate(ctx, c, ref)
	if err != nil {
		return err
	}
	logger.G(ctx).WithField("activation", activation.ID).Debug("activation recorded")

	_, err = fmt.Fprintln(w, body.Text)
	return err
}

package main

import (
	"context"
	"io"

	"github.com/opencontainers/go-digest"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/pluginreg/pkg/presenter"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent entity activations",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		limit, _ := cmd.Flags().GetInt("limit")
		jsonOutput, _ := cmd.Flags().GetBool("json")
		exitOnError(runHistoryCommand(cmd.Context(), cmd.OutOrStdout(), limit, jsonOutput), "failed to read history")
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of activations to show (0 for all)")
	historyCmd.Flags().Bool("json", false, "Print activations as JSON")
	rootCmd.AddCommand(historyCmd)
}

func runHistoryCommand(ctx context.Context, w io.Writer, limit int, jsonOutput bool) error {
	store, err := openStateStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	activations, err := store.History(ctx, limit)
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(w, activations)
	}
	if len(activations) == 0 {
		presenter.Info("No activations recorded")
		return nil
	}

	rows := make([][]string, 0, len(activations))
	for _, a := range activations {
		rows = append(rows, []string{
			a.ActivatedAt.Local().Format("2006-01-02 15:04:05"),
			a.Ref().String(),
			shortDigest(digest.Digest(a.CatalogDigest)),
		})
	}
	presenter.Table([]string{"TIME", "ENTITY", "DIGEST"}, rows)
	return nil
}

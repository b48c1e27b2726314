package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/pluginreg/pkg/catalog"
	"github.com/jingkaihe/pluginreg/pkg/presenter"
)

var diffCmd = &cobra.Command{
	Use:   "diff <export> [export]",
	Short: "Compare catalog exports",
	Long: `Compare two catalog exports, or one export with the current catalog when
only one file is given.`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		exitCode, _ := cmd.Flags().GetBool("exit-code")
		exitOnError(runDiffCommand(cmd.Context(), args, exitCode), "failed to diff catalogs")
	},
}

func init() {
	diffCmd.Flags().Bool("exit-code", false, "Fail when the catalogs differ")
	rootCmd.AddCommand(diffCmd)
}

// diffExports returns the unified diff between two exports and whether
// their digests differ.
func diffExports(oldLabel string, old *catalog.Export, newLabel string, updated *catalog.Export) (string, bool, error) {
	if old.Digest == updated.Digest {
		return "", false, nil
	}
	diff, err := catalog.Diff(oldLabel, old.Catalog, newLabel, updated.Catalog)
	if err != nil {
		return "", false, err
	}
	return diff, true, nil
}

func runDiffCommand(ctx context.Context, args []string, exitCode bool) error {
	old, err := catalog.ReadExport(args[0])
	if err != nil {
		return err
	}

	var (
		updated  *catalog.Export
		newLabel string
	)
	if len(args) == 2 {
		if updated, err = catalog.ReadExport(args[1]); err != nil {
			return err
		}
		newLabel = args[1]
	} else {
		c, err := loadCatalog(ctx)
		if err != nil {
			return err
		}
		current := c.Export()
		updated = &current
		newLabel = c.Origin()
	}

	diff, changed, err := diffExports(args[0], old, newLabel, updated)
	if err != nil {
		return err
	}
	if !changed {
		presenter.Success(fmt.Sprintf("Catalogs are identical (%s)", shortDigest(old.Digest)))
		return nil
	}

	presenter.Info(fmt.Sprintf("%s -> %s", shortDigest(old.Digest), shortDigest(updated.Digest)))
	presenter.Diff(diff)
	if exitCode {
		return errors.New("catalogs differ")
	}
	return nil
}

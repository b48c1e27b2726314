package main

import (
	"context"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jingkaihe/pluginreg/pkg/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the catalog as MCP tools over stdio",
	Long: `Run an MCP server on stdin and stdout exposing list_plugins,
resolve_plugin, entities_for and load_entity_body. Logs go to stderr.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		watchFlag, _ := cmd.Flags().GetBool("watch")
		exitOnError(runMCPCommand(cmd.Context(), watchFlag), "MCP server failed")
	},
}

func init() {
	mcpCmd.Flags().Bool("watch", false, "Reload the catalog when the marketplace changes")
	rootCmd.AddCommand(mcpCmd)
}

func runMCPCommand(ctx context.Context, watchFlag bool) error {
	registry, loc, err := newRegistry(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	if watchFlag {
		w, err := newWatcher(registry, loc)
		if err != nil {
			return err
		}
		g.Go(func() error { return w.Run(gctx) })
	}
	g.Go(func() error {
		// The stdio transport returns when the client disconnects.
		defer cancel()
		return mcpserver.ServeStdio(gctx, registry)
	})
	return g.Wait()
}

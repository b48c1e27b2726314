package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/pluginreg/pkg/catalog"
	"github.com/jingkaihe/pluginreg/pkg/manifest"
	"github.com/jingkaihe/pluginreg/pkg/presenter"
)

var showCmd = &cobra.Command{
	Use:   "show <plugin>",
	Short: "Show one plugin and the entities it provides",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		exitOnError(runShowCommand(cmd.Context(), cmd.OutOrStdout(), args[0], jsonOutput), "failed to show plugin")
	},
}

func init() {
	showCmd.Flags().Bool("json", false, "Print the plugin as JSON")
	rootCmd.AddCommand(showCmd)
}

func runShowCommand(ctx context.Context, w io.Writer, id string, jsonOutput bool) error {
	c, err := loadCatalog(ctx)
	if err != nil {
		return err
	}
	p, err := c.Resolve(id)
	if err != nil {
		return err
	}

	if jsonOutput {
		return writeJSON(w, p)
	}

	presenter.Section(p.Name)
	presenter.Field("id", p.ID)
	presenter.Field("category", p.Category)
	if p.Version != "" {
		presenter.Field("version", p.Version)
	}
	if p.Description != "" {
		presenter.Field("description", p.Description)
	}
	if p.Author != nil {
		author := p.Author.Name
		if p.Author.Email != "" {
			author = fmt.Sprintf("%s <%s>", author, p.Author.Email)
		}
		presenter.Field("author", author)
	}
	if len(p.Keywords) > 0 {
		presenter.Field("keywords", joinOrDash(p.Keywords))
	}
	presenter.Field("source", p.Source)
	presenter.Field("agents", joinOrDash(p.Entities.Agents))
	presenter.Field("commands", joinOrDash(commandNames(p)))
	presenter.Field("skills", joinOrDash(p.Entities.Skills))
	return nil
}

// commandNames returns the namespaced names a host uses for p's commands.
func commandNames(p catalog.Plugin) []string {
	ids := p.Entities.Get(manifest.KindCommand)
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = catalog.CommandName(p.ID, id)
	}
	return names
}

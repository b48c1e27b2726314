package main

import (
	"context"
	"io"
	"strconv"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/pluginreg/pkg/catalog"
	"github.com/jingkaihe/pluginreg/pkg/presenter"
)

// ListConfig holds configuration for the list command
type ListConfig struct {
	Category string
	Match    string
	JSON     bool
}

// NewListConfig creates a new ListConfig with default values
func NewListConfig() *ListConfig {
	return &ListConfig{}
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List plugins in declaration order",
	Long: `List the plugins of the marketplace in the order the manifest declares them.
Use --category to keep one category and --match to filter identifiers with a
glob such as "python-*".`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		config := getListConfigFromFlags(cmd)
		exitOnError(runListCommand(cmd.Context(), cmd.OutOrStdout(), config), "failed to list plugins")
	},
}

func init() {
	defaults := NewListConfig()
	listCmd.Flags().StringP("category", "c", defaults.Category, "Only list plugins in this category")
	listCmd.Flags().String("match", defaults.Match, "Only list plugins whose id matches this glob")
	listCmd.Flags().Bool("json", defaults.JSON, "Print plugins as JSON")
	rootCmd.AddCommand(listCmd)
}

func getListConfigFromFlags(cmd *cobra.Command) *ListConfig {
	config := NewListConfig()
	if category, err := cmd.Flags().GetString("category"); err == nil {
		config.Category = category
	}
	if match, err := cmd.Flags().GetString("match"); err == nil {
		config.Match = match
	}
	if jsonOutput, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSON = jsonOutput
	}
	return config
}

// filterPlugins keeps the plugins selected by config, preserving order.
func filterPlugins(plugins []catalog.PluginSummary, config *ListConfig) ([]catalog.PluginSummary, error) {
	var matcher glob.Glob
	if config.Match != "" {
		g, err := glob.Compile(config.Match)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid match pattern %q", config.Match)
		}
		matcher = g
	}

	out := make([]catalog.PluginSummary, 0, len(plugins))
	for _, p := range plugins {
		if config.Category != "" && p.Category != config.Category {
			continue
		}
		if matcher != nil && !matcher.Match(p.ID) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func runListCommand(ctx context.Context, w io.Writer, config *ListConfig) error {
	c, err := loadCatalog(ctx)
	if err != nil {
		return err
	}

	plugins, err := filterPlugins(c.Plugins(), config)
	if err != nil {
		return err
	}

	if config.JSON {
		return writeJSON(w, plugins)
	}

	if len(plugins) == 0 {
		presenter.Info("No plugins found")
		return nil
	}

	rows := make([][]string, 0, len(plugins))
	for _, p := range plugins {
		set, err := c.EntitiesFor(p.ID)
		if err != nil {
			return err
		}
		version := p.Version
		if version == "" {
			version = "-"
		}
		rows = append(rows, []string{
			p.ID,
			p.Name,
			p.Category,
			version,
			strconv.Itoa(len(set.Agents)),
			strconv.Itoa(len(set.Commands)),
			strconv.Itoa(len(set.Skills)),
		})
	}
	presenter.Table([]string{"ID", "NAME", "CATEGORY", "VERSION", "AGENTS", "COMMANDS", "SKILLS"}, rows)
	return nil
}

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/pluginreg/pkg/catalog"
	"github.com/jingkaihe/pluginreg/pkg/presenter"
)

// BodyConfig holds configuration for the body command
type BodyConfig struct {
	Raw  bool
	JSON bool
}

// NewBodyConfig creates a new BodyConfig with default values
func NewBodyConfig() *BodyConfig {
	return &BodyConfig{}
}

var bodyCmd = &cobra.Command{
	Use:   "body <plugin/category/entity | plugin:command>",
	Short: "Print the definition of one entity",
	Long: `Load and print one entity definition. The frontmatter is stripped unless
--raw is given. Entities are read from the content root on demand, so a file
removed after the catalog was loaded is reported as not found.`,
	Example: `  pluginreg body kubernetes-operations/skills/helm-charts
  pluginreg body code-review:review --raw`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config := getBodyConfigFromFlags(cmd)
		exitOnError(runBodyCommand(cmd.Context(), cmd.OutOrStdout(), args[0], config), "failed to load entity")
	},
}

func init() {
	defaults := NewBodyConfig()
	bodyCmd.Flags().Bool("raw", defaults.Raw, "Print the file as stored, including frontmatter")
	bodyCmd.Flags().Bool("json", defaults.JSON, "Print the body and its frontmatter fields as JSON")
	rootCmd.AddCommand(bodyCmd)
}

func getBodyConfigFromFlags(cmd *cobra.Command) *BodyConfig {
	config := NewBodyConfig()
	if raw, err := cmd.Flags().GetBool("raw"); err == nil {
		config.Raw = raw
	}
	if jsonOutput, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSON = jsonOutput
	}
	return config
}

func runBodyCommand(ctx context.Context, w io.Writer, rawRef string, config *BodyConfig) error {
	ref, err := catalog.ParseRef(rawRef)
	if err != nil {
		return err
	}
	c, err := loadCatalog(ctx)
	if err != nil {
		return err
	}
	body, err := c.LoadEntityBody(ctx, ref)
	if err != nil {
		return err
	}

	switch {
	case config.JSON:
		return writeJSON(w, map[string]any{
			"ref":         ref.String(),
			"description": body.Description,
			"activation":  body.Activation,
			"meta":        body.Meta,
			"text":        body.Text,
		})
	case config.Raw:
		_, err = w.Write(body.Raw)
	default:
		if body.Description != "" {
			presenter.Info(body.Description)
		}
		_, err = fmt.Fprintln(w, body.Text)
	}
	return err
}

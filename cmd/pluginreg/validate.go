package main

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/pluginreg/pkg/catalog"
	"github.com/jingkaihe/pluginreg/pkg/content"
	"github.com/jingkaihe/pluginreg/pkg/manifest"
	"github.com/jingkaihe/pluginreg/pkg/presenter"
)

// ValidateConfig holds configuration for the validate command
type ValidateConfig struct {
	JSON bool
}

// NewValidateConfig creates a new ValidateConfig with default values
func NewValidateConfig() *ValidateConfig {
	return &ValidateConfig{JSON: false}
}

// validationProblem is the JSON form of one manifest error.
type validationProblem struct {
	Kind     string `json:"kind"`
	Plugin   string `json:"plugin,omitempty"`
	Category string `json:"category,omitempty"`
	Entity   string `json:"entity,omitempty"`
	Field    string `json:"field,omitempty"`
	Message  string `json:"message"`
}

type validationReport struct {
	Valid    bool                `json:"valid"`
	Manifest string              `json:"manifest"`
	Digest   string              `json:"digest,omitempty"`
	Plugins  int                 `json:"plugins"`
	Entities int                 `json:"entities"`
	Problems []validationProblem `json:"problems,omitempty"`
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the marketplace manifest and its entity references",
	Long: `Load the marketplace manifest, check its structure and check that every
agent, command and skill a plugin declares has a definition. All problems
found are reported together. Entity bodies are not read.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		config := getValidateConfigFromFlags(cmd)
		exitOnError(runValidateCommand(cmd.Context(), cmd.OutOrStdout(), config), "validation failed")
	},
}

func init() {
	defaults := NewValidateConfig()
	validateCmd.Flags().Bool("json", defaults.JSON, "Print the report as JSON")
	rootCmd.AddCommand(validateCmd)
}

func getValidateConfigFromFlags(cmd *cobra.Command) *ValidateConfig {
	config := NewValidateConfig()
	if jsonOutput, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSON = jsonOutput
	}
	return config
}

// validateLocation loads loc and reports the outcome. Manifest errors are
// part of the report; other errors are returned.
func validateLocation(ctx context.Context, loc content.Location) (*validationReport, error) {
	report := &validationReport{Manifest: loc.Origin}

	c, err := catalog.Load(ctx, loc, catalogOptions()...)
	if err != nil {
		problems := manifest.Errors(err)
		if len(problems) == 0 {
			return nil, err
		}
		for _, p := range problems {
			report.Problems = append(report.Problems, validationProblem{
				Kind:     p.Kind.String(),
				Plugin:   p.Plugin,
				Category: string(p.Category),
				Entity:   p.Entity,
				Field:    p.Field,
				Message:  p.Message,
			})
		}
		return report, nil
	}

	report.Valid = true
	report.Digest = c.Digest().String()
	report.Plugins = c.Len()
	for _, s := range c.Plugins() {
		set, err := c.EntitiesFor(s.ID)
		if err != nil {
			return nil, err
		}
		report.Entities += set.Len()
	}
	return report, nil
}

func runValidateCommand(ctx context.Context, w io.Writer, config *ValidateConfig) error {
	loc, err := openLocation()
	if err != nil {
		return err
	}

	report, err := validateLocation(ctx, loc)
	if err != nil {
		return err
	}

	if config.JSON {
		if err := writeJSON(w, report); err != nil {
			return err
		}
	} else if report.Valid {
		presenter.Success(fmt.Sprintf("%s is valid: %d plugins, %d entities", report.Manifest, report.Plugins, report.Entities))
		presenter.Field("digest", report.Digest)
	} else {
		rows := make([][]string, 0, len(report.Problems))
		for _, p := range report.Problems {
			subject := p.Field
			if p.Entity != "" {
				subject = p.Category + "/" + p.Entity
			}
			rows = append(rows, []string{p.Kind, p.Plugin, subject, p.Message})
		}
		presenter.Table([]string{"KIND", "PLUGIN", "ENTITY/FIELD", "PROBLEM"}, rows)
	}

	if !report.Valid {
		return errors.Errorf("%s has %d problem(s)", report.Manifest, len(report.Problems))
	}
	return nil
}

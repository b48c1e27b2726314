package main

import (
	"github.com/spf13/cobra"

	"github.com/jingkaihe/pluginreg/pkg/manifest"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schema for marketplace manifests",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		data, err := manifest.Schema()
		exitOnError(err, "failed to generate schema")
		_, err = cmd.OutOrStdout().Write(append(data, '\n'))
		exitOnError(err, "failed to write schema")
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}

package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

var configGenerate = &cobra.Command{
	Use:   "generate",
	Short: "Generate a config file",
	Long:  "Generate a config file from the current settings. The file is written to the standard output unless --output is set.",
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := yaml.Marshal(config)
		if err != nil {
			return err
		}
		if params.config.output == "" {
			_, err = cmd.OutOrStdout().Write(o)
			return err
		}
		return os.WriteFile(params.config.output, o, 0600)
	},
}

func init() {
	addOutputFlag(configGenerate)
	configCmd.AddCommand(configGenerate)
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect photohistory configuration",
	Long: `Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (PHOTOHISTORY_*, OPENAI_API_KEY)
3. Config file (~/.photohistory/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := loadSettings()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		errOut := cmd.ErrOrStderr()
		if file := viper.ConfigFileUsed(); file != "" {
			fmt.Fprintf(errOut, "Configuration file: %s\n\n", file)
		} else {
			fmt.Fprintf(errOut, "No configuration file found (using defaults)\n\n")
		}

		data, err := yaml.Marshal(s.redacted())
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
}

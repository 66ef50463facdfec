package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/contactd/contactd/internal/config"
	"github.com/contactd/contactd/internal/output"
)

var configFormat string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		redacted := cfg.Redacted()

		var rendered string
		switch configFormat {
		case "json":
			rendered, err = output.MarshalJSON(redacted)
		case "", "yaml":
			rendered, err = output.MarshalYAML(redacted)
		default:
			return fmt.Errorf("unsupported output format: %s", configFormat)
		}
		if err != nil {
			return err
		}

		fmt.Fprint(cmd.OutOrStdout(), rendered)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the default config file location",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), config.DefaultConfigPath(GetAppIdentity().ConfigName))
	},
}

func init() {
	configShowCmd.Flags().StringVarP(&configFormat, "format", "f", "yaml", "output format (yaml, json)")
	configCmd.AddCommand(configShowCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}

package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/contactd/contactd/internal/config"
	"github.com/contactd/contactd/internal/output"
)

var envInfoFormat string

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display version, runtime and effective configuration. Secrets are masked.",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(envInfoFormat)
		if err != nil {
			return err
		}

		identity := GetAppIdentity()
		version := crucible.GetVersion()

		report := &output.Report{Title: identity.BinaryName + " environment"}
		report.Add("Application", "Name", identity.BinaryName)
		report.Add("Application", "Version", versionInfo.Version)
		report.Add("Application", "Commit", versionInfo.Commit)
		report.Add("Application", "Built", versionInfo.BuildDate)
		report.Add("Application", "Env prefix", identity.Prefix())

		report.Add("Libraries", "Gofulmen", version.Gofulmen)
		report.Add("Libraries", "Crucible", version.Crucible)

		report.Add("Runtime", "Go", runtime.Version())
		report.Add("Runtime", "GOOS/GOARCH", runtime.GOOS+"/"+runtime.GOARCH)
		report.Add("Runtime", "NumCPU", fmt.Sprintf("%d", runtime.NumCPU()))

		cfg, err := loadConfig()
		if err != nil {
			report.Check("Configuration", "load", err)
		} else {
			addConfigRows(report, cfg)
		}

		rendered, err := output.NewFormatter(format).FormatReport(report)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), rendered)
		return nil
	},
}

func addConfigRows(report *output.Report, cfg *config.Config) {
	redacted := cfg.Redacted()

	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		configFile = "(none; default " + config.DefaultConfigPath(GetAppIdentity().ConfigName) + ")"
	}

	report.Add("Configuration", "Config file", configFile)
	report.Add("Configuration", "Mode", redacted.Mode)
	report.Add("Configuration", "Listen", fmt.Sprintf("%s:%d", redacted.Server.Host, redacted.Server.Port))
	report.Add("Configuration", "Rate limit window", redacted.RateLimit.Window.String())
	report.Add("Configuration", "CORS origins", strings.Join(redacted.CORS.AllowedOrigins, ", "))
	report.Add("Configuration", "Log level", redacted.Logging.Level)
	report.Add("Configuration", "Log format", redacted.Logging.Format)
	report.Add("Configuration", "Metrics", fmt.Sprintf("%t (port %d)", redacted.Metrics.Enabled, redacted.Metrics.Port))
	if redacted.IsProduction() {
		report.Add("Configuration", "Static dir", redacted.Static.Dir)
	}

	report.Add("Dispatch", "Mode", redacted.Dispatch.Mode)
	report.Add("Dispatch", "Timeout", redacted.Dispatch.Timeout.String())
	report.Add("Dispatch", "Throttle", fmt.Sprintf("%.2f/s burst %d", redacted.Dispatch.MaxPerSecond, redacted.Dispatch.Burst))

	switch redacted.Dispatch.Mode {
	case config.DispatchMail:
		report.Add("Dispatch", "SMTP", fmt.Sprintf("%s:%d (ssl=%t)", redacted.Mail.Host, redacted.Mail.Port, redacted.Mail.SSL))
		report.Add("Dispatch", "User", redacted.Mail.User)
		report.Add("Dispatch", "Password", redacted.Mail.Password)
		report.Add("Dispatch", "Recipient", redacted.Mail.To)
	case config.DispatchIndex:
		report.Add("Dispatch", "Index URL", redacted.Index.BaseURL)
		report.Add("Dispatch", "Index name", redacted.Index.Name)
		report.Add("Dispatch", "Password", redacted.Index.Password)
	}
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
	envInfoCmd.Flags().StringVarP(&envInfoFormat, "format", "f", "table", "output format (table, json, markdown, yaml)")
}

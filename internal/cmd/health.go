package cmd

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/contactd/contactd/internal/config"
	"github.com/contactd/contactd/internal/core/dispatch"
	errwrap "github.com/contactd/contactd/internal/errors"
	"github.com/contactd/contactd/internal/observability"
	"github.com/contactd/contactd/internal/output"
)

var (
	healthRemote  bool
	healthTimeout time.Duration
	healthFormat  string
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long: `Verify the service can start: version info, configuration and dispatcher.

With --remote the configured backend is contacted as well: the SMTP relay is
dialed in mail mode and the cluster health endpoint is queried in index mode.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(healthFormat)
		if err != nil {
			return err
		}

		report := &output.Report{Title: GetAppIdentity().BinaryName + " health"}

		if versionInfo.Version == "" {
			report.Check("Checks", "version", errwrap.NewConfigInvalidError("version information missing"))
		} else {
			report.Check("Checks", "version", nil)
		}

		cfg, err := loadConfig()
		report.Check("Checks", "config", err)

		if cfg != nil {
			d, err := dispatch.New(cfg)
			report.Check("Checks", "dispatcher", err)

			if healthRemote && d != nil {
				ctx, cancel := context.WithTimeout(cmd.Context(), healthTimeout)
				report.Check("Remote", d.Name(), checkRemote(ctx, cfg, d))
				cancel()
			}
		}

		rendered, err := output.NewFormatter(format).FormatReport(report)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), rendered)

		if report.Failed() {
			ExitWithCode(observability.CLILogger, foundry.ExitFailure, "Health check failed", nil)
		}
		return nil
	},
}

func checkRemote(ctx context.Context, cfg *config.Config, d dispatch.Dispatcher) error {
	if searcher, ok := dispatch.SearcherOf(d); ok {
		_, err := searcher.Health(ctx)
		return err
	}

	addr := net.JoinHostPort(cfg.Mail.Host, strconv.Itoa(cfg.Mail.Port))
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return conn.Close()
}

func init() {
	rootCmd.AddCommand(healthCmd)
	healthCmd.Flags().BoolVar(&healthRemote, "remote", false, "also contact the configured SMTP relay or index")
	healthCmd.Flags().DurationVar(&healthTimeout, "timeout", 5*time.Second, "timeout for remote checks")
	healthCmd.Flags().StringVarP(&healthFormat, "format", "f", "table", "output format (table, json, markdown, yaml)")
}

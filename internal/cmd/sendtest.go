package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/contactd/contactd/internal/config"
	"github.com/contactd/contactd/internal/core/dispatch"
	"github.com/contactd/contactd/internal/observability"
	"github.com/contactd/contactd/internal/output"
)

var sendTestTimeout time.Duration

var sendTestCmd = &cobra.Command{
	Use:   "send-test",
	Short: "Send a test message through the configured SMTP relay",
	Long: `Compose and send a test message to mail.to using the configured SMTP
credentials. Use this to confirm the relay accepts the account before
starting the server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Dispatch.Mode != config.DispatchMail {
			return fmt.Errorf("send-test requires dispatch.mode=%s (current: %s)", config.DispatchMail, cfg.Dispatch.Mode)
		}

		mailer := dispatch.NewMailDispatcher(cfg.Mail)

		ctx, cancel := context.WithTimeout(cmd.Context(), sendTestTimeout)
		defer cancel()

		observability.CLILogger.Info("Sending test message",
			zap.String("host", cfg.Mail.Host),
			zap.Int("port", cfg.Mail.Port),
			zap.String("to", cfg.Mail.To))

		messageID, err := mailer.SendTest(ctx)
		if err != nil {
			return err
		}

		report := &output.Report{}
		report.Add("Test message", "Subject", dispatch.TestSubject)
		report.Add("Test message", "Recipient", cfg.Mail.To)
		report.Add("Test message", "Message-Id", messageID)

		rendered, err := output.NewFormatter(output.FormatTable).FormatReport(report)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), rendered)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sendTestCmd)
	sendTestCmd.Flags().DurationVar(&sendTestTimeout, "timeout", 30*time.Second, "send timeout")
}

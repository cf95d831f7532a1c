package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vnykmshr/sendgate/pkg/mail"
)

func newSendCmd(global *globalFlags) *cobra.Command {
	msg := &messageFlags{}
	var to string

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send one templated email",
		Long: `Render the template for one recipient, send it through the rate gate
and print the result as JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if to == "" {
				return errors.New("--to is required")
			}

			a, err := newApp(global)
			if err != nil {
				return err
			}
			defer a.logger.Sync() // nolint:errcheck // stderr sync fails on some terminals

			c, err := msg.composer(a.cfg.Mail)
			if err != nil {
				return err
			}
			email, err := c.compose(to)
			if err != nil {
				return err
			}

			result := a.sender.Send(cmd.Context(), email)

			if msg.metricsFile != "" {
				if err := a.tracker.PersistFile(msg.metricsFile); err != nil {
					a.logger.Error("failed to save delivery metrics", zap.Error(err))
				}
			}

			if err := printJSON(cmd, result); err != nil {
				return err
			}
			if result.Status != mail.StatusSuccess {
				return fmt.Errorf("send to %s failed: %s", to, result.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "recipient address")
	msg.register(cmd)
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

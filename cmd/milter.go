package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zpam/spam-detect/pkg/logging"
	"github.com/zpam/spam-detect/pkg/milter"
)

var (
	milterNetwork string
	milterAddress string
)

var milterCmd = &cobra.Command{
	Use:   "milter",
	Short: "Start milter server for Postfix/Sendmail integration",
	Long: `Start the ZPAM milter server to classify mail as the MTA receives it.

Every message gets X-Spam-Status, X-Spam-Confidence, X-Spam-Probability and
X-Spam-Info headers (prefix configurable). When milter.reject_confidence is
above 0, spam at or above that confidence is rejected with 550 5.7.1.

Example usage:
  zpam milter
  zpam milter --config /etc/zpam/config.yaml
  zpam milter --network unix --address /run/zpam/milter.sock

For Postfix integration, add to main.cf:
  smtpd_milters = inet:127.0.0.1:7357
  non_smtpd_milters = inet:127.0.0.1:7357
  milter_default_action = accept`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadEnv(); err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("network") {
			cfg.Milter.Network = milterNetwork
		}
		if cmd.Flags().Changed("address") {
			cfg.Milter.Address = milterAddress
		}

		deps, err := newDependencies(cfg, true)
		if err != nil {
			return err
		}
		defer deps.Close()

		pred, err := deps.requirePredictor()
		if err != nil {
			return err
		}

		log := logging.Component(deps.log, "milter")
		server, err := milter.NewServer(cfg.Milter, pred, log)
		if err != nil {
			return fmt.Errorf("failed to create milter server: %w", err)
		}

		listener, err := server.Listen()
		if err != nil {
			return err
		}
		defer listener.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log.Info().
			Str("network", cfg.Milter.Network).
			Str("address", cfg.Milter.Address).
			Float64("reject_confidence", cfg.Milter.RejectConfidence).
			Bool("add_headers", cfg.Milter.AddSpamHeaders).
			Msg("milter server starting")

		err = server.Serve(ctx, listener)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}

		log.Info().Uint64("milters", server.Stats().MilterCount).Msg("milter server stopped")
		return nil
	},
}

func init() {
	milterCmd.Flags().StringVarP(&milterNetwork, "network", "n", "", "Network type (tcp or unix)")
	milterCmd.Flags().StringVarP(&milterAddress, "address", "a", "", "Bind address (e.g., 127.0.0.1:7357 or /run/zpam/milter.sock)")
}

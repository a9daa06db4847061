package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zpam/spam-detect/pkg/config"
	"github.com/zpam/spam-detect/pkg/logging"
	"github.com/zpam/spam-detect/pkg/results"
	"github.com/zpam/spam-detect/pkg/server"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP prediction API",
	Long: `Start the JSON API.

Endpoints:
  POST /predict              classify {"email": "..."}
  POST /predict-csv          classify every row of an uploaded CSV
  GET  /download/<filename>  fetch a results CSV
  GET  /health, /ready       liveness and readiness
  GET  /metrics              Prometheus metrics

The server starts even when the model cannot be loaded; /ready then answers 503
and prediction endpoints answer 503 MODEL_UNAVAILABLE.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadEnv(); err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("listen") {
			cfg.Server.Listen = serveListen
		}

		deps, err := newDependencies(cfg, true)
		if err != nil {
			return err
		}
		defer deps.Close()

		store, err := results.NewFileStore(cfg.Storage.ResultsDir)
		if err != nil {
			return err
		}

		opts := []server.Option{
			server.WithStore(store),
			server.WithMetrics(deps.metrics),
			server.WithLogger(logging.Component(deps.log, "http")),
		}
		if deps.predictor != nil {
			opts = append(opts, server.WithPredictor(deps.predictor))
		}
		srv := server.New(cfg, opts...)

		serverErr := make(chan error, 1)
		go func() {
			serverErr <- srv.Listen()
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigChan:
			timeout := config.Duration(cfg.Server.ShutdownTimeout, 10*time.Second)
			deps.log.Info().Str("signal", sig.String()).Dur("timeout", timeout).Msg("shutting down http server")

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				return fmt.Errorf("failed to shutdown http server: %w", err)
			}
			deps.log.Info().Msg("http server stopped")
			return nil

		case err := <-serverErr:
			if err != nil {
				return fmt.Errorf("http server error: %w", err)
			}
			return nil
		}
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveListen, "listen", "l", "", "Listen address (overrides server.listen)")
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/aluiziolira/cardgrade/dataset"
	"github.com/aluiziolira/cardgrade/pipeline"
)

var listenAddr string

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (defaults to the configured listen address)")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves random cards from the dataset over HTTP.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		addr := cfg.ListenAddr
		if listenAddr != "" {
			addr = listenAddr
		}

		metrics := pipeline.NewMetrics()
		sampler := dataset.NewSampler(cfg.OutputFile, cfg.SampleCacheTTL).WithGauge(metrics.DatasetRecords)
		server := &http.Server{
			Addr:              addr,
			Handler:           dataset.NewHandler(sampler, metrics.Registry),
			ReadHeaderTimeout: 5 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.ListenAndServe()
		}()
		slog.Info("serving dataset", slog.String("addr", addr), slog.String("dataset", cfg.OutputFile))

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		slog.Info("shutdown signal received, draining connections")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	},
}

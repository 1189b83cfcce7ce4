package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/aluiziolira/cardgrade/models"
	"github.com/aluiziolira/cardgrade/pipeline"
	"github.com/aluiziolira/cardgrade/runlog"
	"github.com/aluiziolira/cardgrade/source"
)

func init() {
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape <identifiers.txt|identifiers.json>",
	Short: "Processes every listing identifier and replaces the dataset with the accepted records.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		identifiers, err := source.Load(args[0])
		if err != nil {
			return err
		}

		writer, err := pipeline.NewOutputWriter(cfg.OutputFormat, cfg.OutputFile)
		if err != nil {
			return err
		}

		metrics := pipeline.NewMetrics()
		opts := []pipeline.Option{pipeline.WithMetrics(metrics)}
		if cfg.RunLogPath != "" {
			store, err := runlog.Open(ctx, cfg.RunLogPath)
			if err != nil {
				return err
			}
			defer store.Close()
			opts = append(opts, pipeline.WithLedger(store))
		}

		runner, err := newRunner(cfg, writer, opts...)
		if err != nil {
			return err
		}

		var metricsServer *http.Server
		if cfg.MetricsAddr != "" {
			metricsServer = &http.Server{
				Addr:              cfg.MetricsAddr,
				Handler:           promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					slog.Error("metrics server failed", slog.Any("error", err))
				}
			}()
			slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
		}

		slog.Info("starting scrape",
			slog.String("engine", cfg.Engine),
			slog.Int("identifiers", len(identifiers)),
			slog.String("output", cfg.OutputFile),
		)
		result, runErr := runner.Run(ctx, identifiers)

		if metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown failed", slog.Any("error", err))
			}
			cancel()
		}

		if runErr != nil {
			return runErr
		}
		if err := writer.Validate(); err != nil {
			return fmt.Errorf("output validation failed: %w", err)
		}

		printSummary(os.Stdout, result, writer.Path())
		return nil
	},
}

func printSummary(w io.Writer, result *models.RunResult, outputFile string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Run " + result.RunID)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Listings", result.TotalCount},
		{"Accepted", result.AcceptedCount},
		{"Rejected", result.RejectedCount},
		{"OCR fallbacks", result.OCRFallbacks},
	})

	if len(result.RejectedByReason) > 0 {
		t.AppendSeparator()
		for _, reason := range sortedKeys(result.RejectedByReason) {
			t.AppendRow(table.Row{"Rejected: " + reason, result.RejectedByReason[reason]})
		}
	}
	if len(result.FetchErrorsByType) > 0 {
		t.AppendSeparator()
		for _, kind := range sortedKeys(result.FetchErrorsByType) {
			t.AppendRow(table.Row{"Fetch error: " + kind, result.FetchErrorsByType[kind]})
		}
	}

	t.AppendSeparator()
	t.AppendRow(table.Row{"Duration", result.EndTime.Sub(result.StartTime).Round(time.Millisecond)})
	t.AppendRow(table.Row{"Output", outputFile})
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aluiziolira/cardgrade/dataset"
	"github.com/aluiziolira/cardgrade/media"
	"github.com/aluiziolira/cardgrade/scraper"
)

var downloadFlags struct {
	dataset string
	out     string
}

func init() {
	downloadCmd.Flags().StringVar(&downloadFlags.dataset, "dataset", "", "Dataset file (defaults to the configured output file)")
	downloadCmd.Flags().StringVar(&downloadFlags.out, "out", "images", "Directory that receives <grade>/ folders")
	rootCmd.AddCommand(downloadCmd)
}

var downloadCmd = &cobra.Command{
	Use:   "download [--dataset <cards.json>] [--out <dir>]",
	Short: "Downloads the front and back images of every record into per-grade folders.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.OutputFile
		if downloadFlags.dataset != "" {
			path = downloadFlags.dataset
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open dataset: %w", err)
		}
		records, dropped, err := dataset.Decode(f)
		f.Close()
		if err != nil {
			return err
		}
		if dropped > 0 {
			slog.Warn("dataset entries skipped", slog.Int("dropped", dropped))
		}

		d := media.NewDownloader(scraper.NewImageClient(cfg), downloadFlags.out, cfg.Delay)
		stats, err := d.Download(cmd.Context(), records)
		slog.Info("download finished",
			slog.Int("saved", stats.Saved),
			slog.Int("skipped", stats.Skipped),
			slog.Int("failed", stats.Failed),
		)
		if err != nil {
			return err
		}
		fmt.Printf("saved %d, skipped %d, failed %d\n", stats.Saved, stats.Skipped, stats.Failed)
		return nil
	},
}

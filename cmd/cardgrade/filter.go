package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aluiziolira/cardgrade/dataset"
	"github.com/aluiziolira/cardgrade/pipeline"
)

func init() {
	rootCmd.AddCommand(filterCmd)
}

var filterCmd = &cobra.Command{
	Use:   "filter <in.json> <out.json>",
	Short: "Rewrites a dataset in canonical form, dropping entries that are not valid records.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open dataset: %w", err)
		}
		records, dropped, err := dataset.Decode(in)
		in.Close()
		if err != nil {
			return err
		}

		writer := pipeline.NewJSONWriter(args[1])
		if err := writer.Write(records); err != nil {
			return &pipeline.PersistenceError{Path: writer.Path(), Err: err}
		}

		slog.Info("dataset filtered",
			slog.String("input", args[0]),
			slog.String("output", writer.Path()),
			slog.Int("kept", len(records)),
			slog.Int("dropped", dropped),
		)
		fmt.Printf("kept %d, dropped %d\n", len(records), dropped)
		return nil
	},
}

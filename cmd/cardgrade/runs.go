package main

import (
	"errors"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/aluiziolira/cardgrade/runlog"
)

var runsFlags struct {
	limit int
	diff  []string
}

func init() {
	runsCmd.Flags().IntVar(&runsFlags.limit, "limit", 20, "Number of runs to list")
	runsCmd.Flags().StringSliceVar(&runsFlags.diff, "diff", nil, "Compare accepted listings of two runs: --diff <previous>,<current>")
	rootCmd.AddCommand(runsCmd)
}

var runsCmd = &cobra.Command{
	Use:   "runs [--diff <previous>,<current>]",
	Short: "Lists recorded runs from the run ledger.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.RunLogPath == "" {
			return errors.New("no run ledger configured (set --run-log)")
		}
		ctx := cmd.Context()
		store, err := runlog.Open(ctx, cfg.RunLogPath)
		if err != nil {
			return err
		}
		defer store.Close()

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleRounded)

		if len(runsFlags.diff) > 0 {
			if len(runsFlags.diff) != 2 {
				return errors.New("--diff takes exactly two run ids")
			}
			gained, lost, err := store.Diff(ctx, runsFlags.diff[0], runsFlags.diff[1])
			if err != nil {
				return err
			}
			t.AppendHeader(table.Row{"Change", "Identifiers"})
			t.AppendRow(table.Row{"Gained", strings.Join(gained, "\n")})
			t.AppendRow(table.Row{"Lost", strings.Join(lost, "\n")})
			t.Render()
			return nil
		}

		runs, err := store.Runs(ctx, runsFlags.limit)
		if err != nil {
			return err
		}
		t.AppendHeader(table.Row{"Run", "Started", "Duration", "Total", "Accepted", "Rejected", "OCR"})
		for _, r := range runs {
			duration := "-"
			if !r.FinishedAt.IsZero() {
				duration = r.FinishedAt.Sub(r.StartedAt).String()
			}
			t.AppendRow(table.Row{r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), duration, r.Total, r.Accepted, r.Rejected, r.OCRFallbacks})
		}
		t.Render()
		return nil
	},
}

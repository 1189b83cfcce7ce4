package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/aluiziolira/cardgrade/models"
)

// Sentinels printed in place of a grade when a listing yields no record.
const (
	errNoImage     = "No Image"
	errNullGrade   = "Null Grade"
	errFetchFailed = "Fetch Failed"
)

// extractResult is the single object the extract command prints.
type extractResult struct {
	Identifier    string  `json:"identifier"`
	Grade         *int    `json:"grade"`
	FrontImageURL *string `json:"frontImageUrl"`
	BackImageURL  *string `json:"backImageUrl"`
	Price         string  `json:"price,omitempty"`
	Cert          string  `json:"cert,omitempty"`
	Error         string  `json:"error,omitempty"`
}

func init() {
	rootCmd.AddCommand(extractCmd)
}

var extractCmd = &cobra.Command{
	Use:   "extract <identifier>",
	Short: "Extracts one listing and prints the result as a JSON object on stdout.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, err := newRunner(cfg, nil)
		if err != nil {
			return err
		}
		outcome := runner.ProcessListing(cmd.Context(), args[0])
		return writeResult(os.Stdout, resultFor(outcome))
	},
}

// writeResult prints res as a single JSON object with nothing after the closing brace.
func writeResult(w io.Writer, res extractResult) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(res); err != nil {
		return err
	}
	_, err := w.Write(bytes.TrimRight(buf.Bytes(), "\n"))
	return err
}

func resultFor(o models.Outcome) extractResult {
	if o.Accepted() {
		r := o.Record
		return extractResult{
			Identifier:    r.Identifier,
			Grade:         &r.Grade,
			FrontImageURL: &r.FrontImageURL,
			BackImageURL:  &r.BackImageURL,
			Price:         r.Price,
			Cert:          r.Cert,
		}
	}

	res := extractResult{
		Identifier:    o.Identifier,
		FrontImageURL: optional(o.Images.FrontURL),
		BackImageURL:  optional(o.Images.BackURL),
	}
	switch o.Reason {
	case models.ReasonNoImages, models.ReasonImageMissing:
		res.Error = errNoImage
	case models.ReasonGradeAbsent:
		res.Error = errNullGrade
	default:
		res.Error = errFetchFailed
	}
	return res
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

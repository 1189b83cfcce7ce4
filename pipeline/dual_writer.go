package pipeline

import (
	"fmt"

	"github.com/aluiziolira/cardgrade/models"
)

// DualWriter writes the JSON dataset and a CSV mirror of it.
type DualWriter struct {
	csvWriter  *CSVWriter
	jsonWriter *JSONWriter
}

// NewDualWriter creates a dual writer for both CSV and JSON output.
func NewDualWriter(csvFilename, jsonFilename string) *DualWriter {
	return &DualWriter{
		csvWriter:  NewCSVWriter(csvFilename),
		jsonWriter: NewJSONWriter(jsonFilename),
	}
}

// Path is the JSON dataset, the file readers consume.
func (dw *DualWriter) Path() string { return dw.jsonWriter.Path() }

// Write replaces the CSV mirror first so a failure leaves the JSON dataset untouched.
func (dw *DualWriter) Write(records []*models.CardRecord) error {
	if err := dw.csvWriter.Write(records); err != nil {
		return fmt.Errorf("CSV write failed: %w", err)
	}
	if err := dw.jsonWriter.Write(records); err != nil {
		return fmt.Errorf("JSON write failed: %w", err)
	}
	return nil
}

// Validate validates both output files.
func (dw *DualWriter) Validate() error {
	var errs []error

	if err := dw.csvWriter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("CSV validation failed: %w", err))
	}

	if err := dw.jsonWriter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("JSON validation failed: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors: %v", errs)
	}

	return nil
}

package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/aluiziolira/cardgrade/models"
)

// OutputWriter replaces the persisted dataset in one step.
type OutputWriter interface {
	Write(records []*models.CardRecord) error
	Validate() error
	Path() string
}

// JSONWriter persists the dataset as an indented JSON array.
type JSONWriter struct {
	path string
}

// NewJSONWriter returns a writer for filename. Nothing is created until Write.
func NewJSONWriter(filename string) *JSONWriter {
	return &JSONWriter{path: filename}
}

func (jw *JSONWriter) Path() string { return jw.path }

// Write atomically replaces the file with records.
func (jw *JSONWriter) Write(records []*models.CardRecord) error {
	if records == nil {
		records = []*models.CardRecord{}
	}
	return writeAtomic(jw.path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("encode json dataset: %w", err)
		}
		return nil
	})
}

// Validate ensures the file holds a JSON array.
func (jw *JSONWriter) Validate() error {
	data, err := os.ReadFile(jw.path)
	if err != nil {
		return fmt.Errorf("read json dataset: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("json file is empty")
	}
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("json dataset is not an array: %w", err)
	}
	return nil
}

// CSVWriter persists the dataset as CSV with a header row.
type CSVWriter struct {
	path string
}

// NewCSVWriter returns a writer for filename.
func NewCSVWriter(filename string) *CSVWriter {
	return &CSVWriter{path: filename}
}

func (cw *CSVWriter) Path() string { return cw.path }

var csvHeader = []string{"identifier", "grade", "front_image_url", "back_image_url", "price", "cert"}

// Write atomically replaces the file with records.
func (cw *CSVWriter) Write(records []*models.CardRecord) error {
	return writeAtomic(cw.path, func(w io.Writer) error {
		writer := csv.NewWriter(w)
		if err := writer.Write(csvHeader); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
		for _, r := range records {
			row := []string{
				r.Identifier,
				strconv.Itoa(r.Grade),
				r.FrontImageURL,
				r.BackImageURL,
				r.Price,
				r.Cert,
			}
			if err := writer.Write(row); err != nil {
				return fmt.Errorf("write csv record: %w", err)
			}
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			return fmt.Errorf("flush csv records: %w", err)
		}
		return nil
	})
}

// Validate ensures the file has content.
func (cw *CSVWriter) Validate() error {
	info, err := os.Stat(cw.path)
	if err != nil {
		return fmt.Errorf("stat csv file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("csv file is empty")
	}
	return nil
}

// NewOutputWriter picks the writer for format ("json" or "dual").
func NewOutputWriter(format, filename string) (OutputWriter, error) {
	switch format {
	case "", "json":
		return NewJSONWriter(filename), nil
	case "dual":
		return NewDualWriter(csvMirrorPath(filename), filename), nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}

func csvMirrorPath(jsonPath string) string {
	ext := filepath.Ext(jsonPath)
	return jsonPath[:len(jsonPath)-len(ext)] + ".csv"
}

// writeAtomic streams into a temp file beside path and renames it over path,
// so readers see either the old or the new dataset.
func writeAtomic(path string, fill func(io.Writer) error) (err error) {
	if err := ensureDir(path); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	buffer := bufio.NewWriter(tmp)
	if err := fill(buffer); err != nil {
		return err
	}
	if err := buffer.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}

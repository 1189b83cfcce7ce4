package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/aluiziolira/cardgrade/models"
)

func sampleRecord() *models.CardRecord {
	return &models.CardRecord{
		Identifier:    "111111111111",
		Grade:         10,
		FrontImageURL: "https://i.ebayimg.com/images/g/AAA/s-l1600.webp",
		BackImageURL:  "https://i.ebayimg.com/images/g/BBB/s-l1600.webp",
		Price:         "$45.00",
	}
}

func TestJSONWriterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "cards.json")

	writer := NewJSONWriter(path)
	if err := writer.Write([]*models.CardRecord{sampleRecord()}); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate json: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if len(decoded) != 1 {
		t.Fatalf("expected 1 record, got %d", len(decoded))
	}
	got := decoded[0]
	if got["identifier"] != "111111111111" || got["grade"].(float64) != 10 || got["price"] != "$45.00" {
		t.Fatalf("unexpected record: %v", got)
	}
	if _, ok := got["cert"]; ok {
		t.Fatalf("empty cert should be omitted: %v", got)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestJSONWriterOverwritesWholesale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cards.json")
	writer := NewJSONWriter(path)

	first := sampleRecord()
	second := sampleRecord()
	second.Identifier = "222"
	if err := writer.Write([]*models.CardRecord{first, second}); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := writer.Write(nil); err != nil {
		t.Fatalf("second write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var decoded []models.CardRecord
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != 0 {
		t.Fatalf("expected empty dataset after rebuild, got %d", len(decoded))
	}
}

func TestCSVWriterWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cards.csv")

	writer := NewCSVWriter(path)
	if err := writer.Write([]*models.CardRecord{sampleRecord()}); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate csv: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 row, got %d", len(rows))
	}
	if rows[0][0] != "identifier" || rows[1][1] != "10" {
		t.Fatalf("unexpected rows: %v", rows)
	}
}

func TestDualWriterWritesMirror(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "cards.json")

	writer, err := NewOutputWriter("dual", jsonPath)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if writer.Path() != jsonPath {
		t.Fatalf("path = %q", writer.Path())
	}
	if err := writer.Write([]*models.CardRecord{sampleRecord()}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "cards.csv")); err != nil {
		t.Fatalf("csv mirror missing: %v", err)
	}
}

func TestNewOutputWriterRejectsUnknownFormat(t *testing.T) {
	if _, err := NewOutputWriter("xml", "cards.xml"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestJSONWriterFailsWhenTargetIsDirectory(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "cards.json")
	if err := os.Mkdir(target, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := NewJSONWriter(target).Write([]*models.CardRecord{sampleRecord()}); err == nil {
		t.Fatalf("expected write error when the target is a directory")
	}
}

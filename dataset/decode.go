// Package dataset reads the persisted card dataset and serves random records from it.
package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/aluiziolira/cardgrade/models"
	"github.com/aluiziolira/cardgrade/parser"
)

// looseRecord accepts both the canonical field names and the ones older datasets used.
type looseRecord struct {
	Identifier    json.RawMessage `json:"identifier"`
	ID            json.RawMessage `json:"id"`
	Grade         json.RawMessage `json:"grade"`
	FrontImageURL string          `json:"frontImageUrl"`
	ImgURLFront   string          `json:"imgUrlFront"`
	FrontURL      string          `json:"frontUrl"`
	BackImageURL  string          `json:"backImageUrl"`
	ImgURLBack    string          `json:"imgUrlBack"`
	BackURL       string          `json:"backUrl"`
	Price         json.RawMessage `json:"price"`
	Cert          json.RawMessage `json:"cert"`
}

// Decode reads a JSON array of records. Entries that cannot satisfy the record invariant
// are dropped and counted rather than failing the whole file.
func Decode(r io.Reader) ([]*models.CardRecord, int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, fmt.Errorf("read dataset: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []*models.CardRecord{}, 0, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, fmt.Errorf("decode dataset: %w", err)
	}

	records := make([]*models.CardRecord, 0, len(raw))
	dropped := 0
	for i, item := range raw {
		var loose looseRecord
		if err := json.Unmarshal(item, &loose); err != nil {
			slog.Debug("dataset entry unreadable", slog.Int("index", i), slog.Any("error", err))
			dropped++
			continue
		}
		record := loose.normalize()
		if err := parser.ValidateRecord(record); err != nil {
			slog.Debug("dataset entry dropped", slog.Int("index", i), slog.Any("error", err))
			dropped++
			continue
		}
		records = append(records, record)
	}
	return records, dropped, nil
}

func (l looseRecord) normalize() *models.CardRecord {
	id := scalarString(l.Identifier)
	if id == "" {
		id = scalarString(l.ID)
	}
	return &models.CardRecord{
		Identifier:    id,
		Grade:         gradeValue(l.Grade),
		FrontImageURL: firstNonEmpty(l.FrontImageURL, l.ImgURLFront, l.FrontURL),
		BackImageURL:  firstNonEmpty(l.BackImageURL, l.ImgURLBack, l.BackURL),
		Price:         scalarString(l.Price),
		Cert:          scalarString(l.Cert),
	}
}

// gradeValue accepts 9, 9.0 or "9". Sentinels such as "Null Grade" yield 0.
func gradeValue(raw json.RawMessage) int {
	s := scalarString(raw)
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int(f)) {
		return int(f)
	}
	return 0
}

func scalarString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err == nil {
		return n.String()
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

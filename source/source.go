// Package source loads listing identifiers from newline text or JSON array files.
package source

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrNoIdentifiers is returned when an input holds no usable identifier.
var ErrNoIdentifiers = errors.New("source: no identifiers")

// Load reads identifiers from path. Files ending in .json are parsed as a JSON array,
// anything else as one identifier per line.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open identifiers: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return ParseJSON(f)
	}
	return ParseLines(f)
}

// ParseLines reads one identifier per line, skipping blanks and # comments.
func ParseLines(r io.Reader) ([]string, error) {
	var ids []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimSuffix(scanner.Text(), "\r"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read identifiers: %w", err)
	}
	if len(ids) == 0 {
		return nil, ErrNoIdentifiers
	}
	return ids, nil
}

// ParseJSON reads an array of strings or integers.
func ParseJSON(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read identifiers: %w", err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode identifiers: %w", err)
	}

	ids := make([]string, 0, len(raw))
	for i, item := range raw {
		item = bytes.TrimSpace(item)
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				ids = append(ids, s)
			}
			continue
		}
		var n json.Number
		dec := json.NewDecoder(bytes.NewReader(item))
		dec.UseNumber()
		if err := dec.Decode(&n); err == nil {
			if _, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
				ids = append(ids, n.String())
				continue
			}
		}
		return nil, fmt.Errorf("identifier %d: expected string or integer, got %s", i, item)
	}
	if len(ids) == 0 {
		return nil, ErrNoIdentifiers
	}
	return ids, nil
}

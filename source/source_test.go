package source

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestParseLines(t *testing.T) {
	input := "# listings\r\n111111111111\r\n\r\n  222222222222  \n#skip\n333\n"
	ids, err := ParseLines(strings.NewReader(input))
	require.NoError(t, err)

	want := []string{"111111111111", "222222222222", "333"}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}
}

func TestParseLinesEmpty(t *testing.T) {
	_, err := ParseLines(strings.NewReader("\n# nothing\n"))
	require.ErrorIs(t, err, ErrNoIdentifiers)
}

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{name: "strings", input: `["111", " 222 ", ""]`, want: []string{"111", "222"}},
		{name: "numbers", input: `[111111111111, "abc"]`, want: []string{"111111111111", "abc"}},
		{name: "object", input: `[{"id": 1}]`, wantErr: true},
		{name: "float", input: `[1.5]`, wantErr: true},
		{name: "not an array", input: `{"ids": []}`, wantErr: true},
		{name: "empty", input: `[]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids, err := ParseJSON(strings.NewReader(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, ids)
		})
	}
}

func TestLoadPicksFormatByExtension(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "ids.json")
	textPath := filepath.Join(dir, "ids.txt")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`["1","2"]`), 0o644))
	require.NoError(t, os.WriteFile(textPath, []byte("1\n2\n"), 0o644))

	fromJSON, err := Load(jsonPath)
	require.NoError(t, err)
	fromText, err := Load(textPath)
	require.NoError(t, err)
	require.Equal(t, fromJSON, fromText)

	_, err = Load(filepath.Join(dir, "missing.txt"))
	require.Error(t, err)
}

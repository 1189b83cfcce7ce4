package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/cardgrade/config"
	"github.com/aluiziolira/cardgrade/models"
)

func TestResultFor(t *testing.T) {
	pair := models.ImagePair{FrontURL: "https://img/f", BackURL: "https://img/b"}

	tests := []struct {
		name    string
		outcome models.Outcome
		want    string
	}{
		{
			name: "accepted",
			outcome: models.Outcome{
				Identifier: "111",
				State:      models.StateAssembled,
				Record: &models.CardRecord{
					Identifier: "111", Grade: 9, FrontImageURL: "https://img/f", BackImageURL: "https://img/b", Price: "$12.50",
				},
			},
			want: `{"identifier":"111","grade":9,"frontImageUrl":"https://img/f","backImageUrl":"https://img/b","price":"$12.50"}`,
		},
		{
			name:    "grade absent keeps images",
			outcome: models.Outcome{Identifier: "222", State: models.StateRejected, Reason: models.ReasonGradeAbsent, Images: pair},
			want:    `{"identifier":"222","grade":null,"frontImageUrl":"https://img/f","backImageUrl":"https://img/b","error":"Null Grade"}`,
		},
		{
			name:    "no images",
			outcome: models.Outcome{Identifier: "333", State: models.StateRejected, Reason: models.ReasonNoImages},
			want:    `{"identifier":"333","grade":null,"frontImageUrl":null,"backImageUrl":null,"error":"No Image"}`,
		},
		{
			name:    "fetch failure",
			outcome: models.Outcome{Identifier: "444", State: models.StateRejected, Reason: models.ReasonFetchError, Err: errors.New("boom")},
			want:    `{"identifier":"444","grade":null,"frontImageUrl":null,"backImageUrl":null,"error":"Fetch Failed"}`,
		},
		{
			name:    "watchdog",
			outcome: models.Outcome{Identifier: "555", State: models.StateRejected, Reason: models.ReasonWatchdogTimeout},
			want:    `{"identifier":"555","grade":null,"frontImageUrl":null,"backImageUrl":null,"error":"Fetch Failed"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(resultFor(tt.outcome))
			require.NoError(t, err)
			require.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestWriteResultHasNoTrailingOutput(t *testing.T) {
	var buf bytes.Buffer
	res := resultFor(models.Outcome{
		Identifier: "111",
		State:      models.StateAssembled,
		Record: &models.CardRecord{
			Identifier: "111", Grade: 10, FrontImageURL: "https://img/f?a=1&b=2", BackImageURL: "https://img/b",
		},
	})
	require.NoError(t, writeResult(&buf, res))

	out := buf.Bytes()
	require.True(t, json.Valid(out))
	require.Equal(t, byte('{'), out[0])
	require.Equal(t, byte('}'), out[len(out)-1])
	require.Contains(t, string(out), "a=1&b=2")
}

func TestPrintSummary(t *testing.T) {
	start := time.Now()
	result := &models.RunResult{
		RunID:             "run-1",
		StartTime:         start,
		EndTime:           start.Add(1500 * time.Millisecond),
		TotalCount:        4,
		AcceptedCount:     2,
		RejectedCount:     2,
		RejectedByReason:  map[string]int{models.ReasonGradeAbsent: 1, models.ReasonFetchError: 1},
		FetchErrorsByType: map[string]int{"forbidden": 1},
		OCRFallbacks:      1,
	}

	var buf bytes.Buffer
	printSummary(&buf, result, "output/cards.json")
	out := buf.String()

	for _, want := range []string{"run-1", "Accepted", "Rejected: grade_absent", "Fetch error: forbidden", "output/cards.json", "1.5s"} {
		require.Contains(t, out, want)
	}
}

func TestApplyFlagsOnlyChanged(t *testing.T) {
	c := config.DefaultConfig()
	fs := rootCmd.PersistentFlags()
	require.NoError(t, fs.Set("engine", "STATIC"))
	require.NoError(t, fs.Set("no-ocr", "true"))
	t.Cleanup(func() {
		fs.Lookup("engine").Changed = false
		fs.Lookup("no-ocr").Changed = false
		flags.engine = ""
		flags.noOCR = false
	})

	applyFlags(fs, c)

	require.Equal(t, config.EngineStatic, c.Engine)
	require.False(t, c.OCREnabled)
	require.Equal(t, config.DefaultConfig().OutputFile, c.OutputFile)
	require.Equal(t, config.DefaultConfig().Delay, c.Delay)
}

package commands

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"

	"github.com/MasterCoderKay/patent-ai/internal/core/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var exportEntries = []history.Entry{
	{Original: "a bike", Polished: "1. A bicycle comprising a frame."},
	{Original: "umbrella, \"solar\"", Polished: "1. An umbrella comprising\nphotovoltaic cells."},
}

func TestWriteHistoryJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeHistoryJSON(&buf, exportEntries))

	var got []history.Entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, exportEntries, got)
}

func TestWriteHistoryJSON_EmptyIsArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeHistoryJSON(&buf, nil))
	assert.JSONEq(t, `[]`, buf.String())
}

func TestWriteHistoryCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeHistoryCSV(&buf, exportEntries))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"index", "original", "polished"},
		{"1", "a bike", "1. A bicycle comprising a frame."},
		{"2", "umbrella, \"solar\"", "1. An umbrella comprising\nphotovoltaic cells."},
	}, records)
}

func TestRenderHistoryTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderHistoryTable(&buf, exportEntries))

	out := buf.String()
	assert.Contains(t, out, "a bike")
	assert.Contains(t, out, "photovoltaic")
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{name: "短い文字列はそのまま", in: "claim", max: 10, want: "claim"},
		{name: "長い文字列は省略記号を付ける", in: "a very long patent claim", max: 10, want: "a very ..."},
		{name: "マルチバイト", in: "特許請求の範囲について", max: 6, want: "特許請..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, truncateString(tt.in, tt.max))
		})
	}
}

package format

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/domain"
)

func TestRenderMarkdown(t *testing.T) {
	md := renderMarkdown(sampleResult())

	assert.Contains(t, md, "Title line")
	assert.Contains(t, md, "| h1 | h2 |")
	assert.Contains(t, md, "| --- | --- |")
	assert.Contains(t, md, "![figure](#figure-e3)")
	assert.Contains(t, md, "$$E = mc^2$$")
}

func TestRenderMarkdown_FailedElementBecomesComment(t *testing.T) {
	result := &domain.ParseResult{
		TotalElements: 1,
		Elements: []domain.ParsedElement{
			{ElementID: "bad", Type: domain.ElementText, Error: "inference failed", ReadingOrder: 0},
		},
	}

	md := renderMarkdown(result)
	assert.Contains(t, md, "<!-- element bad failed: inference failed -->")
}

func TestRenderMarkdown_SkipsEmptyText(t *testing.T) {
	result := &domain.ParseResult{
		Elements: []domain.ParsedElement{
			{ElementID: "a", Type: domain.ElementText, Text: "   ", ReadingOrder: 0},
			{ElementID: "b", Type: domain.ElementText, Text: "kept", ReadingOrder: 1},
		},
	}

	md := renderMarkdown(result)
	assert.Equal(t, "kept", md)
}

func TestParseTableGrid_PipeRows(t *testing.T) {
	grid := ParseTableGrid("| Name | Qty |\n| --- | --- |\n| bolt | 4 |\n| nut | 8 |")

	assert.Equal(t, 3, grid.Rows, "separator rows are not data")
	assert.Equal(t, 2, grid.Columns)
	require.Len(t, grid.Data, 3)
	assert.Equal(t, []string{"Name", "Qty"}, grid.Data[0])
	assert.Equal(t, []string{"bolt", "4"}, grid.Data[1])
}

func TestParseTableGrid_PlainLines(t *testing.T) {
	grid := ParseTableGrid("row one\nrow two\n\nrow three")

	assert.Equal(t, 3, grid.Rows)
	assert.Equal(t, 1, grid.Columns)
	assert.Equal(t, []string{"row two"}, grid.Data[1])
}

func TestParseTableGrid_Empty(t *testing.T) {
	grid := ParseTableGrid("")
	assert.Equal(t, 0, grid.Rows)

	grid = ParseTableGrid("   \n  \n")
	assert.Equal(t, 0, grid.Rows)
}

func TestParseTableGrid_RaggedRows(t *testing.T) {
	grid := ParseTableGrid("| a | b | c |\n| 1 | 2 |")

	assert.Equal(t, 2, grid.Rows)
	assert.Equal(t, 3, grid.Columns)
}

func TestRenderPipeTable_NormalizesRaggedRows(t *testing.T) {
	grid := ParseTableGrid("| a | b | c |\n| 1 | 2 |")
	out := renderPipeTable(grid)

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "| a | b | c |", lines[0])
	assert.Equal(t, "| --- | --- | --- |", lines[1])
	// The short row is padded to the full column count.
	assert.Equal(t, "| 1 | 2 |  |", lines[2])
}

func TestIsSeparatorRow(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"| --- | --- |", true},
		{"|:---|---:|", true},
		{"---", true},
		{"| a | b |", false},
		{"plain text", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isSeparatorRow(tt.line), tt.line)
	}
}

package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskStatus_Terminal(t *testing.T) {
	tests := []struct {
		status TaskStatus
		want   bool
	}{
		{StatusPending, false},
		{StatusProcessing, false},
		{StatusCompleted, true},
		{StatusFailed, true},
		{StatusCancelled, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.Terminal(), string(tt.status))
	}
}

func TestValidOutputFormat(t *testing.T) {
	assert.True(t, ValidOutputFormat(FormatJSON))
	assert.True(t, ValidOutputFormat(FormatMarkdown))
	assert.True(t, ValidOutputFormat(FormatHTML))
	assert.True(t, ValidOutputFormat(FormatStructured))
	assert.False(t, ValidOutputFormat("xml"))
	assert.False(t, ValidOutputFormat(""))
}

func TestBBox_Before(t *testing.T) {
	upper := BBox{X0: 50, Y0: 10}
	lower := BBox{X0: 10, Y0: 80}
	assert.True(t, upper.Before(lower), "higher boxes read first")
	assert.False(t, lower.Before(upper))

	left := BBox{X0: 10, Y0: 10}
	right := BBox{X0: 60, Y0: 10}
	assert.True(t, left.Before(right), "same row reads left to right")
	assert.False(t, right.Before(left))
}

func TestBBox_Union(t *testing.T) {
	a := BBox{X0: 10, Y0: 10, X1: 50, Y1: 40}
	b := BBox{X0: 30, Y0: 5, X1: 80, Y1: 35}

	assert.Equal(t, BBox{X0: 10, Y0: 5, X1: 80, Y1: 40}, a.Union(b))
	assert.Equal(t, a.Union(b), b.Union(a))
}

func TestNewTask(t *testing.T) {
	cfg := ProcessingConfig{MaxBatchSize: 4, OutputFormat: FormatMarkdown}
	task := NewTask(cfg)

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, StatusPending, task.Status)
	assert.False(t, task.CreatedAt.IsZero())
	assert.Equal(t, cfg, task.Config)
	assert.Nil(t, task.Result)

	other := NewTask(cfg)
	assert.NotEqual(t, task.ID, other.ID)
}

func TestParseResult_SortElements(t *testing.T) {
	r := &ParseResult{
		Elements: []ParsedElement{
			{ElementID: "c", ReadingOrder: 2},
			{ElementID: "a", ReadingOrder: 0},
			{ElementID: "b", ReadingOrder: 1},
		},
	}
	r.SortElements()

	assert.Equal(t, "a", r.Elements[0].ElementID)
	assert.Equal(t, "b", r.Elements[1].ElementID)
	assert.Equal(t, "c", r.Elements[2].ElementID)
}

func TestParseResult_SortElements_TieBreakDeterministic(t *testing.T) {
	r := &ParseResult{
		Elements: []ParsedElement{
			{ElementID: "zz", ReadingOrder: 0},
			{ElementID: "aa", ReadingOrder: 0},
		},
	}
	r.SortElements()

	assert.Equal(t, "aa", r.Elements[0].ElementID)
}

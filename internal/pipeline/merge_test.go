package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/domain"
)

func textElement(id string, order int, y0, y1 float64, text string, conf float64) domain.ParsedElement {
	return domain.ParsedElement{
		ElementID:    id,
		Type:         domain.ElementText,
		BBox:         domain.BBox{X0: 10, Y0: y0, X1: 90, Y1: y1},
		Text:         text,
		Confidence:   conf,
		ReadingOrder: order,
	}
}

func TestMergeTextBlocks_AdjacentBlocksMerge(t *testing.T) {
	elements := []domain.ParsedElement{
		textElement("a", 0, 10, 30, "First line.", 1.0),
		textElement("b", 1, 35, 55, "Second line.", 0.8),
	}

	out := MergeTextBlocks(elements, 10)
	require.Len(t, out, 1)

	assert.Equal(t, "First line. Second line.", out[0].Text)
	assert.Equal(t, domain.BBox{X0: 10, Y0: 10, X1: 90, Y1: 55}, out[0].BBox)
	assert.Equal(t, 0, out[0].ReadingOrder)
	assert.InDelta(t, 0.9, out[0].Confidence, 1e-9)
}

func TestMergeTextBlocks_WideGapStaysSeparate(t *testing.T) {
	elements := []domain.ParsedElement{
		textElement("a", 0, 10, 30, "First.", 1.0),
		textElement("b", 1, 100, 120, "Second.", 1.0),
	}

	out := MergeTextBlocks(elements, 10)
	require.Len(t, out, 2)
	assert.Equal(t, "First.", out[0].Text)
	assert.Equal(t, "Second.", out[1].Text)
}

func TestMergeTextBlocks_NonTextPassThrough(t *testing.T) {
	table := domain.ParsedElement{
		ElementID:    "tbl",
		Type:         domain.ElementTable,
		BBox:         domain.BBox{Y0: 32, Y1: 60},
		Text:         "| a |",
		ReadingOrder: 1,
	}
	elements := []domain.ParsedElement{
		textElement("a", 0, 10, 30, "Above.", 1.0),
		table,
		textElement("b", 2, 62, 80, "Below.", 1.0),
	}

	out := MergeTextBlocks(elements, 5)
	require.Len(t, out, 3)
	assert.Equal(t, domain.ElementTable, out[1].Type)
	assert.Equal(t, "Above.", out[0].Text)
	assert.Equal(t, "Below.", out[2].Text)
}

func TestMergeTextBlocks_FailedElementsNotMerged(t *testing.T) {
	failed := textElement("b", 1, 35, 55, "", 0)
	failed.Error = "inference failed"

	elements := []domain.ParsedElement{
		textElement("a", 0, 10, 30, "First.", 1.0),
		failed,
	}

	out := MergeTextBlocks(elements, 100)
	require.Len(t, out, 2)
	assert.Equal(t, "inference failed", out[1].Error)
}

func TestMergeTextBlocks_SingleElementUnchanged(t *testing.T) {
	elements := []domain.ParsedElement{textElement("a", 0, 10, 30, "Only.", 1.0)}

	out := MergeTextBlocks(elements, 10)
	assert.Equal(t, elements, out)
}

func TestMergeTextBlocks_OutputSortedByReadingOrder(t *testing.T) {
	elements := []domain.ParsedElement{
		textElement("a", 0, 10, 30, "One.", 1.0),
		{ElementID: "fig", Type: domain.ElementFigure, BBox: domain.BBox{Y0: 35, Y1: 60}, ReadingOrder: 1},
		textElement("c", 2, 200, 220, "Two.", 1.0),
		textElement("d", 3, 225, 245, "Three.", 1.0),
	}

	out := MergeTextBlocks(elements, 10)
	require.Len(t, out, 3)
	for i := 1; i < len(out); i++ {
		assert.LessOrEqual(t, out[i-1].ReadingOrder, out[i].ReadingOrder)
	}
	assert.Equal(t, "Two. Three.", out[2].Text)
}

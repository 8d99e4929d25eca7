package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/domain"
)

func TestParseLayoutString(t *testing.T) {
	raw := "[0.1,0.05,0.9,0.12] text [0.1, 0.15, 0.5, 0.4] tab [0.55,0.15,0.9,0.4] fig [0.1,0.5,0.9,0.6] formula"

	elements := ParseLayoutString(raw)
	require.Len(t, elements, 4)

	assert.Equal(t, domain.ElementText, elements[0].Type)
	assert.Equal(t, domain.ElementTable, elements[1].Type)
	assert.Equal(t, domain.ElementFigure, elements[2].Type)
	assert.Equal(t, domain.ElementFormula, elements[3].Type)

	assert.Equal(t, domain.BBox{X0: 0.1, Y0: 0.05, X1: 0.9, Y1: 0.12}, elements[0].BBox)
	for i, e := range elements {
		assert.Equal(t, i, e.ReadingOrder)
	}
}

func TestParseLayoutString_LabelMapping(t *testing.T) {
	tests := []struct {
		label string
		want  domain.ElementType
	}{
		{"tab", domain.ElementTable},
		{"table", domain.ElementTable},
		{"fig", domain.ElementFigure},
		{"figure", domain.ElementFigure},
		{"formula", domain.ElementFormula},
		{"equ", domain.ElementFormula},
		{"equation", domain.ElementFormula},
		{"text", domain.ElementText},
		{"title", domain.ElementText},
		{"sec", domain.ElementText},
		{"para", domain.ElementText},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, labelType(tt.label))
		})
	}
}

func TestParseLayoutString_IgnoresNoise(t *testing.T) {
	raw := "The layout is as follows:\n[0.0,0.0,1.0,0.1] title\nsome trailing commentary"

	elements := ParseLayoutString(raw)
	require.Len(t, elements, 1)
	assert.Equal(t, "title", elements[0].Label)
	assert.Equal(t, domain.ElementText, elements[0].Type)
}

func TestParseLayoutString_Empty(t *testing.T) {
	assert.Empty(t, ParseLayoutString(""))
	assert.Empty(t, ParseLayoutString("no boxes here"))
}

func TestNormalizeReadingOrder_NoDuplicatesUntouched(t *testing.T) {
	elements := []Element{
		{ReadingOrder: 0, BBox: domain.BBox{Y0: 0.1}},
		{ReadingOrder: 1, BBox: domain.BBox{Y0: 0.5}},
		{ReadingOrder: 2, BBox: domain.BBox{Y0: 0.9}},
	}

	out := NormalizeReadingOrder(elements)
	assert.Equal(t, elements, out)
}

func TestNormalizeReadingOrder_TiesBrokenByPosition(t *testing.T) {
	// Two elements report order 1; the lower-left one was emitted first but
	// sits below, so the tie resolves top-to-bottom.
	elements := []Element{
		{Label: "a", ReadingOrder: 0, BBox: domain.BBox{X0: 0.1, Y0: 0.1}},
		{Label: "b", ReadingOrder: 1, BBox: domain.BBox{X0: 0.1, Y0: 0.8}},
		{Label: "c", ReadingOrder: 1, BBox: domain.BBox{X0: 0.1, Y0: 0.4}},
	}

	out := NormalizeReadingOrder(elements)
	require.Len(t, out, 3)

	assert.Equal(t, "a", out[0].Label)
	assert.Equal(t, "c", out[1].Label)
	assert.Equal(t, "b", out[2].Label)

	for i, e := range out {
		assert.Equal(t, i, e.ReadingOrder, "orders must be gapless after renumbering")
	}
}

func TestNormalizeReadingOrder_SameRowBrokenLeftToRight(t *testing.T) {
	elements := []Element{
		{Label: "right", ReadingOrder: 0, BBox: domain.BBox{X0: 0.6, Y0: 0.2}},
		{Label: "left", ReadingOrder: 0, BBox: domain.BBox{X0: 0.1, Y0: 0.2}},
	}

	out := NormalizeReadingOrder(elements)
	assert.Equal(t, "left", out[0].Label)
	assert.Equal(t, "right", out[1].Label)
}

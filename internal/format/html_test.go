package format

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/domain"
)

func TestConfidenceClass(t *testing.T) {
	tests := []struct {
		confidence float64
		want       string
	}{
		{1.0, "high"},
		{0.9, "high"},
		{0.89, "medium"},
		{0.7, "medium"},
		{0.69, "low"},
		{0.2, "low"},
		{0, "low"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, confidenceClass(tt.confidence))
	}
}

func TestRenderHTML(t *testing.T) {
	out := renderHTML(sampleResult(), Options{})

	assert.Contains(t, out, `<div class="smartdoc-document">`)
	assert.Contains(t, out, `class="element element-text confidence-high"`)
	assert.Contains(t, out, `class="element element-table confidence-medium"`)
	assert.Contains(t, out, `class="element element-formula confidence-low"`)
	assert.Contains(t, out, `data-reading-order="0"`)
	assert.Contains(t, out, "<th>h1</th><th>h2</th>")
	assert.Contains(t, out, "<td>a</td><td>b</td>")
	assert.Contains(t, out, `<div class="math">E = mc^2</div>`)
	assert.Contains(t, out, "<figure>")

	// Optional data attributes off by default.
	assert.NotContains(t, out, "data-confidence")
	assert.NotContains(t, out, "data-bbox")
}

func TestRenderHTML_OptionalAttributes(t *testing.T) {
	out := renderHTML(sampleResult(), Options{IncludeConfidence: true, IncludeCoordinates: true})

	assert.Contains(t, out, `data-confidence="0.80"`)
	assert.Contains(t, out, `data-bbox="10,30,190,90"`)
}

func TestRenderHTML_EscapesContent(t *testing.T) {
	result := &domain.ParseResult{
		Elements: []domain.ParsedElement{
			{ElementID: "x", Type: domain.ElementText, Text: "<script>alert(1)</script>", ReadingOrder: 0},
		},
	}

	out := renderHTML(result, Options{})
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "&lt;script&gt;")
}

func TestRenderHTML_FailedElement(t *testing.T) {
	result := &domain.ParseResult{
		Elements: []domain.ParsedElement{
			{ElementID: "x", Type: domain.ElementTable, Error: "model unavailable", ReadingOrder: 0},
		},
	}

	out := renderHTML(result, Options{})
	assert.Contains(t, out, `<p class="element-error">model unavailable</p>`)
	assert.NotContains(t, out, "<table>")
}

package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/domain"
)

func sampleResult() *domain.ParseResult {
	return &domain.ParseResult{
		TotalElements:    4,
		ProcessingTimeMs: 1234,
		Elements: []domain.ParsedElement{
			{ElementID: "e1", Type: domain.ElementText, Text: "Title line", Confidence: 1.0, ReadingOrder: 0,
				BBox: domain.BBox{X0: 10, Y0: 5, X1: 190, Y1: 25}},
			{ElementID: "e2", Type: domain.ElementTable, Text: "| h1 | h2 |\n| a | b |", Confidence: 0.8, ReadingOrder: 1,
				BBox: domain.BBox{X0: 10, Y0: 30, X1: 190, Y1: 90}},
			{ElementID: "e3", Type: domain.ElementFigure, Text: "", Confidence: 1.0, ReadingOrder: 2,
				BBox: domain.BBox{X0: 10, Y0: 95, X1: 100, Y1: 150}},
			{ElementID: "e4", Type: domain.ElementFormula, Text: "E = mc^2", Confidence: 0.5, ReadingOrder: 3,
				BBox: domain.BBox{X0: 10, Y0: 155, X1: 100, Y1: 180}},
		},
	}
}

func TestFormat_JSON(t *testing.T) {
	doc, err := Format(sampleResult(), Options{Format: domain.FormatJSON})
	require.NoError(t, err)

	require.NotNil(t, doc.JSON)
	assert.Empty(t, doc.Markdown)
	assert.Empty(t, doc.HTML)

	info := doc.JSON.DocumentInfo
	assert.Equal(t, 4, info.TotalElements)
	assert.Equal(t, int64(1234), info.ProcessingTimeMs)
	assert.Equal(t, TypeCounters{Text: 1, Table: 1, Figure: 1, Formula: 1}, info.ElementTypes)

	require.Len(t, doc.JSON.Elements, 4)
	// Optional fields stay omitted unless requested.
	assert.Nil(t, doc.JSON.Elements[0].Confidence)
	assert.Nil(t, doc.JSON.Elements[0].BBox)
}

func TestFormat_JSONOptionalFields(t *testing.T) {
	doc, err := Format(sampleResult(), Options{
		Format:             domain.FormatJSON,
		IncludeConfidence:  true,
		IncludeCoordinates: true,
	})
	require.NoError(t, err)

	el := doc.JSON.Elements[1]
	require.NotNil(t, el.Confidence)
	assert.Equal(t, 0.8, *el.Confidence)
	require.NotNil(t, el.BBox)
	assert.Equal(t, domain.BBox{X0: 10, Y0: 30, X1: 190, Y1: 90}, *el.BBox)
}

func TestFormat_Structured(t *testing.T) {
	doc, err := Format(sampleResult(), Options{Format: domain.FormatStructured})
	require.NoError(t, err)

	assert.NotNil(t, doc.JSON)
	assert.NotEmpty(t, doc.Markdown)
	assert.NotEmpty(t, doc.HTML)
	assert.Len(t, doc.Elements, 4)
}

func TestFormat_InvalidFormat(t *testing.T) {
	_, err := Format(sampleResult(), Options{Format: "xml"})
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
}

func TestFormat_NilResult(t *testing.T) {
	_, err := Format(nil, Options{Format: domain.FormatJSON})
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
}

func TestFormat_Deterministic(t *testing.T) {
	opts := Options{Format: domain.FormatStructured, IncludeConfidence: true, IncludeCoordinates: true}

	doc1, err := Format(sampleResult(), opts)
	require.NoError(t, err)
	doc2, err := Format(sampleResult(), opts)
	require.NoError(t, err)

	enc1, _, err := Encode(doc1)
	require.NoError(t, err)
	enc2, _, err := Encode(doc2)
	require.NoError(t, err)

	assert.Equal(t, enc1, enc2, "repeated renders of the same result must be byte-identical")
}

func TestEncode_ContentTypes(t *testing.T) {
	tests := []struct {
		format      domain.OutputFormat
		contentType string
	}{
		{domain.FormatJSON, "application/json"},
		{domain.FormatMarkdown, "text/markdown; charset=utf-8"},
		{domain.FormatHTML, "text/html; charset=utf-8"},
		{domain.FormatStructured, "application/json"},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			doc, err := Format(sampleResult(), Options{Format: tt.format})
			require.NoError(t, err)

			data, ct, err := Encode(doc)
			require.NoError(t, err)
			assert.Equal(t, tt.contentType, ct)
			assert.NotEmpty(t, data)
		})
	}
}

func TestFormat_EmptyResult(t *testing.T) {
	result := &domain.ParseResult{}

	doc, err := Format(result, Options{Format: domain.FormatMarkdown})
	require.NoError(t, err)
	assert.Empty(t, doc.Markdown)

	doc, err = Format(result, Options{Format: domain.FormatJSON})
	require.NoError(t, err)
	assert.Equal(t, 0, doc.JSON.DocumentInfo.TotalElements)
	assert.Empty(t, doc.JSON.Elements)
}

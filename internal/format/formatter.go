// Package format renders a finalized parse result into client-facing
// documents. Every renderer is a pure transform: no I/O, deterministic for
// identical input.
package format

import (
	"encoding/json"

	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/domain"
)

// Options control optional fields in the rendered output.
type Options struct {
	Format             domain.OutputFormat
	IncludeConfidence  bool
	IncludeCoordinates bool
}

// Document is the rendered output for one parse result. Only the fields for
// the requested format are populated; structured fills everything.
type Document struct {
	Format   domain.OutputFormat    `json:"format"`
	JSON     *JSONDocument          `json:"json,omitempty"`
	Markdown string                 `json:"markdown,omitempty"`
	HTML     string                 `json:"html,omitempty"`
	Elements []domain.ParsedElement `json:"elements,omitempty"`
}

// JSONDocument is the structured JSON rendering.
type JSONDocument struct {
	DocumentInfo DocumentInfo  `json:"document_info"`
	Elements     []JSONElement `json:"elements"`
}

// DocumentInfo summarizes the parse.
type DocumentInfo struct {
	TotalElements    int          `json:"total_elements"`
	ProcessingTimeMs int64        `json:"processing_time_ms"`
	ElementTypes     TypeCounters `json:"element_types"`
}

// TypeCounters counts elements per type. A fixed struct keeps JSON output
// byte-stable across renders.
type TypeCounters struct {
	Text    int `json:"text"`
	Table   int `json:"table"`
	Figure  int `json:"figure"`
	Formula int `json:"formula"`
}

// JSONElement is one element in the JSON rendering.
type JSONElement struct {
	ElementID    string             `json:"element_id"`
	Type         domain.ElementType `json:"type"`
	Text         string             `json:"text"`
	ReadingOrder int                `json:"reading_order"`
	Confidence   *float64           `json:"confidence,omitempty"`
	BBox         *domain.BBox       `json:"bbox,omitempty"`
	Error        string             `json:"error,omitempty"`
}

// Format renders the parse result in the requested format.
func Format(result *domain.ParseResult, opts Options) (*Document, error) {
	if result == nil {
		return nil, domain.ValidationError("nil parse result", nil)
	}
	if !domain.ValidOutputFormat(opts.Format) {
		return nil, domain.ValidationError("unsupported output format: "+string(opts.Format), nil)
	}

	doc := &Document{Format: opts.Format}

	switch opts.Format {
	case domain.FormatJSON:
		doc.JSON = renderJSON(result, opts)
	case domain.FormatMarkdown:
		doc.Markdown = renderMarkdown(result)
	case domain.FormatHTML:
		doc.HTML = renderHTML(result, opts)
	case domain.FormatStructured:
		doc.JSON = renderJSON(result, opts)
		doc.Markdown = renderMarkdown(result)
		doc.HTML = renderHTML(result, opts)
		doc.Elements = append([]domain.ParsedElement(nil), result.Elements...)
	}
	return doc, nil
}

// Encode serializes the document to JSON bytes. Markdown-only documents
// render as raw markdown for convenience at the HTTP boundary.
func Encode(doc *Document) ([]byte, string, error) {
	if doc.Format == domain.FormatMarkdown {
		return []byte(doc.Markdown), "text/markdown; charset=utf-8", nil
	}
	if doc.Format == domain.FormatHTML {
		return []byte(doc.HTML), "text/html; charset=utf-8", nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, "", err
	}
	return data, "application/json", nil
}

// renderJSON builds the JSON document.
func renderJSON(result *domain.ParseResult, opts Options) *JSONDocument {
	counters := TypeCounters{}
	elements := make([]JSONElement, 0, len(result.Elements))

	for _, e := range result.Elements {
		switch e.Type {
		case domain.ElementText:
			counters.Text++
		case domain.ElementTable:
			counters.Table++
		case domain.ElementFigure:
			counters.Figure++
		case domain.ElementFormula:
			counters.Formula++
		}

		je := JSONElement{
			ElementID:    e.ElementID,
			Type:         e.Type,
			Text:         e.Text,
			ReadingOrder: e.ReadingOrder,
			Error:        e.Error,
		}
		if opts.IncludeConfidence {
			conf := e.Confidence
			je.Confidence = &conf
		}
		if opts.IncludeCoordinates {
			bbox := e.BBox
			je.BBox = &bbox
		}
		elements = append(elements, je)
	}

	return &JSONDocument{
		DocumentInfo: DocumentInfo{
			TotalElements:    result.TotalElements,
			ProcessingTimeMs: result.ProcessingTimeMs,
			ElementTypes:     counters,
		},
		Elements: elements,
	}
}

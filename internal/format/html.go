package format

import (
	"fmt"
	"html"
	"strings"

	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/domain"
)

// confidenceClass maps a confidence score to a visual class.
func confidenceClass(confidence float64) string {
	switch {
	case confidence >= 0.9:
		return "high"
	case confidence >= 0.7:
		return "medium"
	default:
		return "low"
	}
}

// renderHTML converts the ordered element list into an HTML fragment. Each
// element is wrapped in a container tagged with its type and a
// confidence-derived class.
func renderHTML(result *domain.ParseResult, opts Options) string {
	var b strings.Builder
	b.WriteString(`<div class="smartdoc-document">` + "\n")

	for _, e := range result.Elements {
		attrs := fmt.Sprintf(`class="element element-%s confidence-%s" data-reading-order="%d"`,
			e.Type, confidenceClass(e.Confidence), e.ReadingOrder)
		if opts.IncludeConfidence {
			attrs += fmt.Sprintf(` data-confidence="%.2f"`, e.Confidence)
		}
		if opts.IncludeCoordinates {
			attrs += fmt.Sprintf(` data-bbox="%g,%g,%g,%g"`, e.BBox.X0, e.BBox.Y0, e.BBox.X1, e.BBox.Y1)
		}

		b.WriteString("  <div " + attrs + ">\n")
		b.WriteString(renderElementHTML(e))
		b.WriteString("  </div>\n")
	}

	b.WriteString("</div>")
	return b.String()
}

func renderElementHTML(e domain.ParsedElement) string {
	if e.Error != "" {
		return "    <p class=\"element-error\">" + html.EscapeString(e.Error) + "</p>\n"
	}

	switch e.Type {
	case domain.ElementTable:
		grid := ParseTableGrid(e.Text)
		if grid.Rows == 0 {
			return ""
		}
		return renderHTMLTable(grid)

	case domain.ElementFigure:
		out := "    <figure><figcaption>" + html.EscapeString(strings.TrimSpace(e.Text)) + "</figcaption></figure>\n"
		return out

	case domain.ElementFormula:
		return "    <div class=\"math\">" + html.EscapeString(strings.TrimSpace(e.Text)) + "</div>\n"

	default:
		return "    <p>" + html.EscapeString(strings.TrimSpace(e.Text)) + "</p>\n"
	}
}

func renderHTMLTable(grid TableGrid) string {
	var b strings.Builder
	b.WriteString("    <table>\n")
	for r, row := range grid.Data {
		tag := "td"
		if r == 0 {
			tag = "th"
		}
		b.WriteString("      <tr>")
		for c := 0; c < grid.Columns; c++ {
			cell := ""
			if c < len(row) {
				cell = row[c]
			}
			b.WriteString("<" + tag + ">" + html.EscapeString(cell) + "</" + tag + ">")
		}
		b.WriteString("</tr>\n")
	}
	b.WriteString("    </table>\n")
	return b.String()
}

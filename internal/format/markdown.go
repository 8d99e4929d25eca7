package format

import (
	"strings"

	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/domain"
)

// renderMarkdown converts the ordered element list into a markdown document.
func renderMarkdown(result *domain.ParseResult) string {
	var parts []string

	for _, e := range result.Elements {
		if e.Error != "" {
			parts = append(parts, "<!-- element "+e.ElementID+" failed: "+e.Error+" -->", "")
			continue
		}

		switch e.Type {
		case domain.ElementText:
			text := strings.TrimSpace(e.Text)
			if text != "" {
				parts = append(parts, text, "")
			}

		case domain.ElementTable:
			if strings.TrimSpace(e.Text) == "" {
				continue
			}
			grid := ParseTableGrid(e.Text)
			if grid.Rows > 0 {
				parts = append(parts, renderPipeTable(grid), "")
			}

		case domain.ElementFigure:
			placeholder := "![figure](#figure-" + e.ElementID + ")"
			parts = append(parts, placeholder)
			if desc := strings.TrimSpace(e.Text); desc != "" {
				parts = append(parts, "*"+desc+"*")
			}
			parts = append(parts, "")

		case domain.ElementFormula:
			formula := strings.TrimSpace(e.Text)
			if formula == "" {
				continue
			}
			if !strings.HasPrefix(formula, "$$") {
				formula = "$$" + formula + "$$"
			}
			parts = append(parts, formula, "")
		}
	}

	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// TableGrid is the row/column text grid reconstructed from a table element.
type TableGrid struct {
	Rows    int
	Columns int
	Data    [][]string
}

// ParseTableGrid reconstructs a table grid from model output. Markdown-style
// pipe rows are parsed cell by cell; anything else degrades to a
// single-column grid of lines.
func ParseTableGrid(text string) TableGrid {
	lines := nonEmptyLines(text)
	if len(lines) == 0 {
		return TableGrid{}
	}

	if strings.Contains(text, "|") {
		var rows [][]string
		for _, line := range lines {
			if isSeparatorRow(line) {
				continue
			}
			trimmed := strings.Trim(line, "|")
			cells := strings.Split(trimmed, "|")
			for i := range cells {
				cells[i] = strings.TrimSpace(cells[i])
			}
			rows = append(rows, cells)
		}
		if len(rows) > 0 {
			maxCols := 0
			for _, row := range rows {
				if len(row) > maxCols {
					maxCols = len(row)
				}
			}
			return TableGrid{Rows: len(rows), Columns: maxCols, Data: rows}
		}
	}

	data := make([][]string, len(lines))
	for i, line := range lines {
		data[i] = []string{line}
	}
	return TableGrid{Rows: len(lines), Columns: 1, Data: data}
}

// renderPipeTable renders a grid as a normalized markdown pipe table with a
// header separator after the first row.
func renderPipeTable(grid TableGrid) string {
	var b strings.Builder

	writeRow := func(row []string) {
		b.WriteString("|")
		for c := 0; c < grid.Columns; c++ {
			cell := ""
			if c < len(row) {
				cell = row[c]
			}
			b.WriteString(" " + cell + " |")
		}
		b.WriteString("\n")
	}

	writeRow(grid.Data[0])
	b.WriteString("|")
	for c := 0; c < grid.Columns; c++ {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, row := range grid.Data[1:] {
		writeRow(row)
	}

	return strings.TrimRight(b.String(), "\n")
}

// isSeparatorRow reports whether a line is a markdown header separator.
func isSeparatorRow(line string) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.Contains(trimmed, "-") {
		return false
	}
	for _, r := range trimmed {
		switch r {
		case '|', '-', ':', ' ':
		default:
			return false
		}
	}
	return true
}

func nonEmptyLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}

package layout

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/domain"
)

// Element is one entry of the stage-1 layout output: a normalized bounding
// box in the padded page plus the model's element label.
type Element struct {
	Label        string
	Type         domain.ElementType
	BBox         domain.BBox // normalized [0,1] coordinates in the padded page
	ReadingOrder int
}

// layoutPattern matches the model's layout string: repeated
// "[x1, y1, x2, y2] label" groups.
var layoutPattern = regexp.MustCompile(`\[(\d*\.?\d+),\s*(\d*\.?\d+),\s*(\d*\.?\d+),\s*(\d*\.?\d+)\]\s*(\w+)`)

// ParseLayoutString parses the raw stage-1 model output into ordered layout
// elements. Reading order follows the model's emission order.
func ParseLayoutString(s string) []Element {
	matches := layoutPattern.FindAllStringSubmatch(s, -1)

	elements := make([]Element, 0, len(matches))
	for i, m := range matches {
		coords := make([]float64, 4)
		ok := true
		for j := 0; j < 4; j++ {
			v, err := strconv.ParseFloat(m[j+1], 64)
			if err != nil {
				ok = false
				break
			}
			coords[j] = v
		}
		if !ok {
			continue
		}

		label := strings.ToLower(strings.TrimSpace(m[5]))
		elements = append(elements, Element{
			Label:        label,
			Type:         labelType(label),
			BBox:         domain.BBox{X0: coords[0], Y0: coords[1], X1: coords[2], Y1: coords[3]},
			ReadingOrder: i,
		})
	}
	return elements
}

// labelType maps a model layout label to an element type. Unknown labels
// are treated as text so nothing detected is silently dropped.
func labelType(label string) domain.ElementType {
	switch label {
	case "tab", "table":
		return domain.ElementTable
	case "fig", "figure":
		return domain.ElementFigure
	case "formula", "equ", "equation":
		return domain.ElementFormula
	default:
		return domain.ElementText
	}
}

// NormalizeReadingOrder resolves duplicate reading-order values. The model's
// ordering is trusted as-is; only elements reporting the same order are
// re-broken, top-to-bottom then left-to-right, and the sequence is then
// renumbered to be gapless.
func NormalizeReadingOrder(elements []Element) []Element {
	byOrder := make(map[int][]int)
	hasDup := false
	for i, e := range elements {
		byOrder[e.ReadingOrder] = append(byOrder[e.ReadingOrder], i)
		if len(byOrder[e.ReadingOrder]) > 1 {
			hasDup = true
		}
	}
	if !hasDup {
		return elements
	}

	out := append([]Element(nil), elements...)
	for _, idxs := range byOrder {
		if len(idxs) < 2 {
			continue
		}
		// Stable insertion sort of the tied group by bbox position.
		for i := 1; i < len(idxs); i++ {
			for j := i; j > 0 && out[idxs[j]].BBox.Before(out[idxs[j-1]].BBox); j-- {
				out[idxs[j]], out[idxs[j-1]] = out[idxs[j-1]], out[idxs[j]]
			}
		}
	}

	// Renumber so downstream invariants (no gaps, no duplicates) hold.
	rank := make([]int, len(out))
	for i := range rank {
		rank[i] = i
	}
	for i := range out {
		out[i].ReadingOrder = rank[i]
	}
	return out
}

package pipeline

import (
	"sort"
	"strings"

	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/domain"
)

// MergeTextBlocks merges adjacent text elements whose vertical gap is within
// maxGap pixels, treating them as one paragraph. Non-text elements pass
// through untouched. The merged element takes the union bbox, the joined
// text, the averaged confidence, and the smallest reading order of its group.
func MergeTextBlocks(elements []domain.ParsedElement, maxGap float64) []domain.ParsedElement {
	var texts, others []domain.ParsedElement
	for _, e := range elements {
		if e.Type == domain.ElementText && e.Error == "" {
			texts = append(texts, e)
		} else {
			others = append(others, e)
		}
	}
	if len(texts) <= 1 {
		return elements
	}

	sort.Slice(texts, func(i, j int) bool {
		return texts[i].ReadingOrder < texts[j].ReadingOrder
	})

	var merged []domain.ParsedElement
	group := []domain.ParsedElement{texts[0]}

	for _, cur := range texts[1:] {
		prev := group[len(group)-1]
		gap := cur.BBox.Y0 - prev.BBox.Y1
		if gap < 0 {
			gap = -gap
		}
		if gap <= maxGap {
			group = append(group, cur)
			continue
		}
		merged = append(merged, mergeGroup(group))
		group = []domain.ParsedElement{cur}
	}
	merged = append(merged, mergeGroup(group))

	out := append(merged, others...)
	sort.Slice(out, func(i, j int) bool {
		return out[i].ReadingOrder < out[j].ReadingOrder
	})
	return out
}

// mergeGroup collapses a run of text elements into one.
func mergeGroup(group []domain.ParsedElement) domain.ParsedElement {
	if len(group) == 1 {
		return group[0]
	}

	bbox := group[0].BBox
	order := group[0].ReadingOrder
	var parts []string
	var confSum float64
	confN := 0

	for _, e := range group {
		bbox = bbox.Union(e.BBox)
		if e.ReadingOrder < order {
			order = e.ReadingOrder
		}
		if strings.TrimSpace(e.Text) != "" {
			parts = append(parts, strings.TrimSpace(e.Text))
		}
		if e.Confidence > 0 {
			confSum += e.Confidence
			confN++
		}
	}

	conf := 0.0
	if confN > 0 {
		conf = confSum / float64(confN)
	}

	return domain.ParsedElement{
		ElementID:    group[0].ElementID,
		Type:         domain.ElementText,
		BBox:         bbox,
		Text:         strings.Join(parts, " "),
		Confidence:   conf,
		ReadingOrder: order,
	}
}

// Package layout runs the stage-1 layout analysis: a single inference call
// that yields the page's element anchors in natural reading order.
package layout

import (
	"context"

	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/domain"
	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/inference"
	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/observability"
)

// LayoutPrompt is the stage-1 task prompt.
const LayoutPrompt = "Parse the reading order of this document."

// Analyzer produces element anchors for a page image.
type Analyzer struct {
	client inference.Client
	logger *observability.Logger
}

// NewAnalyzer creates a layout analyzer.
func NewAnalyzer(client inference.Client, logger *observability.Logger) *Analyzer {
	return &Analyzer{
		client: client,
		logger: logger.WithComponent("layout"),
	}
}

// Analyze runs the stage-1 call on the (padded) page image and returns the
// detected elements in reading order. One inference call per page.
func (a *Analyzer) Analyze(ctx context.Context, page domain.ImageRef) ([]Element, error) {
	raw, err := a.client.Infer(ctx, LayoutPrompt, page)
	if err != nil {
		if domain.TypeOf(err) != "" {
			return nil, err
		}
		return nil, domain.ModelError("layout analysis failed", err)
	}

	elements := NormalizeReadingOrder(ParseLayoutString(raw))

	a.logger.Debug().
		Int("elements", len(elements)).
		Msg("Layout analysis completed")

	return elements, nil
}

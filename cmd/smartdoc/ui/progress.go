package ui

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
)

// Spinner wraps an indeterminate progress display.
type Spinner struct {
	bar *progressbar.ProgressBar
}

// NewSpinner creates a spinner with the given description.
func NewSpinner(description string) *Spinner {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)
	return &Spinner{bar: bar}
}

// Tick advances the spinner animation.
func (s *Spinner) Tick() {
	_ = s.bar.Add(1)
}

// Describe updates the spinner description.
func (s *Spinner) Describe(description string) {
	s.bar.Describe(description)
}

// Finish stops the spinner and moves to the next line.
func (s *Spinner) Finish() {
	_ = s.bar.Finish()
}

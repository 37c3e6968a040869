package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/schollz/progressbar/v3"
)

// PageProgress reports how many transactions a multi-page download has
// fetched. The total is unknown up front, so the bar spins and counts.
type PageProgress struct {
	bar   *progressbar.ProgressBar
	pages int
}

// NewPageProgress creates a progress indicator writing to w.
func NewPageProgress(w io.Writer, description string) *PageProgress {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("txn"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetDescription("[cyan]"+description+"[reset]"),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(w); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
	return &PageProgress{bar: bar}
}

// Page records one fetched page of n transactions.
func (p *PageProgress) Page(n int) {
	p.pages++
	p.bar.Describe(fmt.Sprintf("[cyan]Page %d[reset]", p.pages))
	if err := p.bar.Add(n); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
}

// Pages returns how many pages were recorded.
func (p *PageProgress) Pages() int {
	return p.pages
}

// Finish completes the bar.
func (p *PageProgress) Finish() {
	if err := p.bar.Finish(); err != nil {
		slog.Warn("Failed to finish progress bar", "error", err)
	}
}

package render

import (
	"io"
	"os"
	"time"

	"github.com/andpalmier/nestprog/pkg/progress"
	"github.com/schollz/progressbar/v3"
)

// BarConfig configures a Bar.
type BarConfig struct {
	// Writer is where the bar is drawn (defaults to os.Stderr)
	Writer io.Writer

	// Width is the bar width in cells (defaults to 40)
	Width int

	// Throttle is the minimum time between redraws
	Throttle time.Duration
}

// Bar draws progress signals with a progressbar.ProgressBar.
// The bar is created on the first signal, sized to the root total.
type Bar struct {
	cfg   BarConfig
	bar   *progressbar.ProgressBar
	label string
}

// NewBar creates a Bar.
func NewBar(cfg BarConfig) *Bar {
	if cfg.Writer == nil {
		cfg.Writer = os.Stderr
	}
	if cfg.Width <= 0 {
		cfg.Width = 40
	}
	return &Bar{cfg: cfg}
}

var _ progress.Observer = (*Bar)(nil)

// Observe moves the bar to the signalled progress. Progress beyond the
// total is drawn as full.
func (b *Bar) Observe(s progress.Signal) bool {
	if b.bar == nil {
		b.bar = progressbar.NewOptions64(s.Total,
			progressbar.OptionSetWriter(b.cfg.Writer),
			progressbar.OptionSetWidth(b.cfg.Width),
			progressbar.OptionThrottle(b.cfg.Throttle),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionSetDescription(s.Label),
			progressbar.OptionSetRenderBlankState(true),
		)
		b.label = s.Label
	}

	if b.bar.GetMax64() != s.Total {
		b.bar.ChangeMax64(s.Total)
	}
	if s.Label != b.label {
		b.bar.Describe(s.Label)
		b.label = s.Label
	}

	value := s.Progress
	if value > s.Total {
		value = s.Total
	}
	if value < 0 {
		value = 0
	}
	_ = b.bar.Set64(value)
	return true
}

// Finish completes the bar if one was drawn.
func (b *Bar) Finish() {
	if b.bar == nil {
		return
	}
	_ = b.bar.Finish()
	_, _ = io.WriteString(b.cfg.Writer, "\n")
}

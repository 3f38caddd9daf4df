// Package render provides progress observers for terminals and logs.
// Each observer receives the overall progress computed by a
// progress.Tracker and displays it in its own way.
package render

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/andpalmier/nestprog/pkg/progress"
	"github.com/fatih/color"
)

// Reporter renders a single self-overwriting progress line.
type Reporter struct {
	// Configuration
	quiet       bool
	verbose     bool
	writer      io.Writer
	minInterval time.Duration
	width       int

	// State
	startTime time.Time
	lastPrint time.Time
	lastLabel string
	lastLine  string
	now       func() time.Time
}

// Config configures the line reporter.
type Config struct {
	// Quiet suppresses all output when true
	Quiet bool

	// Verbose prints every label change on its own line
	Verbose bool

	// Writer is where to write output (defaults to os.Stderr)
	Writer io.Writer

	// MinInterval rate limits redraws; zero redraws on every signal.
	// The final signal of a run is always drawn.
	MinInterval time.Duration

	// Width is the bar width in cells (defaults to 30)
	Width int
}

// New creates a new line reporter with the given configuration.
func New(cfg Config) *Reporter {
	writer := cfg.Writer
	if writer == nil {
		writer = os.Stderr
	}
	width := cfg.Width
	if width <= 0 {
		width = 30
	}

	r := &Reporter{
		quiet:       cfg.Quiet,
		verbose:     cfg.Verbose,
		writer:      writer,
		minInterval: cfg.MinInterval,
		width:       width,
		now:         time.Now,
	}
	r.startTime = r.now()
	return r
}

var _ progress.Observer = (*Reporter)(nil)

// Observe draws the signal. It never asks the tracker to stop.
func (r *Reporter) Observe(s progress.Signal) bool {
	if r.quiet {
		return true
	}

	if r.verbose && s.Label != "" && s.Label != r.lastLabel {
		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Fprintf(r.writer, "\r\033[K%s %s\n", cyan("→"), s.Label)
		r.lastLine = ""
	}
	r.lastLabel = s.Label

	// Rate limit redraws to avoid flickering
	now := r.now()
	if r.minInterval > 0 && now.Sub(r.lastPrint) < r.minInterval && s.Progress < s.Total {
		return true
	}
	r.lastPrint = now

	r.print(s)
	return true
}

// Finish clears the progress line and prints a completion message.
func (r *Reporter) Finish(message string) {
	if r.quiet {
		return
	}
	green := color.New(color.FgGreen, color.Bold).SprintFunc()
	elapsed := r.now().Sub(r.startTime)
	fmt.Fprintf(r.writer, "\r\033[K%s %s in %s\n", green("✓"), message, formatDuration(elapsed))
}

// Error reports an error during processing.
func (r *Reporter) Error(message string) {
	if r.quiet {
		return
	}
	red := color.New(color.FgRed, color.Bold).SprintFunc()
	fmt.Fprintf(r.writer, "\r\033[K%s Error: %s\n", red("✗"), message)
	r.lastLine = ""
}

// print renders the signal to the terminal.
func (r *Reporter) print(s progress.Signal) {
	line := r.line(s)
	if line == r.lastLine {
		return
	}
	r.lastLine = line
	fmt.Fprintf(r.writer, "\r\033[K%s", line)
}

// line builds the progress line for a signal.
func (r *Reporter) line(s progress.Signal) string {
	pct := Percent(s.Total, s.Progress)

	filled := r.width * pct / 100
	if filled > r.width {
		filled = r.width
	}
	if filled < 0 {
		filled = 0
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", r.width-filled)

	line := fmt.Sprintf("[%s] %3d%% (%d/%d)", bar, pct, s.Progress, s.Total)
	if s.Label != "" {
		line += " " + s.Label
	}
	return line
}

// Percent returns progress as a whole percentage of total.
// Values outside the total are not clamped.
func Percent(total, progress int64) int {
	if total <= 0 {
		return 0
	}
	return int(progress * 100 / total)
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "< 1s"
	}

	seconds := int(d.Seconds())
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}

	minutes := seconds / 60
	seconds = seconds % 60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}

	hours := minutes / 60
	minutes = minutes % 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

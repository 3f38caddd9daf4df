package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/andpalmier/nestprog/internal/checksum"
	"github.com/andpalmier/nestprog/internal/config"
	"github.com/andpalmier/nestprog/internal/render"
	"github.com/andpalmier/nestprog/pkg/progress"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/google/uuid"
)

const (
	// rootTotal is the resolution of the overall progress (per mille)
	rootTotal = 1000

	scanShare = 100
	hashShare = rootTotal - scanShare
)

// Options holds everything a run needs
type Options struct {
	Paths    []string
	Settings config.Config

	// IsTerminal selects the bar in auto output mode
	IsTerminal bool

	// Out receives the checksum lines unless Settings.OutputFile is set
	Out io.Writer

	// Err receives progress, header and summary output
	Err io.Writer

	Logger *slog.Logger
}

// group is the set of files collected under one input path
type group struct {
	root  string
	files []checksum.File
	bytes int64
}

// Run executes the nestprog application logic
func Run(ctx context.Context, opts Options) error {
	if len(opts.Paths) == 0 {
		return fmt.Errorf("at least one path is required")
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	cfg := opts.Settings
	if err := cfg.Validate(); err != nil {
		return err
	}

	runID := uuid.NewString()
	logger := opts.Logger.With("run", runID)
	mode := cfg.OutputMode(opts.IsTerminal)

	if mode != config.OutputNone {
		printHeader(opts.Err, opts.Paths, cfg)
	}

	observer, finish := newObserver(mode, opts.Err, cfg, logger)
	tracker := progress.New(
		progress.WithObserver(observer),
		progress.WithSimpleCallback(func(_, _ int64) bool { return ctx.Err() == nil }),
		progress.WithGranularity(cfg.Granularity),
		progress.WithCutoff(cfg.Cutoff),
		progress.WithUserContext(runID),
		progress.WithLogger(logger),
	)
	if err := tracker.Init("nestprog", rootTotal); err != nil {
		return err
	}
	defer tracker.End()

	start := time.Now()

	groups, err := scan(ctx, tracker, opts.Paths, cfg.Include)
	if err != nil {
		return err
	}

	var fileCount int
	for _, g := range groups {
		fileCount += len(g.files)
	}
	if fileCount == 0 {
		return fmt.Errorf("no files found")
	}
	logger.Info("scan complete", "paths", len(groups), "files", fileCount)

	results, hashErr := hash(ctx, tracker, groups, cfg, logger)

	tracker.Emit()
	finish(fmt.Sprintf("Checksummed %d files", countSucceeded(results)))

	if err := writeSums(opts.Out, cfg.OutputFile, results); err != nil {
		return err
	}

	if mode != config.OutputNone {
		printSummary(opts.Err, results, time.Since(start), cfg)
	}
	return hashErr
}

// scan collects the files of every path inside a "Scanning" portion
func scan(ctx context.Context, tracker *progress.Tracker, paths []string, include []string) ([]group, error) {
	tracker.Enter(scanShare, "Scanning", int64(len(paths)))

	groups := make([]group, 0, len(paths))
	for _, path := range paths {
		files, err := checksum.Collect(ctx, path, include)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group{root: path, files: files, bytes: checksum.TotalSize(files)})

		if !tracker.Increment() {
			return nil, stopError(ctx)
		}
	}

	tracker.Finish()
	return groups, nil
}

// hash checksums every group inside a "Hashing" portion, one nested
// portion per group sized by its file count and stepped in bytes
func hash(ctx context.Context, tracker *progress.Tracker, groups []group, cfg config.Config, logger *slog.Logger) ([]checksum.Result, error) {
	var fileCount int64
	for _, g := range groups {
		fileCount += int64(len(g.files))
	}
	tracker.Enter(hashShare, "Hashing", fileCount)

	c, err := checksum.New(checksum.Config{
		Workers:   cfg.Workers,
		Algorithm: cfg.Algorithm,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	var all []checksum.Result
	var hashErr error
	for _, g := range groups {
		if len(g.files) == 0 {
			logger.Warn("no files matched", "path", g.root)
			continue
		}

		tracker.Enter(int64(len(g.files)), g.root, g.bytes, progress.WithData(g.root))
		logger.Debug("hashing", "phase", breadcrumb(tracker.Levels()), "files", len(g.files), "bytes", g.bytes)
		results, err := c.Run(ctx, tracker, g.files)
		all = append(all, results...)

		if errors.Is(err, checksum.ErrStopped) || ctx.Err() != nil {
			return all, stopError(ctx)
		}
		if err != nil && hashErr == nil {
			hashErr = err
		}
		tracker.Finish()
	}

	tracker.Finish()
	return all, hashErr
}

// breadcrumb joins the labels of the levels from the root inwards
func breadcrumb(levels []progress.Level) string {
	var parts []string
	for i := len(levels) - 1; i >= 0; i-- {
		if levels[i].Label != "" {
			parts = append(parts, levels[i].Label)
		}
	}
	return strings.Join(parts, " > ")
}

// stopError tells why a run stopped early
func stopError(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("interrupted: %w", err)
	}
	return checksum.ErrStopped
}

// newObserver builds the progress observer for an output mode; the
// returned function completes the display
func newObserver(mode string, w io.Writer, cfg config.Config, logger *slog.Logger) (progress.Observer, func(string)) {
	debug := render.NewLog(logger, slog.LevelDebug)

	switch mode {
	case config.OutputBar:
		bar := render.NewBar(render.BarConfig{Writer: w, Throttle: 65 * time.Millisecond})
		return render.Tee(bar, debug), func(string) { bar.Finish() }
	case config.OutputLine:
		line := render.New(render.Config{
			Writer:      w,
			Verbose:     cfg.Verbose,
			MinInterval: 100 * time.Millisecond,
		})
		return render.Tee(line, debug), line.Finish
	case config.OutputLog:
		return render.NewLog(logger, slog.LevelInfo), func(string) {}
	default:
		return debug, func(string) {}
	}
}

// writeSums writes the checksum lines to path, or to w if path is empty
func writeSums(w io.Writer, path string, results []checksum.Result) error {
	if path == "" {
		return checksum.WriteSums(w, results)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := checksum.WriteSums(f, results); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func countSucceeded(results []checksum.Result) int {
	n := 0
	for _, r := range results {
		if r.Error == nil {
			n++
		}
	}
	return n
}

// printHeader displays the startup banner with configuration
func printHeader(w io.Writer, paths []string, cfg config.Config) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	magenta := color.New(color.FgMagenta, color.Bold).SprintFunc()

	fmt.Fprintln(w, "")
	fmt.Fprintln(w, cyan("┌─────────────────────────────────────────┐"))
	fmt.Fprintln(w, cyan("│                nestprog                 │"))
	fmt.Fprintln(w, cyan("│      Nested progress checksummer        │"))
	fmt.Fprintln(w, cyan("└─────────────────────────────────────────┘"))
	fmt.Fprintln(w, "")

	for _, p := range paths {
		fmt.Fprintf(w, "Path:        %s\n", magenta(p))
	}
	fmt.Fprintf(w, "Algorithm:   %s\n", cfg.Algorithm)
	fmt.Fprintf(w, "Workers:     %d\n", cfg.Workers)
	if len(cfg.Include) > 0 {
		fmt.Fprintf(w, "Include:     %v\n", cfg.Include)
	}
	if cfg.Cutoff != progress.Unbounded {
		fmt.Fprintf(w, "Cutoff:      %d\n", cfg.Cutoff)
	}
	fmt.Fprintln(w, "")
}

// printSummary displays the checksum results
func printSummary(w io.Writer, results []checksum.Result, elapsed time.Duration, cfg config.Config) {
	fmt.Fprintln(w, "")

	var successes, failures int
	var bytes int64
	var failed []string
	for _, r := range results {
		if r.Error != nil {
			failures++
			failed = append(failed, fmt.Sprintf("  - %s: %v", r.File.Path, r.Error))
		} else {
			successes++
			bytes += r.File.Size
		}
	}

	if failures > 0 {
		red := color.New(color.FgRed, color.Bold).SprintFunc()
		fmt.Fprintf(w, "%s Completed with errors: %d succeeded, %d failed\n", red("⚠"), successes, failures)
		if cfg.Verbose {
			fmt.Fprintln(w, "Failed files:")
			for _, f := range failed {
				fmt.Fprintln(w, f)
			}
		}
	}

	green := color.New(color.FgGreen, color.Bold).SprintFunc()
	fmt.Fprintf(w, "%s %d files, %s in %s\n", green("✓"), successes,
		humanize.Bytes(uint64(bytes)), elapsed.Round(time.Millisecond))
	if cfg.OutputFile != "" {
		fmt.Fprintf(w, "%s Output: %s\n", green("📁"), cfg.OutputFile)
	}
}

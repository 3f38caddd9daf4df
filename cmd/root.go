// Package cmd provides the CLI interface for nestprog.
// It parses command-line arguments and orchestrates the checksum run.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/andpalmier/nestprog/internal/app"
	"github.com/andpalmier/nestprog/internal/config"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

const appName = "nestprog"

// Execute runs the CLI application and returns an exit code.
func Execute(version, commit, date string) int {
	a := newApp(os.Stdout, os.Stderr)
	a.Version = versionString(version, commit, date)

	if err := a.Run(os.Args); err != nil {
		red := color.New(color.FgRed, color.Bold).SprintFunc()
		fmt.Fprintf(os.Stderr, "%s %v\n", red("Error:"), err)
		return 1
	}
	return 0
}

// newApp builds the command line application writing checksums to out
// and everything else to errw.
func newApp(out, errw io.Writer) *cli.App {
	return &cli.App{
		Name:      appName,
		Usage:     "Checksum files and directories with nested progress reporting",
		ArgsUsage: "<path> [path...]",
		Writer:    out,
		ErrWriter: errw,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML or TOML config file",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "Number of parallel workers",
			},
			&cli.StringFlag{
				Name:    "algorithm",
				Aliases: []string{"a"},
				Usage:   "Checksum algorithm: " + strings.Join(config.Algorithms, ", "),
			},
			&cli.StringSliceFlag{
				Name:    "include",
				Aliases: []string{"i"},
				Usage:   "Only checksum files matching this glob (repeatable)",
			},
			&cli.Int64Flag{
				Name:  "granularity",
				Usage: "Minimum overall advance between progress reports",
			},
			&cli.IntFlag{
				Name:  "cutoff",
				Usage: "Deepest nesting level that reports progress",
			},
			&cli.StringFlag{
				Name:  "output",
				Usage: "Progress output: auto, bar, line, log, none",
			},
			&cli.StringFlag{
				Name:    "output-file",
				Aliases: []string{"o"},
				Usage:   "Write checksums to this file instead of stdout",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Suppress progress output",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Show each phase as it starts",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Action: run,
	}
}

// run performs the checksum run for the positional paths.
func run(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one path is required")
	}

	cfg, err := settings(c)
	if err != nil {
		return err
	}

	// Set up context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(c.App.ErrWriter, "\n⚠ Interrupted, cleaning up...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return app.Run(ctx, app.Options{
		Paths:      c.Args().Slice(),
		Settings:   cfg,
		IsTerminal: config.StderrIsTerminal(),
		Out:        c.App.Writer,
		Err:        c.App.ErrWriter,
		Logger:     slog.Default(),
	})
}

// settings resolves the run configuration: defaults, then the config
// file, then flags that were set explicitly.
func settings(c *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	if c.IsSet("algorithm") {
		cfg.Algorithm = strings.ToLower(c.String("algorithm"))
	}
	if c.IsSet("include") {
		cfg.Include = c.StringSlice("include")
	}
	if c.IsSet("granularity") {
		cfg.Granularity = c.Int64("granularity")
	}
	if c.IsSet("cutoff") {
		cfg.Cutoff = c.Int("cutoff")
	}
	if c.IsSet("output") {
		cfg.Output = strings.ToLower(c.String("output"))
	}
	if c.IsSet("output-file") {
		cfg.OutputFile = c.String("output-file")
	}
	if c.IsSet("quiet") {
		cfg.Quiet = c.Bool("quiet")
	}
	if c.IsSet("verbose") {
		cfg.Verbose = c.Bool("verbose")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	w := c.App.ErrWriter
	if w == nil {
		w = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

// versionString formats the build information for --version.
func versionString(version, commit, date string) string {
	s := version
	if commit != "none" {
		s += " (commit " + commit + ")"
	}
	if date != "unknown" {
		s += " built " + date
	}
	return s
}

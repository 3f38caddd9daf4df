package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/andpalmier/nestprog/pkg/progress"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// Output modes.
const (
	OutputAuto = "auto"
	OutputBar  = "bar"
	OutputLine = "line"
	OutputLog  = "log"
	OutputNone = "none"
)

// Algorithms lists the supported checksum algorithms.
var Algorithms = []string{"sha256", "sha1", "md5", "xxh64"}

var outputs = []string{OutputAuto, OutputBar, OutputLine, OutputLog, OutputNone}

var (
	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("workers must be greater than 0")

	// ErrInvalidGranularity is returned when the granularity is negative.
	ErrInvalidGranularity = errors.New("granularity cannot be negative")

	// ErrInvalidCutoff is returned when the cutoff depth is negative.
	ErrInvalidCutoff = errors.New("cutoff cannot be negative")

	// ErrUnknownAlgorithm is returned for an unsupported checksum algorithm.
	ErrUnknownAlgorithm = errors.New("unknown algorithm")

	// ErrUnknownOutput is returned for an unsupported output mode.
	ErrUnknownOutput = errors.New("unknown output mode")

	// ErrUnsupportedFormat is returned for config files that are neither
	// YAML nor TOML.
	ErrUnsupportedFormat = errors.New("unsupported config file format")
)

// Config holds the run configuration.
type Config struct {
	Workers     int
	Granularity int64
	Cutoff      int
	Algorithm   string
	Output      string
	Include     []string
	Quiet       bool
	Verbose     bool
	OutputFile  string
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Workers:     runtime.NumCPU(),
		Granularity: 1,
		Cutoff:      progress.Unbounded,
		Algorithm:   "sha256",
		Output:      OutputAuto,
	}
}

// fileConfig mirrors Config for decoding; nil fields were not set.
type fileConfig struct {
	Workers     *int     `yaml:"workers" toml:"workers"`
	Granularity *int64   `yaml:"granularity" toml:"granularity"`
	Cutoff      *int     `yaml:"cutoff" toml:"cutoff"`
	Algorithm   string   `yaml:"algorithm" toml:"algorithm"`
	Output      string   `yaml:"output" toml:"output"`
	Include     []string `yaml:"include" toml:"include"`
	Quiet       *bool    `yaml:"quiet" toml:"quiet"`
	Verbose     *bool    `yaml:"verbose" toml:"verbose"`
	OutputFile  string   `yaml:"output_file" toml:"output_file"`
}

// LoadFromFile loads configuration from a YAML or TOML file, chosen by
// extension. Values absent from the file keep their defaults.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	case ".toml":
		err = toml.Unmarshal(data, &fc)
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()
	fc.apply(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

func (fc fileConfig) apply(cfg *Config) {
	if fc.Workers != nil {
		cfg.Workers = *fc.Workers
	}
	if fc.Granularity != nil {
		cfg.Granularity = *fc.Granularity
	}
	if fc.Cutoff != nil {
		cfg.Cutoff = *fc.Cutoff
	}
	if fc.Algorithm != "" {
		cfg.Algorithm = strings.ToLower(fc.Algorithm)
	}
	if fc.Output != "" {
		cfg.Output = strings.ToLower(fc.Output)
	}
	if len(fc.Include) > 0 {
		cfg.Include = fc.Include
	}
	if fc.Quiet != nil {
		cfg.Quiet = *fc.Quiet
	}
	if fc.Verbose != nil {
		cfg.Verbose = *fc.Verbose
	}
	if fc.OutputFile != "" {
		cfg.OutputFile = fc.OutputFile
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Workers)
	}
	if c.Granularity < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidGranularity, c.Granularity)
	}
	if c.Cutoff < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCutoff, c.Cutoff)
	}
	if !slices.Contains(Algorithms, c.Algorithm) {
		return fmt.Errorf("%w %q (valid: %s)", ErrUnknownAlgorithm, c.Algorithm, strings.Join(Algorithms, ", "))
	}
	if !slices.Contains(outputs, c.Output) {
		return fmt.Errorf("%w %q (valid: %s)", ErrUnknownOutput, c.Output, strings.Join(outputs, ", "))
	}
	return nil
}

// OutputMode resolves the output mode. Quiet always wins; auto picks the
// bar on a terminal and log records otherwise.
func (c Config) OutputMode(isTerminal bool) string {
	if c.Quiet {
		return OutputNone
	}
	if c.Output != OutputAuto {
		return c.Output
	}
	if isTerminal {
		return OutputBar
	}
	return OutputLog
}

// StderrIsTerminal reports whether standard error is a terminal.
func StderrIsTerminal() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

// Package config defines the run configuration for the nestprog CLI.
//
// Configuration can be provided via:
//   - Command-line flags
//   - YAML configuration file (.yaml, .yml)
//   - TOML configuration file (.toml)
//
// Flags override file values, which override the defaults.
//
// # Example
//
//	workers: 8
//	granularity: 5
//	cutoff: 3
//	algorithm: xxh64
//	output: bar
//	include:
//	  - "**/*.go"
package config

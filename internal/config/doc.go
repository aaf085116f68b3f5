// Package config loads and validates subburn's TOML configuration.
//
// Configuration covers the external tool binaries, queue pacing, logging, and
// the default encoder settings applied to new queue runs. Load falls back to
// built-in defaults when no file exists, expands ~ in path fields, and
// rejects values that would break at runtime.
package config

// Package config loads, normalizes, and validates the TOML configuration
// used by the daemon and CLI.
package config

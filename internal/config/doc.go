// Package config loads and validates lingotool's TOML configuration.
//
// Configuration sections by subsystem:
//   - Paths: data, log, overlay output, and backup directories
//   - Quality: quality gate thresholds and aggregation policy
//   - Writeback: overlay pack naming and post-write verification
//   - Logging: log format and level
//
// Load resolves the file (explicit path or the default under ~/.config),
// applies defaults, expands ~ in paths, and validates before returning.
package config

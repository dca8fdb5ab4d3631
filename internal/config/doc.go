// Package config loads, normalizes, and validates tonearm configuration.
//
// Configuration lives in a TOML file resolved from an explicit path, the
// default user config location, or a project-local tonearm.toml. Defaults are
// applied before validation so a missing file yields a working configuration.
package config

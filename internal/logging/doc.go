// Package logging configures slog output for tonearm components.
//
// Loggers are built from config (console or JSON format, optional log file
// fan-out) and components attach a standard component attribute via
// NewComponentLogger so log lines can be traced to the store, worker, or CLI.
package logging

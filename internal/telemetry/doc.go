// Package telemetry records cache and verification events in a bounded ring
// buffer and derives aggregate statistics and qualitative insights from them.
//
// The recorder is write-only for the store and worker and read by operators
// through the CLI. It has no external transport; ExportData produces a
// self-contained JSON document.
package telemetry

// Command tonearm is the CLI for the optimistic metadata cache: it ingests
// files, looks up cached metadata, runs the background verification daemon,
// and maintains the cache database.
package main

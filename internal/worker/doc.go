// Package worker runs background verification of optimistically cached
// metadata. It drains the persistent verification queue by priority, reads
// full content for each key, and reconciles the verified truth into the
// store, retrying failures with decaying priority.
package worker

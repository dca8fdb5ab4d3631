// Package tags extracts embedded metadata from raw audio content during
// background verification.
package tags

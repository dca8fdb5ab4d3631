// Package identity derives the keys and hashes that identify cached tracks.
//
// Three tiers exist, ordered by cost and strength: the optimistic key (name +
// size, collision-prone, lookup only), the sampled content fingerprint (cheap,
// detects probable mismatches), and the verification hash (full-content
// SHA-256, proves identity). All functions are pure.
package identity

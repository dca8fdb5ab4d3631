// Package store persists the optimistic metadata cache in SQLite and enforces
// its invariants across four tables: the track index, metadata cache, artwork
// cache, and verification queue.
//
// Lookups run on the UI latency path and never fail hard; store trouble
// degrades to a cache miss. Writes are transactional across tables so a
// reader can never observe a track index row whose linked metadata has not
// committed. Collisions between distinct contents sharing a fast key are
// resolved by supersession: the old record is retired in place and the
// verified truth lands under a derived key.
//
// Treat this package as the single source of truth for cache semantics; when
// you add fields, update schema.sql and bump schemaVersion.
package store

// Package daemon ties the store, verification worker, and periodic cache
// sweep together under a single-instance file lock.
package daemon

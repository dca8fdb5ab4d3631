package store

import "errors"

// Error taxonomy for cache operations. Callers match with errors.Is; every
// error returned by the store wraps one of these sentinels.
var (
	// ErrStoreUnavailable reports that the underlying database could not be
	// opened or reached. Lookup paths degrade to a miss instead of failing.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrConstraintViolation reports a duplicate key on insert. Callers must
	// route a second store for the same key through Verify, never a blind
	// overwrite.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrTransactionFailure reports an aborted multi-table write. The
	// transaction rolled back fully; no partial state persists.
	ErrTransactionFailure = errors.New("transaction failure")

	// ErrHashUnavailable reports that the strong-hash primitive could not run.
	// The affected item stays queued; it is never silently marked verified.
	ErrHashUnavailable = errors.New("hash computation unavailable")

	// ErrVerificationTimeout reports that a verification pass exceeded its
	// budget. Retryable, never treated as a collision.
	ErrVerificationTimeout = errors.New("verification timeout")

	// ErrIO reports a content read failure during verification. Retryable.
	ErrIO = errors.New("i/o failure")
)

// Retryable reports whether a verification failure should be re-enqueued
// rather than dropped.
func Retryable(err error) bool {
	return errors.Is(err, ErrVerificationTimeout) ||
		errors.Is(err, ErrIO) ||
		errors.Is(err, ErrTransactionFailure) ||
		errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrHashUnavailable)
}

// IsStoreError reports whether err wraps any of the store sentinels.
func IsStoreError(err error) bool {
	return Retryable(err) || errors.Is(err, ErrConstraintViolation)
}

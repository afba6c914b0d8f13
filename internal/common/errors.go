// Package common defines shared constants and sentinel errors used across
// the casesync server layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// ErrDictionaryUnknown is returned when a sync targets a dictionary the
	// server has never been given. Fatal to the request, not retried.
	ErrDictionaryUnknown = errors.New("dictionary unknown")

	// ErrScopeWidened is returned when an incremental pull asks for a wider
	// universe than the device's last recorded one. The revision watermark
	// would skip records the wider filter should have seen, so the request
	// is rejected with no ledger mutation.
	ErrScopeWidened = errors.New("sync universe wider than previous sync")

	// ErrLedgerAppendConflict is the internal marker for a lost
	// concurrent-append race on the per-dictionary revision counter. The
	// ledger retries it with a bounded policy; callers only see it when
	// retries exhaust.
	ErrLedgerAppendConflict = errors.New("ledger append conflict")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

package profile

import "errors"

// Error taxonomy shared across the persistence layer, the cache and the
// facade. Callers match with errors.Is; the concrete wrapped error carries
// the underlying cause.
var (
	// ErrNotFound means no live record exists. A normal miss, not logged
	// as an error anywhere.
	ErrNotFound = errors.New("profile not found")

	// ErrCorruptRecord means a stored properties column failed to decode.
	// Lookups treat it as a miss; the row stays until overwritten.
	ErrCorruptRecord = errors.New("corrupt profile record")

	// ErrRecordTooLarge means the encoded properties exceed the storage
	// bound. The write is rejected before touching the store.
	ErrRecordTooLarge = errors.New("profile record too large")

	// ErrStoreUnavailable wraps connection and transport faults from the
	// backing store.
	ErrStoreUnavailable = errors.New("profile store unavailable")

	// ErrConstraintViolation means an insert lost a uniqueness race. The
	// row landed through the competing writer.
	ErrConstraintViolation = errors.New("profile constraint violation")
)

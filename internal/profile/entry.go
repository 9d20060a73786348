package profile

import (
	"time"

	"github.com/google/uuid"
)

// Entry is the cached and stored record for one identity.
type Entry struct {
	// Username is the case-sensitive name the entry is keyed by. Unique
	// among live rows; the durable row is reused across renames.
	Username string

	// ID is the stable 128-bit identifier of the subject, immutable once
	// observed.
	ID uuid.UUID

	// Properties are the signed attribute properties fetched from the
	// upstream authority.
	Properties PropertySet

	// Expire is the store-side liveness bound. The row is visible to
	// lookups only while now < Expire.
	Expire time.Time
}

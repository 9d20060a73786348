package repository

import (
	"context"
	"time"

	"github.com/GroundMC/GroundMCProfileCache/internal/profile"
	"github.com/google/uuid"
)

// DefaultTTL is how far into the future expire is pushed on every
// successful write. Expiry is never extended on read.
const DefaultTTL = 2 * time.Hour

// ProfileRepository exposes persistence operations for cached profiles.
// All lookups apply the liveness filter (expire > now) except ExistsByID,
// which deliberately ignores it so a rename can reuse an expired row.
type ProfileRepository interface {
	FindByName(ctx context.Context, username string) (*profile.Entry, error)
	FindAllByNames(ctx context.Context, usernames []string) (map[string]*profile.Entry, error)
	FindByID(ctx context.Context, id uuid.UUID) (*profile.Entry, error)
	ExistsByID(ctx context.Context, id uuid.UUID) (bool, error)
	Upsert(ctx context.Context, id uuid.UUID, username string, properties profile.PropertySet) error
}

// SettingsRepository is the write target for the best-effort "last observed
// username" record. Its failures never roll back a profile upsert.
type SettingsRepository interface {
	SetLastKnownName(ctx context.Context, id uuid.UUID, name string) error
}

package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CachedProfile is the durable row behind the profile cache. The username is
// the primary key but the row itself belongs to the id: a rename updates the
// username in place, it never creates a second row for the same id.
type CachedProfile struct {
	bun.BaseModel `bun:"table:profile_cache,alias:pc"`

	Username   string    `bun:"username,pk,type:varchar(255)"`
	ID         string    `bun:"id,notnull,unique,type:uuid"`
	Properties string    `bun:"properties,notnull,type:varchar(4096)"`
	Expire     time.Time `bun:"expire,notnull"`
}

// ValidateForUpsert verifies the record is well formed before it is written.
func (p *CachedProfile) ValidateForUpsert() error {
	if _, err := uuid.Parse(p.ID); err != nil {
		return errors.New("id must be a valid UUID")
	}

	if p.Username == "" {
		return errors.New("username is required")
	}
	if len(p.Username) > 255 {
		return errors.New("username exceeds maximum length")
	}

	if p.Properties == "" {
		return errors.New("properties are required")
	}

	if p.Expire.IsZero() {
		return errors.New("expire timestamp is required")
	}

	return nil
}

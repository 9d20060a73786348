package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/GroundMC/GroundMCProfileCache/internal/db/models"
	"github.com/GroundMC/GroundMCProfileCache/internal/profile"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// BunProfileRepository persists cached profiles using Bun against
// PostgreSQL or SQLite.
type BunProfileRepository struct {
	db  *bun.DB
	ttl time.Duration
	now func() time.Time
}

// NewBunProfileRepository constructs a repository backed by Bun. The clock
// is injectable for tests; pass nil for wall-clock time.
func NewBunProfileRepository(db *bun.DB, now func() time.Time) *BunProfileRepository {
	if now == nil {
		now = time.Now
	}
	return &BunProfileRepository{db: db, ttl: DefaultTTL, now: now}
}

// WithTTL overrides the write TTL. Returns the receiver for chaining at
// construction time.
func (r *BunProfileRepository) WithTTL(ttl time.Duration) *BunProfileRepository {
	if ttl > 0 {
		r.ttl = ttl
	}
	return r
}

// FindByName fetches the live row for a username. Expired rows stay in the
// table but are invisible here.
func (r *BunProfileRepository) FindByName(ctx context.Context, username string) (*profile.Entry, error) {
	row := new(models.CachedProfile)
	err := r.db.NewSelect().Model(row).
		Where("username = ?", username).
		Where("expire > ?", r.now().UTC()).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: username %q", profile.ErrNotFound, username)
		}
		return nil, fmt.Errorf("%w: query profile by name: %v", profile.ErrStoreUnavailable, err)
	}

	return entryFromRow(row)
}

// FindAllByNames is the batch variant of FindByName. Only the usernames that
// resolved to a live row appear in the result; corrupt rows are dropped so a
// single bad record cannot poison a group refresh.
func (r *BunProfileRepository) FindAllByNames(ctx context.Context, usernames []string) (map[string]*profile.Entry, error) {
	if len(usernames) == 0 {
		return map[string]*profile.Entry{}, nil
	}

	var rows []models.CachedProfile
	err := r.db.NewSelect().Model(&rows).
		Where("username IN (?)", bun.In(usernames)).
		Where("expire > ?", r.now().UTC()).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: query profiles by names: %v", profile.ErrStoreUnavailable, err)
	}

	result := make(map[string]*profile.Entry, len(rows))
	for i := range rows {
		entry, err := entryFromRow(&rows[i])
		if err != nil {
			continue
		}
		result[entry.Username] = entry
	}
	return result, nil
}

// FindByID fetches the live row for an identifier. Used only as the fallback
// after the resident cache scan missed.
func (r *BunProfileRepository) FindByID(ctx context.Context, id uuid.UUID) (*profile.Entry, error) {
	row := new(models.CachedProfile)
	err := r.db.NewSelect().Model(row).
		Where("id = ?", id.String()).
		Where("expire > ?", r.now().UTC()).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %s", profile.ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: query profile by id: %v", profile.ErrStoreUnavailable, err)
	}

	return entryFromRow(row)
}

// ExistsByID reports whether any row exists for the id, expired or not.
// Decides insert vs update in Upsert.
func (r *BunProfileRepository) ExistsByID(ctx context.Context, id uuid.UUID) (bool, error) {
	count, err := r.db.NewSelect().
		Model((*models.CachedProfile)(nil)).
		Where("id = ?", id.String()).
		Count(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: count profiles by id: %v", profile.ErrStoreUnavailable, err)
	}
	return count > 0, nil
}

// Upsert writes the freshly discovered profile, pushing expire out by the
// fixed TTL. The existence check and the following insert or update share a
// transaction, but two concurrent Upserts for a never-seen id can still both
// observe "absent" and race to insert; the unique index on id is the
// backstop and the loser gets ErrConstraintViolation.
func (r *BunProfileRepository) Upsert(ctx context.Context, id uuid.UUID, username string, properties profile.PropertySet) error {
	// A profile without attribute data must never overwrite a good row
	if len(properties) == 0 {
		return errors.New("refusing to persist empty properties")
	}

	encoded, err := profile.EncodeProperties(properties)
	if err != nil {
		return err
	}

	row := &models.CachedProfile{
		Username:   username,
		ID:         id.String(),
		Properties: encoded,
		Expire:     r.now().UTC().Add(r.ttl),
	}
	if err := row.ValidateForUpsert(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	err = r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		count, err := tx.NewSelect().
			Model((*models.CachedProfile)(nil)).
			Where("id = ?", row.ID).
			Count(ctx)
		if err != nil {
			return fmt.Errorf("%w: count profiles by id: %v", profile.ErrStoreUnavailable, err)
		}

		if count == 0 {
			_, err = tx.NewInsert().Model(row).Exec(ctx)
		} else {
			_, err = tx.NewUpdate().
				Model((*models.CachedProfile)(nil)).
				Set("username = ?", row.Username).
				Set("properties = ?", row.Properties).
				Set("expire = ?", row.Expire).
				Where("id = ?", row.ID).
				Exec(ctx)
		}
		if err != nil {
			if isDuplicateKeyError(err) {
				return fmt.Errorf("%w: id %s: %v", profile.ErrConstraintViolation, row.ID, err)
			}
			return fmt.Errorf("%w: upsert profile: %v", profile.ErrStoreUnavailable, err)
		}
		return nil
	})
	return err
}

func entryFromRow(row *models.CachedProfile) (*profile.Entry, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: stored id %q: %v", profile.ErrCorruptRecord, row.ID, err)
	}

	props, err := profile.DecodeProperties(row.Properties)
	if err != nil {
		return nil, fmt.Errorf("username %q: %w", row.Username, err)
	}

	return &profile.Entry{
		Username:   row.Username,
		ID:         id,
		Properties: props,
		Expire:     row.Expire,
	}, nil
}

func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "unique constraint") || strings.Contains(msg, "UNIQUE constraint") || strings.Contains(msg, "23505")
}

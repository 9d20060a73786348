package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/GroundMC/GroundMCProfileCache/internal/db/models"
	"github.com/GroundMC/GroundMCProfileCache/internal/profile"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// BunSettingsRepository maintains the users settings table. Only the
// last-known-name column is written from this codebase.
type BunSettingsRepository struct {
	db *bun.DB
}

// NewBunSettingsRepository constructs a settings repository backed by Bun.
func NewBunSettingsRepository(db *bun.DB) *BunSettingsRepository {
	return &BunSettingsRepository{db: db}
}

// SetLastKnownName records the name the player was last observed under.
// Inserts the settings row if the player has none yet, otherwise updates
// last_name in place and leaves every other column alone.
func (r *BunSettingsRepository) SetLastKnownName(ctx context.Context, id uuid.UUID, name string) error {
	// The settings row holds the 16-char in-game name
	if len(name) > 16 {
		name = name[:16]
	}

	return r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		existing := new(models.UserSettings)
		err := tx.NewSelect().Model(existing).Where("player_id = ?", id.String()).Scan(ctx)
		switch {
		case err == nil:
			_, err = tx.NewUpdate().
				Model((*models.UserSettings)(nil)).
				Set("last_name = ?", name).
				Where("player_id = ?", id.String()).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("%w: update last known name: %v", profile.ErrStoreUnavailable, err)
			}
			return nil
		case errors.Is(err, sql.ErrNoRows):
			row := &models.UserSettings{PlayerID: id.String(), LastName: name}
			if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
				if isDuplicateKeyError(err) {
					return fmt.Errorf("%w: player %s: %v", profile.ErrConstraintViolation, id, err)
				}
				return fmt.Errorf("%w: insert user settings: %v", profile.ErrStoreUnavailable, err)
			}
			return nil
		default:
			return fmt.Errorf("%w: query user settings: %v", profile.ErrStoreUnavailable, err)
		}
	})
}

package migrations

import (
	"context"
	"fmt"

	"github.com/GroundMC/GroundMCProfileCache/internal/db/models"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(up_20260829000001, down_20260829000001)
}

// up_20260829000001 creates the profile_cache table
func up_20260829000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating profile_cache table...")

	_, err := db.NewCreateTable().
		Model((*models.CachedProfile)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create profile_cache table: %w", err)
	}

	// The liveness filter (expire > now) runs on every lookup
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_profile_cache_expire ON profile_cache(expire)`)
	if err != nil {
		return fmt.Errorf("failed to create index on expire: %w", err)
	}

	fmt.Println(" OK")
	return nil
}

// down_20260829000001 drops the profile_cache table
func down_20260829000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping profile_cache table...")

	_, err := db.NewDropTable().
		Model((*models.CachedProfile)(nil)).
		IfExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to drop profile_cache table: %w", err)
	}

	fmt.Println(" OK")
	return nil
}

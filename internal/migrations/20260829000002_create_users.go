package migrations

import (
	"context"
	"fmt"

	"github.com/GroundMC/GroundMCProfileCache/internal/db/models"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(up_20260829000002, down_20260829000002)
}

// up_20260829000002 creates the users settings table
func up_20260829000002(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating users table...")

	_, err := db.NewCreateTable().
		Model((*models.UserSettings)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_users_last_name ON users(last_name)`)
	if err != nil {
		return fmt.Errorf("failed to create index on last_name: %w", err)
	}

	fmt.Println(" OK")
	return nil
}

// down_20260829000002 drops the users table
func down_20260829000002(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping users table...")

	_, err := db.NewDropTable().
		Model((*models.UserSettings)(nil)).
		IfExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to drop users table: %w", err)
	}

	fmt.Println(" OK")
	return nil
}

// Package migrations holds the versioned schema migrations, applied through
// bun's migrator (see the db command tree).
package migrations

import "github.com/uptrace/bun/migrate"

// Migrations is the registry all migration files attach to via init().
var Migrations = migrate.NewMigrations()

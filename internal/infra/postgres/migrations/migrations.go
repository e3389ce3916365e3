// Package migrations holds the bun migrations of the quiz database.
package migrations

import "github.com/uptrace/bun/migrate"

var Migrations = migrate.NewMigrations()

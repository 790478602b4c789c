// Package migrations embeds the SQL migration files into the binary.
//
// Files live in one directory per database dialect. Importing this package
// for its side effect registers them with the database package.
package migrations

import (
	"embed"

	"github.com/nerrad567/devicehub/internal/infrastructure/database"
)

//go:embed sqlite/*.sql postgres/*.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}

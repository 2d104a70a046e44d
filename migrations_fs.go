package provisioning

import (
	"embed"
	"io/fs"
)

// migrationsFS holds the provisioning schema, with sqlite alternatives under
// data/sql/migrations/sqlite.
//
//go:embed data/sql/migrations/*.sql data/sql/migrations/sqlite/*.sql
var migrationsFS embed.FS

// GetMigrationsFS returns the full embedded migration tree.
func GetMigrationsFS() fs.FS {
	return migrationsFS
}

// GetCoreMigrationsFS returns the tenant session and installation ledger schema.
func GetCoreMigrationsFS() fs.FS {
	return migrationsFS
}

// Package testutil holds fixtures shared by package tests: a set of goose
// migrations and the schema file describing the entities they create. It
// depends only on stdlib so any package can import it without cycles.
package testutil

import (
	"embed"
	"io/fs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

//go:embed schema.toml
var schemaTOML []byte

// Migrations returns the fixture migrations rooted at the migration files.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		panic(err)
	}

	return sub
}

// Schema returns the fixture schema file contents (TOML).
func Schema() []byte {
	out := make([]byte, len(schemaTOML))
	copy(out, schemaTOML)

	return out
}

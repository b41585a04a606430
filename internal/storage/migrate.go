package storage

import (
	"database/sql"
	_ "embed"
)

//go:embed schema.sql
var schema string

// Migrate applies the schema. Every statement is IF NOT EXISTS, so running
// it on every boot is safe.
func Migrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

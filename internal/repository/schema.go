package repository

import (
	"context"
	"embed"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Schema files, one per service database
const (
	SchemaLoans   = "loans.sql"
	SchemaBooks   = "books.sql"
	SchemaMembers = "members.sql"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// ApplySchema creates the tables of the named schema files. Statements are
// idempotent so it runs on every start.
func ApplySchema(ctx context.Context, db *sqlx.DB, names ...string) error {
	for _, name := range names {
		ddl, err := schemaFS.ReadFile("schema/" + name)
		if err != nil {
			return fmt.Errorf("read schema %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(ddl)); err != nil {
			return fmt.Errorf("apply schema %s: %w", name, err)
		}
	}
	return nil
}

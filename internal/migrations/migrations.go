// Package migrations holds the forward-only schema migrations and applies them with goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

// FS contains the SQL migration files.
//
//go:embed *.sql
var FS embed.FS

// Dialect is the goose dialect of the production store.
const Dialect = "postgres"

// gooseUp is a seam for tests.
var gooseUp = func(ctx context.Context, db *sql.DB, dir string) error {
	return goose.UpContext(ctx, db, dir)
}

// Up applies every pending migration.
func Up(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(FS)
	if err := goose.SetDialect(Dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := gooseUp(ctx, db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Collect lists the embedded migrations in version order.
func Collect() (goose.Migrations, error) {
	goose.SetBaseFS(FS)
	return goose.CollectMigrations(".", 0, goose.MaxVersion)
}

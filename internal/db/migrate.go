package db

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// RunMigrations applies the embedded goose migrations
func RunMigrations(database *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(database, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// TruncateUsers empties the users table; integration tests use it for a clean state.
func TruncateUsers(database *sql.DB) error {
	if _, err := database.Exec("TRUNCATE TABLE users RESTART IDENTITY CASCADE"); err != nil {
		return fmt.Errorf("truncate users: %w", err)
	}
	return nil
}

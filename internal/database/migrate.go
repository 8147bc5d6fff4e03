// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package database

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

// Schema for users, cards and reset codes.
//
//go:embed migrations/*.sql
var embedMigrations embed.FS

const migrationsDir = "migrations"

// RunMigrations brings the users, cards and reset_codes tables to the
// latest schema version.
func RunMigrations(db *sql.DB) error {
	return migrate(db, "up", goose.Up)
}

// MigrateDown rolls back the most recent schema version.
func MigrateDown(db *sql.DB) error {
	return migrate(db, "down", goose.Down)
}

// MigrateReset rolls back every schema version, dropping all card and
// account data.
func MigrateReset(db *sql.DB) error {
	return migrate(db, "reset", goose.Reset)
}

func migrate(db *sql.DB, name string, step func(*sql.DB, string, ...goose.OptionsFunc) error) error {
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	if err := step(db, migrationsDir); err != nil {
		return fmt.Errorf("migrate %s: %w", name, err)
	}
	return nil
}
